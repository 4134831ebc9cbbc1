package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateInsertSelectDelete(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	results := e.Exec(`
		CREATE TABLE products (id INT PRIMARY KEY, name VARCHAR[30] INDEX avl, price DECIMAL);
		INSERT INTO products (id, name, price) VALUES (1, 'widget', 9.99), (2, 'gadget', 19.99);
		SELECT * FROM products WHERE price > 10.0;
		DELETE FROM products WHERE id = 1;
	`)
	if len(results) != 4 {
		t.Fatalf("len(results) = %d, want 4", len(results))
	}
	for i, r := range results {
		if r.Error {
			t.Fatalf("result[%d] error: %s", i, r.Message)
		}
	}
	if len(results[1].RecordNumbers) != 2 {
		t.Fatalf("insert RecordNumbers = %v, want 2 entries", results[1].RecordNumbers)
	}
	if len(results[1].InputRows) != 2 {
		t.Fatalf("insert InputRows = %v, want 2 entries", results[1].InputRows)
	}
	if results[1].InputRows[0]["name"] != "widget" {
		t.Fatalf("insert InputRows[0] = %v, want name=widget", results[1].InputRows[0])
	}
	if results[2].Affected != 1 {
		t.Fatalf("select affected = %d, want 1", results[2].Affected)
	}
	if results[3].Affected != 1 {
		t.Fatalf("delete affected = %d, want 1", results[3].Affected)
	}
	if len(results[3].RecordNumbers) != 1 || results[3].RecordNumbers[0] != results[1].RecordNumbers[0] {
		t.Fatalf("delete RecordNumbers = %v, want [%v]", results[3].RecordNumbers, results[1].RecordNumbers[0])
	}
}

func TestDeleteWithoutWhereRejected(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	results := e.Exec(`
		CREATE TABLE t (id INT PRIMARY KEY);
		INSERT INTO t (id) VALUES (1);
		DELETE FROM t;
	`)
	last := results[len(results)-1]
	if !last.Error {
		t.Fatal("expected DELETE without WHERE to be rejected")
	}
}

// TestImportCSVSkipsMissingPrimaryKey exercises scenario S6's PK rule:
// a row with its PK cell present is accepted, while a row whose PK cell
// is empty is skipped entirely.
func TestImportCSVSkipsMissingPrimaryKey(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "fruits.csv")
	csvBody := "id,name,price\n1,mango,0.5\n,banana,0.3\n"
	if err := os.WriteFile(csvPath, []byte(csvBody), 0o644); err != nil {
		t.Fatal(err)
	}

	e, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	results := e.Exec(`CREATE TABLE fruits (id INT PRIMARY KEY, name VARCHAR[20], price DECIMAL);`)
	for _, r := range results {
		if r.Error {
			t.Fatalf("create table: %s", r.Message)
		}
	}

	importResults := e.Exec(`IMPORT FROM CSV '` + csvPath + `' INTO fruits;`)
	if len(importResults) != 1 {
		t.Fatalf("len(importResults) = %d, want 1", len(importResults))
	}
	if importResults[0].Error {
		t.Fatalf("import error: %s", importResults[0].Message)
	}
	if importResults[0].Affected != 1 {
		t.Fatalf("import affected = %d, want 1 (row with missing PK must be skipped)", importResults[0].Affected)
	}
	if len(importResults[0].SucceededRows) != 1 || importResults[0].SucceededRows[0] != 0 {
		t.Fatalf("import SucceededRows = %v, want [0]", importResults[0].SucceededRows)
	}
	if importResults[0].FailedCount != 1 {
		t.Fatalf("import FailedCount = %d, want 1", importResults[0].FailedCount)
	}
	if len(importResults[0].FailedRows) != 1 || importResults[0].FailedRows[0].Index != 1 {
		t.Fatalf("import FailedRows = %v, want index 1 (the banana row)", importResults[0].FailedRows)
	}
	if len(importResults[0].RecordNumbers) != 1 {
		t.Fatalf("import RecordNumbers = %v, want 1 entry", importResults[0].RecordNumbers)
	}

	selectResults := e.Exec(`SELECT * FROM fruits;`)
	if selectResults[0].Affected != 1 {
		t.Fatalf("select affected = %d, want 1 surviving row", selectResults[0].Affected)
	}
}

func TestReopenAcrossProcesses(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	e.Exec("CREATE TABLE t (id INT PRIMARY KEY); INSERT INTO t (id) VALUES (1);")
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e2, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer e2.Close()
	results := e2.Exec("SELECT * FROM t;")
	if results[0].Affected != 1 {
		t.Fatalf("expected reopened table to retain its row, got %+v", results[0])
	}
}
