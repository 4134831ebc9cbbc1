package sqlfront

import (
	"testing"

	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func TestCleanStripsComments(t *testing.T) {
	sql := "SELECT * FROM t -- trailing comment\nWHERE /* block\ncomment */ id = 1"
	got := Clean(sql)
	want := "SELECT * FROM t WHERE id = 1"
	if got != want {
		t.Fatalf("Clean = %q, want %q", got, want)
	}
}

func TestCleanPreservesQuotedSemicolonAndComment(t *testing.T) {
	sql := "INSERT INTO t VALUES ('a;b--c')"
	got := Clean(sql)
	if got != sql {
		t.Fatalf("Clean = %q, want unchanged %q", got, sql)
	}
}

func TestSplitRespectsQuotes(t *testing.T) {
	sql := "INSERT INTO t VALUES ('a;b'); SELECT * FROM t;"
	parts := Split(sql)
	if len(parts) != 2 {
		t.Fatalf("Split = %v, want 2 statements", parts)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Operation{
		"CREATE TABLE t (id INT PRIMARY KEY)": OpCreateTable,
		"INSERT INTO t VALUES (1)":            OpInsert,
		"SELECT * FROM t":                     OpSelect,
		"DELETE FROM t WHERE id = 1":           OpDelete,
		"IMPORT FROM CSV 'a.csv' INTO t":       OpImportCSV,
	}
	for stmt, want := range cases {
		if got := Classify(stmt); got != want {
			t.Fatalf("Classify(%q) = %v, want %v", stmt, got, want)
		}
	}
}

func TestParseCreateTable(t *testing.T) {
	schema, err := ParseCreateTable("CREATE TABLE products (id INT PRIMARY KEY, name VARCHAR[30] INDEX avl, loc POINT INDEX rtree)")
	if err != nil {
		t.Fatal(err)
	}
	if schema.Table != "products" {
		t.Fatalf("Table = %q", schema.Table)
	}
	if schema.PrimaryKey != "id" {
		t.Fatalf("PrimaryKey = %q", schema.PrimaryKey)
	}
	if len(schema.Attributes) != 3 {
		t.Fatalf("len(Attributes) = %d", len(schema.Attributes))
	}
	if schema.Attributes[0].Index != "hash" {
		t.Fatalf("default index = %q, want hash", schema.Attributes[0].Index)
	}
	if schema.Attributes[1].Size != 30 {
		t.Fatalf("VARCHAR size = %d, want 30", schema.Attributes[1].Size)
	}
}

func TestParseInsert(t *testing.T) {
	ins, err := ParseInsert("INSERT INTO products (id, name) VALUES (1, 'widget'), (2, 'gadget')")
	if err != nil {
		t.Fatal(err)
	}
	if ins.Table != "products" || len(ins.Columns) != 2 || len(ins.Rows) != 2 {
		t.Fatalf("ins = %+v", ins)
	}
	if ins.Rows[0][1] != "'widget'" {
		t.Fatalf("Rows[0][1] = %q", ins.Rows[0][1])
	}
}

func TestParseSelectAndDelete(t *testing.T) {
	sel, err := ParseSelect("SELECT id, name FROM products WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	if sel.Table != "products" || sel.Where != "id = 1" {
		t.Fatalf("sel = %+v", sel)
	}
	del, err := ParseDelete("DELETE FROM products WHERE id = 1")
	if err != nil {
		t.Fatal(err)
	}
	if del.Where != "id = 1" {
		t.Fatalf("del = %+v", del)
	}
}

func testSchema() record.Schema {
	return record.Schema{
		Table: "products",
		Attributes: []record.Attribute{
			{Name: "id", Type: record.TypeInt, IsKey: true},
			{Name: "name", Type: record.TypeVarchar, Size: 30},
			{Name: "price", Type: record.TypeFloat},
		},
		PrimaryKey: "id",
	}
}

func TestParseWhereEquality(t *testing.T) {
	w, err := ParseWhere("id = 1", testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Exact) != 1 || w.Exact[0].Value.(int32) != 1 {
		t.Fatalf("w = %+v", w)
	}
}

func TestParseWhereComparisonEpsilon(t *testing.T) {
	w, err := ParseWhere("price > 10.0", testSchema())
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Ranges) != 1 {
		t.Fatalf("w = %+v", w)
	}
	lo := w.Ranges[0].Lo.(float64)
	if lo != 10.01 {
		t.Fatalf("lo = %v, want 10.01", lo)
	}
}

func TestParseWhereSpatial(t *testing.T) {
	schema := record.Schema{
		Table: "places",
		Attributes: []record.Attribute{
			{Name: "loc", Type: record.TypePoint},
		},
	}
	w, err := ParseWhere("RADIUS(loc, (0, 0), 5)", schema)
	if err != nil {
		t.Fatal(err)
	}
	if len(w.Spatial) != 1 || w.Spatial[0].Radius != 5 {
		t.Fatalf("w = %+v", w)
	}
}
