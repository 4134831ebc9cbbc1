package table

import (
	"testing"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func demoSchema() record.Schema {
	return record.Schema{
		Table: "products",
		Attributes: []record.Attribute{
			{Name: "id", Type: record.TypeInt, IsKey: true, Index: "hash"},
			{Name: "name", Type: record.TypeVarchar, Size: 30, Index: "avl"},
			{Name: "price", Type: record.TypeFloat, Index: "avl"},
			{Name: "loc", Type: record.TypePoint, Index: "rtree"},
		},
		PrimaryKey: "id",
	}
}

func TestCreateInsertSelect(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, demoSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Insert(record.Record{int32(1), "widget", 9.99, point.New(0, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert(record.Record{int32(2), "gadget", 19.99, point.New(3, 4)}); err != nil {
		t.Fatal(err)
	}

	res, err := m.Select([]ExactFilter{{Attr: "id", Value: int32(1)}}, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(res.Rows))
	}
}

func TestInsertDuplicateKeyRejected(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, demoSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Insert(record.Record{int32(1), "a", 1.0, point.New(0, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert(record.Record{int32(1), "b", 2.0, point.New(1, 1)}); err == nil {
		t.Fatal("expected duplicate key rejection")
	}
}

func TestDeleteRequiresFilter(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, demoSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Delete(nil, nil, nil); err != ErrDeleteRequiresFilter {
		t.Fatalf("Delete() err = %v, want ErrDeleteRequiresFilter", err)
	}
}

func TestDeleteRemovesFromIndices(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, demoSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Insert(record.Record{int32(1), "widget", 9.99, point.New(0, 0)}); err != nil {
		t.Fatal(err)
	}
	n, err := m.Delete([]ExactFilter{{Attr: "id", Value: int32(1)}}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(n) != 1 {
		t.Fatalf("Delete count = %d, want 1", len(n))
	}
	res, err := m.Select(nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 0 {
		t.Fatalf("expected empty table after delete, got %d rows", len(res.Rows))
	}
}

func TestSpatialSelect(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, demoSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close()

	if _, err := m.Insert(record.Record{int32(1), "a", 1.0, point.New(0, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert(record.Record{int32(2), "b", 2.0, point.New(100, 100)}); err != nil {
		t.Fatal(err)
	}

	res, err := m.Select(nil, nil, []SpatialFilter{{
		Attr: "loc", Kind: SpatialRadius, Center: point.New(0, 0), Radius: 5,
	}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(res.Rows))
	}
}

func TestReopenPersistsData(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, demoSchema())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Insert(record.Record{int32(1), "widget", 9.99, point.New(0, 0)}); err != nil {
		t.Fatal(err)
	}
	if err := m.Close(); err != nil {
		t.Fatal(err)
	}

	m2, err := Open(dir, "products")
	if err != nil {
		t.Fatal(err)
	}
	defer m2.Close()
	res, err := m2.Select(nil, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1 after reopen", len(res.Rows))
	}
}
