package record

import (
	"path/filepath"
	"testing"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
)

func testSchema() Schema {
	return Schema{
		Table: "t",
		Attributes: []Attribute{
			{Name: "id", Type: TypeInt, IsKey: true},
			{Name: "name", Type: TypeVarchar, Size: 20},
			{Name: "price", Type: TypeFloat},
			{Name: "loc", Type: TypePoint},
		},
		PrimaryKey: "id",
	}
}

func TestInsertGetDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "t.bin"), testSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	n1, err := s.Insert(Record{int32(1), "alice", 9.99, point.New(1, 2)})
	if err != nil {
		t.Fatal(err)
	}
	n2, err := s.Insert(Record{int32(2), "bob", 1.5, point.New(3, 4)})
	if err != nil {
		t.Fatal(err)
	}
	if n1 == n2 {
		t.Fatal("expected distinct record numbers")
	}

	rec, ok, err := s.Get(n1)
	if err != nil || !ok {
		t.Fatalf("Get(n1) ok=%v err=%v", ok, err)
	}
	if rec[1].(string) != "alice" {
		t.Fatalf("rec[1] = %v", rec[1])
	}

	deleted, err := s.Delete(n1)
	if err != nil || !deleted {
		t.Fatalf("Delete(n1) = %v, %v", deleted, err)
	}
	if _, ok, _ := s.Get(n1); ok {
		t.Fatal("expected n1 to be inactive after delete")
	}

	// reinsert should reuse the freed slot (free-list reuse)
	n3, err := s.Insert(Record{int32(3), "carol", 2.0, point.New(0, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if n3 != n1 {
		t.Fatalf("expected free-list reuse: n3=%d n1=%d", n3, n1)
	}
}

func TestActiveRecordNumbers(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "t.bin"), testSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var nums []RecordNumber
	for i := 0; i < 5; i++ {
		n, err := s.Insert(Record{int32(i), "x", 1.0, point.New(0, 0)})
		if err != nil {
			t.Fatal(err)
		}
		nums = append(nums, n)
	}
	if _, err := s.Delete(nums[2]); err != nil {
		t.Fatal(err)
	}
	active, err := s.ActiveRecordNumbers()
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 4 {
		t.Fatalf("len(active) = %d, want 4", len(active))
	}
}

func TestReopenPersistsFreeList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.bin")
	s, err := Open(path, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	n, err := s.Insert(Record{int32(1), "a", 1.0, point.New(0, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Delete(n); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	n2, err := s2.Insert(Record{int32(2), "b", 2.0, point.New(1, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if n2 != n {
		t.Fatalf("expected reopened store to reuse freed slot %d, got %d", n, n2)
	}
}
