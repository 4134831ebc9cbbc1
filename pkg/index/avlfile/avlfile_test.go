package avlfile

import (
	"testing"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func newIndex(t *testing.T) index.Index {
	t.Helper()
	idx, err := index.New("avl", index.Config{
		Dir:           t.TempDir(),
		TableName:     "t",
		AttributeName: "age",
		AttributeType: record.TypeInt,
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestInsertSearchRange(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()

	vals := []int32{50, 30, 70, 20, 40, 60, 80}
	for i, v := range vals {
		if err := idx.Insert(record.RecordNumber(i+1), v); err != nil {
			t.Fatal(err)
		}
	}
	got, err := idx.Search(int32(40))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("Search(40) = %v", got)
	}
	ranged, err := idx.RangeSearch(int32(30), int32(60))
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 4 {
		t.Fatalf("RangeSearch(30,60) = %v, want 4 results", ranged)
	}
}

func TestDuplicateKeys(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()
	for i := 1; i <= 5; i++ {
		if err := idx.Insert(record.RecordNumber(i), int32(10)); err != nil {
			t.Fatal(err)
		}
	}
	got, err := idx.Search(int32(10))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 5 {
		t.Fatalf("len(got) = %d, want 5", len(got))
	}
}

func TestReopenPreservesKeyTypes(t *testing.T) {
	dir := t.TempDir()
	idx, err := index.New("avl", index.Config{
		Dir: dir, TableName: "t", AttributeName: "age", AttributeType: record.TypeInt,
	})
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range []int32{50, 30, 70} {
		if err := idx.Insert(record.RecordNumber(i+1), v); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := index.New("avl", index.Config{
		Dir: dir, TableName: "t", AttributeName: "age", AttributeType: record.TypeInt,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	got, err := reopened.Search(int32(30))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("Search(30) after reopen = %v, want [2]", got)
	}
	ranged, err := reopened.RangeSearch(int32(0), int32(100))
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 3 {
		t.Fatalf("RangeSearch after reopen = %v, want 3 results", ranged)
	}
}

func TestDelete(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()
	for i, v := range []int32{50, 30, 70, 20, 40} {
		if err := idx.Insert(record.RecordNumber(i+1), v); err != nil {
			t.Fatal(err)
		}
	}
	ok, err := idx.Delete(2, int32(30))
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	got, _ := idx.Search(int32(30))
	if len(got) != 0 {
		t.Fatalf("expected 30 removed, got %v", got)
	}
	ranged, err := idx.RangeSearch(int32(0), int32(100))
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 4 {
		t.Fatalf("RangeSearch after delete = %v", ranged)
	}
}
