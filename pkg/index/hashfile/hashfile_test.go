package hashfile

import (
	"testing"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func newIndex(t *testing.T) index.Index {
	t.Helper()
	idx, err := index.New("hash", index.Config{
		Dir:           t.TempDir(),
		TableName:     "products",
		AttributeName: "name",
		AttributeType: record.TypeVarchar,
		AttributeSize: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

func TestInsertSearchOverflowAndDuplicates(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()

	for i := 1; i <= 6; i++ {
		if err := idx.Insert(record.RecordNumber(i), "COLLIDE"); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	found, err := idx.Search("COLLIDE")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 6 {
		t.Fatalf("len(found) = %d, want 6", len(found))
	}
}

func TestDeleteBaseAndOverflow(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()

	for i := 1; i <= 6; i++ {
		if err := idx.Insert(record.RecordNumber(i), "X"); err != nil {
			t.Fatal(err)
		}
	}
	ok, err := idx.Delete(1, "X")
	if err != nil || !ok {
		t.Fatalf("Delete(1) = %v, %v", ok, err)
	}
	ok, err = idx.Delete(6, "X")
	if err != nil || !ok {
		t.Fatalf("Delete(6) = %v, %v", ok, err)
	}
	ok, err = idx.Delete(99, "X")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("Delete(99) should report not found")
	}
}

// TestSplitRedistributesDistinctKeys inserts enough distinct keys to
// force a bucket split and checks every key is still found afterward —
// a regression guard for splits that repoint directory slots without
// actually redistributing the entries they used to hold.
func TestSplitRedistributesDistinctKeys(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()

	keys := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	for i, k := range keys {
		if err := idx.Insert(record.RecordNumber(i+1), k); err != nil {
			t.Fatalf("Insert(%q): %v", k, err)
		}
	}
	for i, k := range keys {
		got, err := idx.Search(k)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != record.RecordNumber(i+1) {
			t.Fatalf("Search(%q) = %v, want [%d]", k, got, i+1)
		}
	}
}

func TestRangeSearchUnsupported(t *testing.T) {
	idx := newIndex(t)
	defer idx.Close()
	if err := idx.Insert(1, "A"); err != nil {
		t.Fatal(err)
	}
	_, err := idx.RangeSearch("A", "Z")
	if err != index.ErrRangeUnsupported {
		t.Fatalf("RangeSearch err = %v, want ErrRangeUnsupported", err)
	}
}
