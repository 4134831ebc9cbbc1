package rtreefile

import (
	"testing"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func newIndex(t *testing.T, dir string) *File {
	t.Helper()
	idx, err := index.New("rtree", index.Config{
		Dir:           dir,
		TableName:     "rt_tab",
		AttributeName: "location",
		AttributeType: record.TypePoint,
	})
	if err != nil {
		t.Fatal(err)
	}
	return idx.(*File)
}

func insertDemoPoints(t *testing.T, idx *File) {
	t.Helper()
	pts := map[record.RecordNumber]point.Point{
		1: point.New(0, 0),
		2: point.New(3, 4),
		3: point.New(10, 10),
		4: point.New(-2, 1),
	}
	for rn, p := range pts {
		if err := idx.Insert(rn, p); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSearchRangeDelete(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex(t, dir)
	insertDemoPoints(t, idx)

	got, err := idx.Search(point.New(3, 4))
	if err != nil || len(got) != 1 || got[0] != 2 {
		t.Fatalf("Search = %v, %v", got, err)
	}

	inside, err := idx.RangeSearch(point.New(-3, -1), point.New(3, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(inside) != 3 {
		t.Fatalf("RangeSearch = %v, want 3", inside)
	}

	ok, err := idx.Delete(2, point.New(3, 4))
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	got, _ = idx.Search(point.New(3, 4))
	if len(got) != 0 {
		t.Fatalf("expected removed, got %v", got)
	}
}

func TestMetadataPersistReload(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex(t, dir)
	insertDemoPoints(t, idx)
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx2 := newIndex(t, dir)
	if len(idx2.idToPoint) < 3 {
		t.Fatalf("expected cache to reload, got %d entries", len(idx2.idToPoint))
	}
}

func TestRadiusAndKNN(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex(t, dir)
	insertDemoPoints(t, idx)

	ids, err := idx.RadiusSearch(point.New(0, 0), 6.0)
	if err != nil {
		t.Fatal(err)
	}
	found1 := false
	for _, id := range ids {
		if id == 1 {
			found1 = true
		}
	}
	if !found1 {
		t.Fatalf("RadiusSearch missing record 1: %v", ids)
	}

	kids, err := idx.KNNSearch(point.New(0.5, 0.5), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) > 2 {
		t.Fatalf("KNNSearch returned %d, want <= 2", len(kids))
	}
}

func TestStatsBoundingBox(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex(t, dir)
	insertDemoPoints(t, idx)

	stats := idx.Stats()
	if stats.TotalRecords < 4 {
		t.Fatalf("TotalRecords = %d", stats.TotalRecords)
	}
	if stats.BoundingBox == nil {
		t.Fatal("expected bounding box")
	}
	bb := stats.BoundingBox
	if bb.MinX != -2 || bb.MaxX != 10 || bb.MinY != 0 || bb.MaxY != 10 {
		t.Fatalf("bbox = %+v", bb)
	}
}

// TestSplitsPreserveSearchability forces several node splits (more
// than MaxEntries points) and checks every point is still findable by
// exact search, range search, and delete afterward — a regression
// guard for a split that drops or mis-routes entries between the two
// resulting nodes.
func TestSplitsPreserveSearchability(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex(t, dir)

	var pts []point.Point
	for i := 0; i < 30; i++ {
		pts = append(pts, point.New(float64(i), float64(i*2%7)))
	}
	for i, p := range pts {
		if err := idx.Insert(record.RecordNumber(i+1), p); err != nil {
			t.Fatalf("Insert(%v): %v", p, err)
		}
	}
	if len(idx.nodes) <= 1 {
		t.Fatalf("expected multiple nodes after %d inserts, got %d", len(pts), len(idx.nodes))
	}

	for i, p := range pts {
		got, err := idx.Search(p)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0] != record.RecordNumber(i+1) {
			t.Fatalf("Search(%v) = %v, want [%d]", p, got, i+1)
		}
	}

	inside, err := idx.RangeSearch(point.New(0, 0), point.New(29, 6))
	if err != nil {
		t.Fatal(err)
	}
	if len(inside) != len(pts) {
		t.Fatalf("RangeSearch covering all points = %d, want %d", len(inside), len(pts))
	}

	for i, p := range pts {
		ok, err := idx.Delete(record.RecordNumber(i+1), p)
		if err != nil || !ok {
			t.Fatalf("Delete(%d, %v) = %v, %v", i+1, p, ok, err)
		}
	}
	remaining, err := idx.RangeSearch(point.New(-1000, -1000), point.New(1000, 1000))
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Fatalf("expected empty tree after deleting every point, got %v", remaining)
	}
}

func TestRebuildFromScan(t *testing.T) {
	dir := t.TempDir()
	idx := newIndex(t, dir)
	insertDemoPoints(t, idx)

	if _, err := idx.Delete(99, point.New(0, 0)); err != nil {
		t.Fatal(err)
	}

	err := idx.Rebuild(func() ([]record.RecordNumber, map[record.RecordNumber]record.Value, error) {
		nums := []record.RecordNumber{1, 2, 3}
		vals := map[record.RecordNumber]record.Value{
			1: point.New(0, 0),
			2: point.New(3, 4),
			3: point.New(10, 10),
		}
		return nums, vals, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := idx.Search(point.New(3, 4))
	if err != nil || len(got) != 1 {
		t.Fatalf("Search after rebuild = %v, %v", got, err)
	}
}
