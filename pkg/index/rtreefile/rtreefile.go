// Package rtreefile implements index.SpatialIndex as a height-balanced
// R-tree of axis-aligned bounding boxes, persisted as an array of
// node slots (mirroring pkg/index/avlfile's node-slot-plus-free-list
// layout), grounded on _examples/original_source/tests/test_rtree_file.py
// (see DESIGN.md).
package rtreefile

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func init() {
	index.Register("rtree", newFromConfig)
}

// MaxEntries is the maximum number of entries a node holds before it
// must split; MinEntries is the minimum a split-off group may hold
// (mirroring hashfile's FB fan-out constant in spirit).
const (
	MaxEntries = 4
	MinEntries = 2
)

// rect is an axis-aligned bounding box; MinX > MaxX marks an empty box.
type rect struct {
	MinX, MinY, MaxX, MaxY float64
}

func rectForPoint(p point.Point) rect {
	return rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
}

func (r rect) area() float64 {
	dx, dy := r.MaxX-r.MinX, r.MaxY-r.MinY
	if dx < 0 || dy < 0 {
		return 0
	}
	return dx * dy
}

func (r rect) union(o rect) rect {
	return rect{
		MinX: math.Min(r.MinX, o.MinX),
		MinY: math.Min(r.MinY, o.MinY),
		MaxX: math.Max(r.MaxX, o.MaxX),
		MaxY: math.Max(r.MaxY, o.MaxY),
	}
}

func (r rect) enlargement(o rect) float64 {
	return r.union(o).area() - r.area()
}

func (r rect) intersects(o rect) bool {
	return r.MinX <= o.MaxX && r.MaxX >= o.MinX && r.MinY <= o.MaxY && r.MaxY >= o.MinY
}

func (r rect) containsPoint(p point.Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

// minDist is the shortest possible distance from p to any point inside
// r; used by KNNSearch's branch-and-bound pruning.
func (r rect) minDist(p point.Point) float64 {
	dx, dy := 0.0, 0.0
	switch {
	case p.X < r.MinX:
		dx = r.MinX - p.X
	case p.X > r.MaxX:
		dx = p.X - r.MaxX
	}
	switch {
	case p.Y < r.MinY:
		dy = r.MinY - p.Y
	case p.Y > r.MaxY:
		dy = p.Y - r.MaxY
	}
	return math.Hypot(dx, dy)
}

// entry is a node slot: for an internal node it points at a child node
// (MBR covering everything reachable under it); for a leaf node it
// carries an indexed point directly.
type entry struct {
	MBR   rect
	Child int         `json:"child"` // node index; -1 in leaf entries
	Rec   int32       `json:"rec"`   // record number; only set in leaf entries
	Point point.Point `json:"point"` // indexed point; only set in leaf entries
}

type node struct {
	Leaf    bool
	Entries []entry
	Used    bool
}

// File is the R-tree index backend.
type File struct {
	cfg       index.Config
	dataFile  string
	idxFile   string
	metaFile  string
	root      int
	nodes     []*node
	free      []int
	idToPoint map[record.RecordNumber]point.Point
}

func newFromConfig(cfg index.Config) (index.Index, error) {
	base := fmt.Sprintf("%s_%s_rtree", cfg.TableName, cfg.AttributeName)
	f := &File{
		cfg:       cfg,
		dataFile:  filepath.Join(cfg.Dir, base+".dat"),
		idxFile:   filepath.Join(cfg.Dir, base+".idx"),
		metaFile:  filepath.Join(cfg.Dir, base+"_meta.json"),
		root:      -1,
		idToPoint: map[record.RecordNumber]point.Point{},
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// onDiskTree is the .idx file's contents: the node-slot array that
// backs the spatial tree itself.
type onDiskTree struct {
	Root  int     `json:"root"`
	Nodes []*node `json:"nodes"`
}

// datEntry is one row of the .dat file's flat record dump, kept
// alongside the tree as the raw-data half of the split the original's
// rtree_index/.idx/.dat pairing uses: the .idx file
// is the real tree, .dat is the flat source of truth Rebuild replays
// from if the tree is lost, and _meta.json is the id_to_point cache.
type datEntry struct {
	Rec int32   `json:"rec"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type metaEntry = datEntry

func (f *File) load() error {
	data, err := os.ReadFile(f.metaFile)
	if os.IsNotExist(err) {
		f.root = f.allocNode(&node{Leaf: true, Used: true})
		return f.save()
	}
	if err != nil {
		return fmt.Errorf("rtreefile: read %s: %w", f.metaFile, err)
	}
	var entries []metaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("rtreefile: decode %s: %w", f.metaFile, err)
	}
	for _, e := range entries {
		f.idToPoint[record.RecordNumber(e.Rec)] = point.New(e.X, e.Y)
	}

	treeData, err := os.ReadFile(f.idxFile)
	if err != nil {
		return fmt.Errorf("rtreefile: read %s: %w", f.idxFile, err)
	}
	var tree onDiskTree
	if err := json.Unmarshal(treeData, &tree); err != nil {
		return fmt.Errorf("rtreefile: decode %s: %w", f.idxFile, err)
	}
	f.root = tree.Root
	f.nodes = tree.Nodes
	for i, n := range f.nodes {
		if n == nil || !n.Used {
			f.free = append(f.free, i)
		}
	}
	return nil
}

func (f *File) save() error {
	entries := make([]metaEntry, 0, len(f.idToPoint))
	for rn, p := range f.idToPoint {
		entries = append(entries, metaEntry{Rec: int32(rn), X: p.X, Y: p.Y})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Rec < entries[j].Rec })
	metaData, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.metaFile + ".tmp"
	if err := os.WriteFile(tmp, metaData, 0o644); err != nil {
		return fmt.Errorf("rtreefile: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.metaFile); err != nil {
		return err
	}
	// .dat mirrors the same flat entries (Rebuild's fallback source);
	// .idx holds the actual node-slot tree that Search/RangeSearch/
	// RadiusSearch/KNNSearch traverse.
	if err := os.WriteFile(f.dataFile, metaData, 0o644); err != nil {
		return fmt.Errorf("rtreefile: write %s: %w", f.dataFile, err)
	}
	treeData, err := json.MarshalIndent(onDiskTree{Root: f.root, Nodes: f.nodes}, "", "  ")
	if err != nil {
		return err
	}
	tmpIdx := f.idxFile + ".tmp"
	if err := os.WriteFile(tmpIdx, treeData, 0o644); err != nil {
		return fmt.Errorf("rtreefile: write %s: %w", tmpIdx, err)
	}
	return os.Rename(tmpIdx, f.idxFile)
}

// Kind implements index.Index.
func (*File) Kind() string { return "rtree" }

func asPoint(v record.Value) (point.Point, bool) {
	p, ok := v.(point.Point)
	return p, ok
}

func (f *File) allocNode(n *node) int {
	if len(f.free) > 0 {
		idx := f.free[len(f.free)-1]
		f.free = f.free[:len(f.free)-1]
		f.nodes[idx] = n
		return idx
	}
	f.nodes = append(f.nodes, n)
	return len(f.nodes) - 1
}

// splitResult is returned up the recursive insert when a node overflows
// and must split: KeepMBR covers the entries that stayed in the
// original node slot, NewIdx/NewMBR describe the freshly allocated
// sibling.
type splitResult struct {
	KeepMBR rect
	NewIdx  int
	NewMBR  rect
}

// Insert adds (n, key) to the tree, splitting nodes on overflow and
// growing the root when the split reaches the top.
func (f *File) Insert(n record.RecordNumber, key record.Value) error {
	if _, err := f.insertNoSave(n, key); err != nil {
		return err
	}
	return f.save()
}

func (f *File) insertNoSave(n record.RecordNumber, key record.Value) (point.Point, error) {
	p, ok := asPoint(key)
	if !ok {
		return point.Point{}, fmt.Errorf("rtreefile: key is not a POINT: %T", key)
	}
	e := entry{MBR: rectForPoint(p), Child: -1, Rec: int32(n), Point: p}
	if sib := f.insert(f.root, e); sib != nil {
		newRoot := &node{
			Leaf: false,
			Used: true,
			Entries: []entry{
				{MBR: sib.KeepMBR, Child: f.root},
				{MBR: sib.NewMBR, Child: sib.NewIdx},
			},
		}
		f.root = f.allocNode(newRoot)
	}
	f.idToPoint[n] = p
	return p, nil
}

func (f *File) insert(ni int, e entry) *splitResult {
	n := f.nodes[ni]
	if n.Leaf {
		n.Entries = append(n.Entries, e)
	} else {
		idx := f.chooseChild(n, e.MBR)
		if sib := f.insert(n.Entries[idx].Child, e); sib != nil {
			n.Entries[idx].MBR = sib.KeepMBR
			n.Entries = append(n.Entries, entry{MBR: sib.NewMBR, Child: sib.NewIdx})
		} else {
			n.Entries[idx].MBR = n.Entries[idx].MBR.union(e.MBR)
		}
	}
	if len(n.Entries) > MaxEntries {
		groupA, groupB := quadraticSplit(n.Entries)
		n.Entries = groupA
		sibling := &node{Leaf: n.Leaf, Used: true, Entries: groupB}
		newIdx := f.allocNode(sibling)
		return &splitResult{KeepMBR: mbrOf(groupA), NewIdx: newIdx, NewMBR: mbrOf(groupB)}
	}
	return nil
}

// chooseChild picks the entry in n (a non-leaf node) whose bounding box
// needs the least enlargement to cover want, breaking ties by smaller
// resulting area (Guttman's ChooseLeaf).
func (f *File) chooseChild(n *node, want rect) int {
	best, bestEnl, bestArea := 0, math.Inf(1), math.Inf(1)
	for i, e := range n.Entries {
		enl := e.MBR.enlargement(want)
		area := e.MBR.area()
		if enl < bestEnl || (enl == bestEnl && area < bestArea) {
			best, bestEnl, bestArea = i, enl, area
		}
	}
	return best
}

func mbrOf(entries []entry) rect {
	r := entries[0].MBR
	for _, e := range entries[1:] {
		r = r.union(e.MBR)
	}
	return r
}

// quadraticSplit partitions entries into two non-empty groups using
// Guttman's quadratic-cost split algorithm: pick the pair that wastes
// the most area if combined as seeds, then assign the rest one at a
// time to whichever group needs less enlargement, forcing the
// remainder to one side once the other has only enough left to meet
// MinEntries.
func quadraticSplit(entries []entry) ([]entry, []entry) {
	i1, i2 := pickSeeds(entries)
	groupA := []entry{entries[i1]}
	groupB := []entry{entries[i2]}
	mbrA, mbrB := entries[i1].MBR, entries[i2].MBR

	remaining := make([]int, 0, len(entries)-2)
	for i := range entries {
		if i != i1 && i != i2 {
			remaining = append(remaining, i)
		}
	}

	for len(remaining) > 0 {
		if len(groupA)+len(remaining) == MinEntries {
			for _, idx := range remaining {
				groupA = append(groupA, entries[idx])
				mbrA = mbrA.union(entries[idx].MBR)
			}
			break
		}
		if len(groupB)+len(remaining) == MinEntries {
			for _, idx := range remaining {
				groupB = append(groupB, entries[idx])
				mbrB = mbrB.union(entries[idx].MBR)
			}
			break
		}

		bestPos, bestDiff := 0, -1.0
		for pos, idx := range remaining {
			dA := mbrA.enlargement(entries[idx].MBR)
			dB := mbrB.enlargement(entries[idx].MBR)
			diff := dA - dB
			if diff < 0 {
				diff = -diff
			}
			if diff > bestDiff {
				bestDiff, bestPos = diff, pos
			}
		}
		idx := remaining[bestPos]
		dA := mbrA.enlargement(entries[idx].MBR)
		dB := mbrB.enlargement(entries[idx].MBR)
		switch {
		case dA < dB:
			groupA = append(groupA, entries[idx])
			mbrA = mbrA.union(entries[idx].MBR)
		case dB < dA:
			groupB = append(groupB, entries[idx])
			mbrB = mbrB.union(entries[idx].MBR)
		case mbrA.area() != mbrB.area():
			if mbrA.area() < mbrB.area() {
				groupA = append(groupA, entries[idx])
				mbrA = mbrA.union(entries[idx].MBR)
			} else {
				groupB = append(groupB, entries[idx])
				mbrB = mbrB.union(entries[idx].MBR)
			}
		case len(groupA) <= len(groupB):
			groupA = append(groupA, entries[idx])
			mbrA = mbrA.union(entries[idx].MBR)
		default:
			groupB = append(groupB, entries[idx])
			mbrB = mbrB.union(entries[idx].MBR)
		}
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}
	return groupA, groupB
}

// pickSeeds returns the pair of entries whose combined bounding box
// wastes the most area, Guttman's PickSeeds.
func pickSeeds(entries []entry) (int, int) {
	bi, bj, bestWaste := 0, 1, -1.0
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			u := entries[i].MBR.union(entries[j].MBR)
			waste := u.area() - entries[i].MBR.area() - entries[j].MBR.area()
			if waste > bestWaste {
				bestWaste, bi, bj = waste, i, j
			}
		}
	}
	return bi, bj
}

// Delete removes the entry (n, key) if present, tightening bounding
// boxes back up to the root.
func (f *File) Delete(n record.RecordNumber, key record.Value) (bool, error) {
	p, ok := asPoint(key)
	if !ok {
		return false, fmt.Errorf("rtreefile: key is not a POINT: %T", key)
	}
	if !f.deleteFromNode(f.root, int32(n), p) {
		return false, nil
	}
	delete(f.idToPoint, n)
	f.collapseRoot()
	return true, f.save()
}

// collapseRoot keeps the tree's height from growing without bound
// across many deletes: a root whose only child is itself a whole
// subtree is replaced by that child, and a root emptied entirely by
// deletion is replaced by a fresh empty leaf.
func (f *File) collapseRoot() {
	root := f.nodes[f.root]
	if root.Leaf {
		return
	}
	switch len(root.Entries) {
	case 0:
		old := f.root
		f.root = f.allocNode(&node{Leaf: true, Used: true})
		f.releaseNode(old)
	case 1:
		old := f.root
		f.root = root.Entries[0].Child
		f.releaseNode(old)
	}
}

func (f *File) deleteFromNode(ni int, rec int32, p point.Point) bool {
	n := f.nodes[ni]
	if n.Leaf {
		for i, e := range n.Entries {
			if e.Rec == rec && e.Point.Equal(p) {
				n.Entries = append(n.Entries[:i], n.Entries[i+1:]...)
				return true
			}
		}
		return false
	}
	want := rectForPoint(p)
	for i := range n.Entries {
		if !n.Entries[i].MBR.intersects(want) {
			continue
		}
		child := n.Entries[i].Child
		if !f.deleteFromNode(child, rec, p) {
			continue
		}
		if len(f.nodes[child].Entries) == 0 {
			f.releaseNode(child)
			n.Entries = append(n.Entries[:i], n.Entries[i+1:]...)
		} else {
			n.Entries[i].MBR = f.recomputeMBR(child)
		}
		return true
	}
	return false
}

func (f *File) recomputeMBR(ni int) rect {
	n := f.nodes[ni]
	if len(n.Entries) == 0 {
		return rect{}
	}
	return mbrOf(n.Entries)
}

func (f *File) releaseNode(ni int) {
	f.nodes[ni].Used = false
	f.nodes[ni].Entries = nil
	f.free = append(f.free, ni)
}

// Search returns every record number stored at exactly key.
func (f *File) Search(key record.Value) ([]record.RecordNumber, error) {
	p, ok := asPoint(key)
	if !ok {
		return nil, nil
	}
	var out []record.RecordNumber
	f.searchNode(f.root, p, &out)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *File) searchNode(ni int, p point.Point, out *[]record.RecordNumber) {
	n := f.nodes[ni]
	if n.Leaf {
		for _, e := range n.Entries {
			if e.Point.Equal(p) {
				*out = append(*out, record.RecordNumber(e.Rec))
			}
		}
		return
	}
	want := rectForPoint(p)
	for _, e := range n.Entries {
		if e.MBR.intersects(want) {
			f.searchNode(e.Child, p, out)
		}
	}
}

// RangeSearch returns every record number whose point lies within the
// closed rectangle [lo, hi] (componentwise).
func (f *File) RangeSearch(lo, hi record.Value) ([]record.RecordNumber, error) {
	loP, ok1 := asPoint(lo)
	hiP, ok2 := asPoint(hi)
	if !ok1 || !ok2 {
		return nil, nil
	}
	query := rect{MinX: loP.X, MinY: loP.Y, MaxX: hiP.X, MaxY: hiP.Y}
	var out []record.RecordNumber
	f.rangeNode(f.root, query, &out)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *File) rangeNode(ni int, query rect, out *[]record.RecordNumber) {
	n := f.nodes[ni]
	if n.Leaf {
		for _, e := range n.Entries {
			if query.containsPoint(e.Point) {
				*out = append(*out, record.RecordNumber(e.Rec))
			}
		}
		return
	}
	for _, e := range n.Entries {
		if e.MBR.intersects(query) {
			f.rangeNode(e.Child, query, out)
		}
	}
}

// RadiusSearch returns every record number within radius of center: the
// tree is pruned by the circle's bounding box, then each candidate is
// checked against the exact circle.
func (f *File) RadiusSearch(center record.Value, radius float64) ([]record.RecordNumber, error) {
	c, ok := asPoint(center)
	if !ok {
		return nil, fmt.Errorf("rtreefile: center is not a POINT: %T", center)
	}
	query := rect{MinX: c.X - radius, MinY: c.Y - radius, MaxX: c.X + radius, MaxY: c.Y + radius}
	var out []record.RecordNumber
	f.radiusNode(f.root, c, radius, query, &out)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (f *File) radiusNode(ni int, c point.Point, radius float64, query rect, out *[]record.RecordNumber) {
	n := f.nodes[ni]
	if n.Leaf {
		for _, e := range n.Entries {
			if e.Point.IsInCircle(c, radius) {
				*out = append(*out, record.RecordNumber(e.Rec))
			}
		}
		return
	}
	for _, e := range n.Entries {
		if e.MBR.intersects(query) {
			f.radiusNode(e.Child, c, radius, query, out)
		}
	}
}

type knnCand struct {
	rec  record.RecordNumber
	dist float64
}

// KNNSearch returns the k record numbers nearest to center, ties broken
// by ascending record number, using branch-and-bound best-first
// traversal over the tree's bounding boxes (children are visited in
// ascending minDist order, and a subtree is skipped once its minDist
// exceeds the current k-th best distance).
func (f *File) KNNSearch(center record.Value, k int) ([]record.RecordNumber, error) {
	c, ok := asPoint(center)
	if !ok {
		return nil, fmt.Errorf("rtreefile: center is not a POINT: %T", center)
	}
	if k <= 0 {
		return nil, nil
	}
	var best []knnCand
	f.knnNode(f.root, c, k, &best)
	out := make([]record.RecordNumber, len(best))
	for i, cd := range best {
		out[i] = cd.rec
	}
	return out, nil
}

func worstDist(best []knnCand, k int) float64 {
	if len(best) < k {
		return math.Inf(1)
	}
	return best[len(best)-1].dist
}

func insertCand(best []knnCand, k int, cand knnCand) []knnCand {
	if len(best) == k && cand.dist >= worstDist(best, k) {
		return best
	}
	i := sort.Search(len(best), func(i int) bool {
		if best[i].dist != cand.dist {
			return best[i].dist > cand.dist
		}
		return best[i].rec > cand.rec
	})
	best = append(best, knnCand{})
	copy(best[i+1:], best[i:])
	best[i] = cand
	if len(best) > k {
		best = best[:k]
	}
	return best
}

func (f *File) knnNode(ni int, c point.Point, k int, best *[]knnCand) {
	n := f.nodes[ni]
	if n.Leaf {
		for _, e := range n.Entries {
			*best = insertCand(*best, k, knnCand{rec: record.RecordNumber(e.Rec), dist: e.Point.Distance(c)})
		}
		return
	}
	type child struct {
		idx  int
		dist float64
	}
	children := make([]child, len(n.Entries))
	for i, e := range n.Entries {
		children[i] = child{i, e.MBR.minDist(c)}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].dist < children[j].dist })
	for _, ch := range children {
		if ch.dist > worstDist(*best, k) {
			break
		}
		f.knnNode(n.Entries[ch.idx].Child, c, k, best)
	}
}

// Rebuild discards the current tree and repopulates it from scan,
// which a caller (the table manager) supplies as a full active-record
// scan of the record.Store plus the indexed attribute's value per
// record.
func (f *File) Rebuild(scan func() ([]record.RecordNumber, map[record.RecordNumber]record.Value, error)) error {
	nums, values, err := scan()
	if err != nil {
		return err
	}
	f.nodes = nil
	f.free = nil
	f.root = f.allocNode(&node{Leaf: true, Used: true})
	f.idToPoint = make(map[record.RecordNumber]point.Point, len(nums))
	for _, rn := range nums {
		v, ok := values[rn]
		if !ok {
			continue
		}
		p, ok := asPoint(v)
		if !ok {
			continue
		}
		if _, err := f.insertNoSave(rn, p); err != nil {
			return err
		}
	}
	return f.save()
}

// Stats summarizes the index for diagnostics, mirroring the RTreeFile.
// get_stats() exercised by _examples/original_source/tests/test_rtree_file.py
// (total_records, index_type, bounding_box, index_files, operations_supported).
type Stats struct {
	TotalRecords int               `json:"total_records"`
	IndexType    string            `json:"index_type"`
	BoundingBox  *BoundingBox      `json:"bounding_box"`
	IndexFiles   map[string]string `json:"index_files"`
	Operations   []string          `json:"operations_supported"`
}

// BoundingBox is the minimal axis-aligned rectangle containing every
// indexed point.
type BoundingBox struct {
	MinX, MaxX, MinY, MaxY, Width, Height float64
}

// Stats returns the current diagnostic snapshot.
func (f *File) Stats() Stats {
	s := Stats{
		TotalRecords: len(f.idToPoint),
		IndexType:    "R-Tree",
		IndexFiles: map[string]string{
			"dat":  f.dataFile,
			"idx":  f.idxFile,
			"meta": f.metaFile,
		},
		Operations: []string{"exact_search", "range_search", "radius_search", "knn_search"},
	}
	first := true
	var bb BoundingBox
	for _, p := range f.idToPoint {
		if first {
			bb = BoundingBox{MinX: p.X, MaxX: p.X, MinY: p.Y, MaxY: p.Y}
			first = false
			continue
		}
		if p.X < bb.MinX {
			bb.MinX = p.X
		}
		if p.X > bb.MaxX {
			bb.MaxX = p.X
		}
		if p.Y < bb.MinY {
			bb.MinY = p.Y
		}
		if p.Y > bb.MaxY {
			bb.MaxY = p.Y
		}
	}
	if !first {
		bb.Width = bb.MaxX - bb.MinX
		bb.Height = bb.MaxY - bb.MinY
		s.BoundingBox = &bb
	}
	return s
}

// Close flushes the index to disk.
func (f *File) Close() error { return f.save() }
