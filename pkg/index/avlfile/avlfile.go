// Package avlfile implements index.Index as a height-balanced binary
// search tree persisted as an array of fixed-size node slots with
// free-list reuse, grounded on
// _examples/original_source/tests/test_avl_index.py, which drives an
// AVLFile (`t.indices[...]`, "usa AVLFile.insert_record y rebalancea")
// through insert/search/range_search/delete across int, string, and
// POINT keys (see DESIGN.md).
package avlfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func init() {
	index.Register("avl", newFromConfig)
}

type node struct {
	Key    record.Value
	Rec    int32
	Left   int
	Right  int
	Height int
	Used   bool
}

// File is the AVL-tree index backend.
type File struct {
	cfg   index.Config
	path  string
	root  int
	nodes []*node
	free  []int
}

func newFromConfig(cfg index.Config) (index.Index, error) {
	path := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s_avl.json", cfg.TableName, cfg.AttributeName))
	f := &File{cfg: cfg, path: path, root: -1}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

type onDisk struct {
	Root  int     `json:"root"`
	Nodes []*node `json:"nodes"`
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.root = -1
		return f.save()
	}
	if err != nil {
		return fmt.Errorf("avlfile: read %s: %w", f.path, err)
	}
	var od onDisk
	if err := json.Unmarshal(data, &od); err != nil {
		return fmt.Errorf("avlfile: decode %s: %w", f.path, err)
	}
	f.root = od.Root
	f.nodes = od.Nodes
	for i, n := range f.nodes {
		if n == nil {
			continue
		}
		// json.Unmarshal decodes Key (a bare record.Value interface)
		// into encoding/json's generic representation (float64, map,
		// ...) rather than the attribute's real Go type; coerce it back
		// so compareKeys' type switch sees int32/float64/string/bool/
		// point.Point exactly as a live Insert would have produced.
		n.Key = coerceKey(n.Key, f.cfg.AttributeType)
		if !n.Used {
			f.free = append(f.free, i)
		}
	}
	return nil
}

// coerceKey converts a value decoded generically by encoding/json back
// into the concrete Go type record.Value holds for data type t.
func coerceKey(raw record.Value, t record.DataType) record.Value {
	switch t {
	case record.TypeInt, record.TypeDate:
		if f, ok := raw.(float64); ok {
			return int32(f)
		}
	case record.TypeFloat:
		if f, ok := raw.(float64); ok {
			return f
		}
	case record.TypeBool:
		if b, ok := raw.(bool); ok {
			return b
		}
	case record.TypeVarchar, record.TypeChar:
		if s, ok := raw.(string); ok {
			return s
		}
	case record.TypePoint:
		if m, ok := raw.(map[string]interface{}); ok {
			x, _ := m["X"].(float64)
			y, _ := m["Y"].(float64)
			return point.New(x, y)
		}
	}
	return raw
}

func (f *File) save() error {
	od := onDisk{Root: f.root, Nodes: f.nodes}
	data, err := json.MarshalIndent(od, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("avlfile: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, f.path)
}

// Kind implements index.Index.
func (*File) Kind() string { return "avl" }

// compareKeys orders two values of the same underlying type; int32 and
// float64 compare numerically, string lexically, bool false-before-true,
// and point.Point by the distance-to-origin total order (see the POINT
// case below).
func compareKeys(a, b record.Value) int {
	switch x := a.(type) {
	case int32:
		y := b.(int32)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		y := b.(string)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case bool:
		y := b.(bool)
		if x == y {
			return 0
		}
		if !x && y {
			return -1
		}
		return 1
	case point.Point:
		y := b.(point.Point)
		if x.Equal(y) {
			return 0
		}
		// Total order for balancing is distance-to-origin (resolved
		// Open Question (a), SPEC_FULL.md §12); ties broken by x then y
		// so equal-magnitude, distinct points still order consistently.
		mx, my := x.Magnitude(), y.Magnitude()
		switch {
		case mx < my:
			return -1
		case mx > my:
			return 1
		}
		switch {
		case x.X != y.X:
			if x.X < y.X {
				return -1
			}
			return 1
		default:
			if x.Y < y.Y {
				return -1
			}
			return 1
		}
	default:
		panic(fmt.Sprintf("avlfile: unsupported key type %T", a))
	}
}

func (f *File) height(i int) int {
	if i == -1 {
		return 0
	}
	return f.nodes[i].Height
}

func (f *File) updateHeight(i int) {
	n := f.nodes[i]
	l, r := f.height(n.Left), f.height(n.Right)
	if l > r {
		n.Height = l + 1
	} else {
		n.Height = r + 1
	}
}

func (f *File) balanceFactor(i int) int {
	n := f.nodes[i]
	return f.height(n.Left) - f.height(n.Right)
}

func (f *File) rotateRight(i int) int {
	n := f.nodes[i]
	l := n.Left
	n.Left = f.nodes[l].Right
	f.nodes[l].Right = i
	f.updateHeight(i)
	f.updateHeight(l)
	return l
}

func (f *File) rotateLeft(i int) int {
	n := f.nodes[i]
	r := n.Right
	n.Right = f.nodes[r].Left
	f.nodes[r].Left = i
	f.updateHeight(i)
	f.updateHeight(r)
	return r
}

func (f *File) rebalance(i int) int {
	f.updateHeight(i)
	bf := f.balanceFactor(i)
	if bf > 1 {
		if f.balanceFactor(f.nodes[i].Left) < 0 {
			f.nodes[i].Left = f.rotateLeft(f.nodes[i].Left)
		}
		return f.rotateRight(i)
	}
	if bf < -1 {
		if f.balanceFactor(f.nodes[i].Right) > 0 {
			f.nodes[i].Right = f.rotateRight(f.nodes[i].Right)
		}
		return f.rotateLeft(i)
	}
	return i
}

func (f *File) allocNode(key record.Value, rec int32) int {
	n := &node{Key: key, Rec: rec, Left: -1, Right: -1, Height: 1, Used: true}
	if len(f.free) > 0 {
		idx := f.free[len(f.free)-1]
		f.free = f.free[:len(f.free)-1]
		f.nodes[idx] = n
		return idx
	}
	f.nodes = append(f.nodes, n)
	return len(f.nodes) - 1
}

// Insert adds (n, key). Duplicate keys are permitted (non-is_key
// attributes); insert always descends right on a tie. Later rotations
// can move part of a duplicate run into a left subtree, so Search and
// Delete look on both sides of an equal key.
func (f *File) Insert(n record.RecordNumber, key record.Value) error {
	f.root = f.insert(f.root, key, int32(n))
	return f.save()
}

func (f *File) insert(i int, key record.Value, rec int32) int {
	if i == -1 {
		return f.allocNode(key, rec)
	}
	if compareKeys(key, f.nodes[i].Key) < 0 {
		f.nodes[i].Left = f.insert(f.nodes[i].Left, key, rec)
	} else {
		f.nodes[i].Right = f.insert(f.nodes[i].Right, key, rec)
	}
	return f.rebalance(i)
}

// Search returns every record number stored under key.
func (f *File) Search(key record.Value) ([]record.RecordNumber, error) {
	var out []record.RecordNumber
	f.searchAll(f.root, key, &out)
	return out, nil
}

func (f *File) searchAll(i int, key record.Value, out *[]record.RecordNumber) {
	if i == -1 {
		return
	}
	n := f.nodes[i]
	c := compareKeys(key, n.Key)
	if c < 0 {
		f.searchAll(n.Left, key, out)
		return
	}
	if c == 0 {
		*out = append(*out, record.RecordNumber(n.Rec))
		// duplicates were inserted to the right, but rotations can
		// carry some of them into the left subtree.
		f.searchAll(n.Left, key, out)
	}
	f.searchAll(n.Right, key, out)
}

// RangeSearch returns every record number whose key falls in the closed
// interval [lo, hi]. For POINT keys this is componentwise containment
// (SPEC_FULL.md §12 resolution), not a distance-to-origin interval.
func (f *File) RangeSearch(lo, hi record.Value) ([]record.RecordNumber, error) {
	var out []record.RecordNumber
	if loP, ok := lo.(point.Point); ok {
		hiP := hi.(point.Point)
		f.rangeAll(f.root, func(k record.Value) bool {
			return k.(point.Point).IsInRange(loP, hiP)
		}, &out)
		return out, nil
	}
	f.rangeAll(f.root, func(k record.Value) bool {
		return compareKeys(k, lo) >= 0 && compareKeys(k, hi) <= 0
	}, &out)
	return out, nil
}

func (f *File) rangeAll(i int, within func(record.Value) bool, out *[]record.RecordNumber) {
	if i == -1 {
		return
	}
	n := f.nodes[i]
	f.rangeAll(n.Left, within, out)
	if within(n.Key) {
		*out = append(*out, record.RecordNumber(n.Rec))
	}
	f.rangeAll(n.Right, within, out)
}

// Delete removes the entry (n, key) if present.
func (f *File) Delete(n record.RecordNumber, key record.Value) (bool, error) {
	removed := false
	f.root = f.delete(f.root, key, int32(n), &removed)
	if !removed {
		return false, nil
	}
	return true, f.save()
}

func (f *File) delete(i int, key record.Value, rec int32, removed *bool) int {
	if i == -1 {
		return -1
	}
	nd := f.nodes[i]
	c := compareKeys(key, nd.Key)
	switch {
	case c < 0:
		nd.Left = f.delete(nd.Left, key, rec, removed)
	case c > 0:
		nd.Right = f.delete(nd.Right, key, rec, removed)
	default:
		if nd.Rec != rec {
			// same key, different record: keep searching the duplicate
			// run, right subtree first, then the left one (rotations can
			// move duplicates there).
			nd.Right = f.delete(nd.Right, key, rec, removed)
			if !*removed {
				nd.Left = f.delete(nd.Left, key, rec, removed)
			}
			break
		}
		*removed = true
		if nd.Left == -1 {
			r := nd.Right
			f.releaseNode(i)
			return r
		}
		if nd.Right == -1 {
			l := nd.Left
			f.releaseNode(i)
			return l
		}
		succ := f.min(nd.Right)
		nd.Key, nd.Rec = f.nodes[succ].Key, f.nodes[succ].Rec
		succRec := f.nodes[succ].Rec
		succKey := f.nodes[succ].Key
		wasRemoved := false
		nd.Right = f.delete(nd.Right, succKey, succRec, &wasRemoved)
	}
	if i == -1 {
		return -1
	}
	return f.rebalance(i)
}

func (f *File) min(i int) int {
	for f.nodes[i].Left != -1 {
		i = f.nodes[i].Left
	}
	return i
}

func (f *File) releaseNode(i int) {
	f.nodes[i].Used = false
	f.free = append(f.free, i)
}

// Close flushes the index to disk.
func (f *File) Close() error { return f.save() }
