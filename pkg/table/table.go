// Package table implements the table manager: the component that owns
// one record.Store plus its secondary indices and dispatches
// SELECT/INSERT/DELETE/IMPORT per the query-planning table in
// SPEC_FULL.md §7, grounded on _examples/original_source/tests/test_tabla.py,
// test_avl_index.py, test_hash_index.py, test_rtree_file.py, and
// test_delete_tabla.py, which together exercise TableStorageManager's
// insert/select/delete/indices-dict/spatial_*_search surface against
// every index kind (see DESIGN.md).
package table

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go4.org/syncutil"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	_ "github.com/Jochuuuu/PVSProyectoB/pkg/index/avlfile"
	_ "github.com/Jochuuuu/PVSProyectoB/pkg/index/hashfile"
	_ "github.com/Jochuuuu/PVSProyectoB/pkg/index/rtreefile"
	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

// Manager owns one table's record store and its secondary indices.
type Manager struct {
	dir     string
	schema  record.Schema
	store   *record.Store
	indices map[string]index.Index // attribute name -> index
}

// ExactFilter matches attr = value.
type ExactFilter struct {
	Attr  string
	Value record.Value
}

// RangeFilter matches attr in the closed interval [Lo, Hi].
type RangeFilter struct {
	Attr   string
	Lo, Hi record.Value
}

// SpatialKind distinguishes RADIUS from KNN spatial predicates.
type SpatialKind int

const (
	SpatialRadius SpatialKind = iota
	SpatialKNN
)

// SpatialFilter matches a RADIUS(attr, center, r) or KNN(attr, center, k)
// predicate.
type SpatialFilter struct {
	Attr   string
	Kind   SpatialKind
	Center point.Point
	Radius float64
	K      int
}

// Result is the set of records produced by a SELECT.
type Result struct {
	Columns []string
	Rows    []record.Record
	RecNums []record.RecordNumber
}

type metaFile struct {
	TableName  string           `json:"table_name"`
	Attributes []metaAttribute  `json:"attributes"`
	PrimaryKey string           `json:"primary_key"`
}

type metaAttribute struct {
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Size      int    `json:"size,omitempty"`
	IsKey     bool   `json:"is_key"`
	IndexKind string `json:"index,omitempty"`
}

func dataTypeName(t record.DataType) string { return t.String() }

func parseDataType(s string) record.DataType {
	switch s {
	case "INT":
		return record.TypeInt
	case "DECIMAL", "FLOAT", "DOUBLE":
		return record.TypeFloat
	case "BOOL":
		return record.TypeBool
	case "DATE":
		return record.TypeDate
	case "CHAR":
		return record.TypeChar
	case "POINT":
		return record.TypePoint
	default:
		return record.TypeVarchar
	}
}

// Create creates a brand-new table under dir with the given schema,
// writing its metadata and opening its store and indices.
func Create(dir string, schema record.Schema) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := writeMeta(dir, schema); err != nil {
		return nil, err
	}
	return Open(dir, schema.Table)
}

func writeMeta(dir string, schema record.Schema) error {
	mf := metaFile{TableName: schema.Table, PrimaryKey: schema.PrimaryKey}
	for _, a := range schema.Attributes {
		mf.Attributes = append(mf.Attributes, metaAttribute{
			Name: a.Name, DataType: dataTypeName(a.Type), Size: a.Size,
			IsKey: a.IsKey, IndexKind: a.Index,
		})
	}
	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(dir, schema.Table+"_meta.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("table: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func readMeta(dir, tableName string) (record.Schema, error) {
	path := filepath.Join(dir, tableName+"_meta.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return record.Schema{}, fmt.Errorf("table: read %s: %w", path, err)
	}
	var mf metaFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return record.Schema{}, fmt.Errorf("table: decode %s: %w", path, err)
	}
	schema := record.Schema{Table: mf.TableName, PrimaryKey: mf.PrimaryKey}
	for _, a := range mf.Attributes {
		schema.Attributes = append(schema.Attributes, record.Attribute{
			Name: a.Name, Type: parseDataType(a.DataType), Size: a.Size,
			IsKey: a.IsKey, Index: a.IndexKind,
		})
	}
	return schema, nil
}

// Open opens an existing table's metadata, store, and indices from dir.
func Open(dir, tableName string) (*Manager, error) {
	schema, err := readMeta(dir, tableName)
	if err != nil {
		return nil, err
	}
	store, err := record.Open(filepath.Join(dir, tableName+".bin"), schema)
	if err != nil {
		return nil, err
	}
	m := &Manager{dir: dir, schema: schema, store: store, indices: map[string]index.Index{}}
	if err := m.openIndices(); err != nil {
		store.Close()
		return nil, err
	}
	return m, nil
}

// openIndices opens every attribute's configured index concurrently,
// one goroutine per index (SPEC_FULL.md §3), mirroring
// pkg/blobserver/blobhub.go's syncutil.Group usage in the teacher.
func (m *Manager) openIndices() error {
	var grp syncutil.Group
	var mu indexResults
	for _, a := range m.schema.Attributes {
		if a.Index == "" {
			continue
		}
		a := a
		grp.Go(func() error {
			idx, err := index.New(a.Index, index.Config{
				Dir: m.dir, TableName: m.schema.Table, AttributeName: a.Name,
				AttributeType: a.Type, AttributeSize: a.Size, IsKey: a.IsKey,
			})
			if err != nil {
				return fmt.Errorf("table: open index %s.%s: %w", m.schema.Table, a.Name, err)
			}
			mu.set(a.Name, idx)
			return nil
		})
	}
	if err := grp.Err(); err != nil {
		return err
	}
	m.indices = mu.m
	return nil
}

// indexResults collects concurrent index-open results under a mutex.
type indexResults struct {
	mu sync.Mutex
	m  map[string]index.Index
}

func (r *indexResults) set(name string, idx index.Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		r.m = map[string]index.Index{}
	}
	r.m[name] = idx
}

// Schema returns the table's schema.
func (m *Manager) Schema() record.Schema { return m.schema }

// Insert adds rec, enforcing uniqueness on every is_key attribute
// (resolved Open Question (b), SPEC_FULL.md §12), then updating every
// secondary index.
func (m *Manager) Insert(rec record.Record) (record.RecordNumber, error) {
	for i, a := range m.schema.Attributes {
		if !a.IsKey {
			continue
		}
		exists, err := m.valueExists(a.Name, rec[i])
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("table: duplicate value for key attribute %q", a.Name)
		}
	}
	n, err := m.store.Insert(rec)
	if err != nil {
		return 0, err
	}
	for i, a := range m.schema.Attributes {
		idx, ok := m.indices[a.Name]
		if !ok {
			continue
		}
		if err := idx.Insert(n, rec[i]); err != nil {
			return 0, err
		}
	}
	return n, nil
}

func (m *Manager) valueExists(attr string, v record.Value) (bool, error) {
	if idx, ok := m.indices[attr]; ok {
		found, err := idx.Search(v)
		if err != nil {
			return false, err
		}
		verified, err := m.verifyExact(attr, v, found)
		if err != nil {
			return false, err
		}
		return len(verified) > 0, nil
	}
	pos := m.schema.AttributeIndex(attr)
	nums, err := m.store.ActiveRecordNumbers()
	if err != nil {
		return false, err
	}
	for _, n := range nums {
		rec, ok, err := m.store.Get(n)
		if err != nil {
			return false, err
		}
		if ok && valuesEqual(rec[pos], v) {
			return true, nil
		}
	}
	return false, nil
}

func valuesEqual(a, b record.Value) bool {
	if pa, ok := a.(point.Point); ok {
		pb, ok2 := b.(point.Point)
		return ok2 && pa.Equal(pb)
	}
	return a == b
}

// Select runs the filter-kind -> access-path plan from SPEC_FULL.md §7
// and returns the intersection of every filter's candidate set, or
// every active record if no filters are given.
func (m *Manager) Select(exact []ExactFilter, ranges []RangeFilter, spatial []SpatialFilter, projected []string) (Result, error) {
	var sets [][]record.RecordNumber

	for _, f := range exact {
		nums, err := m.planExact(f)
		if err != nil {
			return Result{}, err
		}
		sets = append(sets, nums)
	}
	for _, f := range ranges {
		nums, err := m.planRange(f)
		if err != nil {
			return Result{}, err
		}
		sets = append(sets, nums)
	}
	for _, f := range spatial {
		nums, err := m.planSpatial(f)
		if err != nil {
			return Result{}, err
		}
		sets = append(sets, nums)
	}

	var final []record.RecordNumber
	if len(sets) == 0 {
		all, err := m.store.ActiveRecordNumbers()
		if err != nil {
			return Result{}, err
		}
		final = all
	} else {
		final = intersect(sets)
	}

	return m.materialize(final, projected)
}

func (m *Manager) planExact(f ExactFilter) ([]record.RecordNumber, error) {
	if idx, ok := m.indices[f.Attr]; ok {
		cands, err := idx.Search(f.Value)
		if err != nil {
			return nil, err
		}
		return m.verifyExact(f.Attr, f.Value, cands)
	}
	return m.scanFilter(f.Attr, func(v record.Value) bool { return valuesEqual(v, f.Value) })
}

// verifyExact re-checks each index-reported candidate against the
// record actually stored at that attribute (spec.md §4.3: Search
// "filter[s] by comparing the index attribute retrieved from the
// record store"). This guards against hash false positives: the hash
// index matches entries by a 64-bit key hash, which two distinct values
// can share.
func (m *Manager) verifyExact(attr string, want record.Value, cands []record.RecordNumber) ([]record.RecordNumber, error) {
	pos := m.schema.AttributeIndex(attr)
	if pos == -1 {
		return nil, fmt.Errorf("table: unknown attribute %q", attr)
	}
	var out []record.RecordNumber
	for _, n := range cands {
		rec, ok, err := m.store.Get(n)
		if err != nil {
			return nil, err
		}
		if ok && valuesEqual(rec[pos], want) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *Manager) planRange(f RangeFilter) ([]record.RecordNumber, error) {
	if idx, ok := m.indices[f.Attr]; ok {
		nums, err := idx.RangeSearch(f.Lo, f.Hi)
		if err != index.ErrRangeUnsupported {
			return nums, err
		}
	}
	pos := m.schema.AttributeIndex(f.Attr)
	attrType := m.schema.Attributes[pos].Type
	return m.scanFilter(f.Attr, func(v record.Value) bool { return inRange(v, f.Lo, f.Hi, attrType) })
}

func inRange(v, lo, hi record.Value, t record.DataType) bool {
	if t == record.TypePoint {
		p, ok := v.(point.Point)
		if !ok {
			return false
		}
		return p.IsInRange(lo.(point.Point), hi.(point.Point))
	}
	return compareGE(v, lo) && compareLE(v, hi)
}

func compareGE(v, lo record.Value) bool {
	switch x := v.(type) {
	case int32:
		return x >= lo.(int32)
	case float64:
		return x >= lo.(float64)
	case string:
		return x >= lo.(string)
	}
	return false
}

func compareLE(v, hi record.Value) bool {
	switch x := v.(type) {
	case int32:
		return x <= hi.(int32)
	case float64:
		return x <= hi.(float64)
	case string:
		return x <= hi.(string)
	}
	return false
}

func (m *Manager) planSpatial(f SpatialFilter) ([]record.RecordNumber, error) {
	idx, ok := m.indices[f.Attr]
	if !ok {
		return nil, fmt.Errorf("table: spatial predicate on %q requires an rtree index", f.Attr)
	}
	sp, ok := idx.(index.SpatialIndex)
	if !ok {
		return nil, fmt.Errorf("table: index on %q does not support spatial queries", f.Attr)
	}
	switch f.Kind {
	case SpatialRadius:
		return sp.RadiusSearch(f.Center, f.Radius)
	case SpatialKNN:
		return sp.KNNSearch(f.Center, f.K)
	default:
		return nil, fmt.Errorf("table: unknown spatial filter kind")
	}
}

func (m *Manager) scanFilter(attr string, keep func(record.Value) bool) ([]record.RecordNumber, error) {
	pos := m.schema.AttributeIndex(attr)
	if pos == -1 {
		return nil, fmt.Errorf("table: unknown attribute %q", attr)
	}
	nums, err := m.store.ActiveRecordNumbers()
	if err != nil {
		return nil, err
	}
	var out []record.RecordNumber
	for _, n := range nums {
		rec, ok, err := m.store.Get(n)
		if err != nil {
			return nil, err
		}
		if ok && keep(rec[pos]) {
			out = append(out, n)
		}
	}
	return out, nil
}

func intersect(sets [][]record.RecordNumber) []record.RecordNumber {
	counts := map[record.RecordNumber]int{}
	for _, s := range sets {
		seen := map[record.RecordNumber]bool{}
		for _, n := range s {
			if !seen[n] {
				counts[n]++
				seen[n] = true
			}
		}
	}
	var out []record.RecordNumber
	for n, c := range counts {
		if c == len(sets) {
			out = append(out, n)
		}
	}
	sortRecordNumbers(out)
	return out
}

func sortRecordNumbers(nums []record.RecordNumber) {
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}
}

func (m *Manager) materialize(nums []record.RecordNumber, projected []string) (Result, error) {
	cols := projected
	if len(cols) == 0 {
		for _, a := range m.schema.Attributes {
			cols = append(cols, a.Name)
		}
	}
	res := Result{Columns: cols}
	for _, n := range nums {
		rec, ok, err := m.store.Get(n)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		row := make(record.Record, len(cols))
		for i, c := range cols {
			pos := m.schema.AttributeIndex(c)
			if pos == -1 {
				return Result{}, fmt.Errorf("table: unknown projected column %q", c)
			}
			row[i] = rec[pos]
		}
		res.Rows = append(res.Rows, row)
		res.RecNums = append(res.RecNums, n)
	}
	return res, nil
}

// ErrDeleteRequiresFilter is returned by Delete when no filters are
// supplied; spec.md §4.6 mandates WHERE on every DELETE.
var ErrDeleteRequiresFilter = fmt.Errorf("table: DELETE without WHERE is not allowed")

// Delete removes every record matching the given filters (which must
// be non-empty) from every index, then from the store.
// Delete removes every record matching the given filters and reports
// the record numbers actually deleted (SPEC_FULL.md §6's "deleted
// record numbers" envelope field).
func (m *Manager) Delete(exact []ExactFilter, ranges []RangeFilter, spatial []SpatialFilter) ([]record.RecordNumber, error) {
	if len(exact) == 0 && len(ranges) == 0 && len(spatial) == 0 {
		return nil, ErrDeleteRequiresFilter
	}
	sel, err := m.Select(exact, ranges, spatial, nil)
	if err != nil {
		return nil, err
	}
	var deletedNums []record.RecordNumber
	for i, n := range sel.RecNums {
		rec := sel.Rows[i]
		for j, a := range m.schema.Attributes {
			if idx, ok := m.indices[a.Name]; ok {
				if _, err := idx.Delete(n, rec[j]); err != nil {
					return deletedNums, err
				}
			}
		}
		deleted, err := m.store.Delete(n)
		if err != nil {
			return deletedNums, err
		}
		if deleted {
			deletedNums = append(deletedNums, n)
		}
	}
	return deletedNums, nil
}

// Close closes the store and every secondary index.
func (m *Manager) Close() error {
	var firstErr error
	for _, idx := range m.indices {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := m.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
