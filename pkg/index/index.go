// Package index defines the pluggable secondary-index interface and a
// self-registering constructor registry, modeled directly on
// perkeep.org's pkg/sorted.KeyValue family (see DESIGN.md).
package index

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

// ErrNotFound is a sentinel for an absent key. The built-in backends do
// not return it: Search reports an absent key with an empty result and
// Delete with false.
var ErrNotFound = errors.New("index: key not found")

// ErrRangeUnsupported is returned by RangeSearch on index kinds that do
// not support ordered range scans (the extendible hash index).
var ErrRangeUnsupported = errors.New("index: range search not supported by this index kind")

// Index is the common contract every secondary-index backend
// implements.
type Index interface {
	// Kind returns the registered backend name ("hash", "avl", "rtree").
	Kind() string

	// Insert adds (n, key) to the index.
	Insert(n record.RecordNumber, key record.Value) error

	// Delete removes the entry matching key and record number n. It
	// reports whether an entry was removed.
	Delete(n record.RecordNumber, key record.Value) (bool, error)

	// Search returns every record number stored under key.
	Search(key record.Value) ([]record.RecordNumber, error)

	// RangeSearch returns every record number whose key lies in the
	// closed interval [lo, hi]. Returns ErrRangeUnsupported on index
	// kinds that cannot order their keys.
	RangeSearch(lo, hi record.Value) ([]record.RecordNumber, error)

	// Close flushes and releases any open file handles.
	Close() error
}

// SpatialIndex is implemented additionally by index kinds that support
// spatial predicates (currently only "rtree").
type SpatialIndex interface {
	Index

	RadiusSearch(center record.Value, radius float64) ([]record.RecordNumber, error)
	KNNSearch(center record.Value, k int) ([]record.RecordNumber, error)
	Rebuild(scan func() ([]record.RecordNumber, map[record.RecordNumber]record.Value, error)) error
}

// Config is the set of parameters passed to a backend's constructor.
type Config struct {
	// Dir is the directory index files are stored under.
	Dir string
	// TableName is the owning table's name.
	TableName string
	// AttributeName is the indexed attribute's name.
	AttributeName string
	// AttributeType is the indexed attribute's data type.
	AttributeType record.DataType
	// AttributeSize is the indexed attribute's VARCHAR/CHAR byte size.
	AttributeSize int
	// IsKey indicates whether the indexed attribute enforces uniqueness.
	IsKey bool
}

// Constructor opens or creates a backend's on-disk files for cfg.
type Constructor func(cfg Config) (Index, error)

var (
	mu    sync.Mutex
	ctors = map[string]Constructor{}
)

// Register registers a backend constructor under kind. It panics on a
// duplicate kind, matching jsonconfig's/sorted's registration idiom
// (a duplicate registration is a programming error, not a runtime one).
func Register(kind string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := ctors[kind]; dup {
		panic("index: Register called twice for kind " + kind)
	}
	ctors[kind] = ctor
}

// New opens the index backend registered under kind.
func New(kind string, cfg Config) (Index, error) {
	mu.Lock()
	ctor, ok := ctors[kind]
	mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("index: unknown kind %q", kind)
	}
	return ctor(cfg)
}
