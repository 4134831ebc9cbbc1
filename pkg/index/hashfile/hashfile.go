// Package hashfile implements index.Index as an extendible hash file
// with overflow chaining, grounded on
// _examples/original_source/tests/test_hash_index.py, which drives
// estructuras.hash's ExtendibleHashFile/Bucket/FB/D through exactly
// this insert/search/split/overflow/delete surface (see DESIGN.md).
package hashfile

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/blake2b"

	"github.com/Jochuuuu/PVSProyectoB/pkg/index"
	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
	"github.com/Jochuuuu/PVSProyectoB/pkg/record"
)

func init() {
	index.Register("hash", newFromConfig)
}

// FB is the maximum number of record numbers a bucket (or overflow
// bucket) holds before it must split or chain an overflow bucket.
const FB = 4

// D is the initial global directory depth.
const D = 1

// entry pairs a record number with the full hash of its key, so that a
// bucket split can redistribute existing entries by their next hash
// bit instead of only steering new inserts.
type entry struct {
	Hash uint64 `json:"hash"`
	RN   int32  `json:"rn"`
}

type bucket struct {
	LocalDepth int
	Records    []entry // len <= FB
	Next       int     // index into buckets of the overflow bucket, -1 if none
}

func (b *bucket) isFull() bool { return len(b.Records) >= FB }

// File is the extendible hash index backend.
type File struct {
	cfg         index.Config
	path        string
	globalDepth int
	directory   []int // directory[i] = index into buckets
	buckets     []*bucket
}

func newFromConfig(cfg index.Config) (index.Index, error) {
	path := filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s_hash.json", cfg.TableName, cfg.AttributeName))
	f := &File{cfg: cfg, path: path}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

type onDisk struct {
	GlobalDepth int       `json:"global_depth"`
	Directory   []int     `json:"directory"`
	Buckets     []*bucket `json:"buckets"`
}

func (f *File) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.globalDepth = D
		f.directory = make([]int, 1<<D)
		root := &bucket{LocalDepth: D, Next: -1}
		f.buckets = []*bucket{root}
		for i := range f.directory {
			f.directory[i] = 0
		}
		return f.save()
	}
	if err != nil {
		return fmt.Errorf("hashfile: read %s: %w", f.path, err)
	}
	var od onDisk
	if err := json.Unmarshal(data, &od); err != nil {
		return fmt.Errorf("hashfile: decode %s: %w", f.path, err)
	}
	f.globalDepth = od.GlobalDepth
	f.directory = od.Directory
	f.buckets = od.Buckets
	return nil
}

func (f *File) save() error {
	od := onDisk{GlobalDepth: f.globalDepth, Directory: f.directory, Buckets: f.buckets}
	data, err := json.MarshalIndent(od, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("hashfile: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, f.path)
}

// Kind implements index.Index.
func (*File) Kind() string { return "hash" }

// hashBin hashes key to a uint64 using blake2b over its canonical
// little-endian byte encoding (SPEC_FULL.md §3).
func hashBin(key record.Value) (uint64, error) {
	b, err := canonicalBytes(key)
	if err != nil {
		return 0, err
	}
	sum := blake2b.Sum256(b)
	return binary.BigEndian.Uint64(sum[:8]), nil
}

func canonicalBytes(v record.Value) ([]byte, error) {
	switch x := v.(type) {
	case int32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, uint32(x))
		return b, nil
	case int:
		return canonicalBytes(int32(x))
	case float64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(int64(x*1e9)))
		return b, nil
	case string:
		return []byte(x), nil
	case bool:
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case point.Point:
		b := make([]byte, 16)
		binary.LittleEndian.PutUint64(b[0:8], uint64(int64(x.X*1e9)))
		binary.LittleEndian.PutUint64(b[8:16], uint64(int64(x.Y*1e9)))
		return b, nil
	default:
		return nil, fmt.Errorf("hashfile: unsupported key type %T", v)
	}
}

func (f *File) dirIndex(h uint64) int {
	mask := uint64(1<<f.globalDepth) - 1
	return int(h & mask)
}

// Insert adds (n, key). A duplicate (n, key) pair already present is a
// no-op (callers enforce PK uniqueness separately, at the table layer).
func (f *File) Insert(n record.RecordNumber, key record.Value) error {
	h, err := hashBin(key)
	if err != nil {
		return err
	}
	for bi := f.directory[f.dirIndex(h)]; bi != -1; bi = f.buckets[bi].Next {
		for _, e := range f.buckets[bi].Records {
			if e.Hash == h && record.RecordNumber(e.RN) == n {
				return nil
			}
		}
	}
	return f.insertHash(h, n)
}

func (f *File) insertHash(h uint64, n record.RecordNumber) error {
	bi := f.directory[f.dirIndex(h)]
	b := f.buckets[bi]
	if !b.isFull() {
		b.Records = append(b.Records, entry{Hash: h, RN: int32(n)})
		return f.save()
	}
	// Bucket full: if local depth < global depth, split it so entries
	// redistribute; otherwise double the directory first.
	if b.LocalDepth == f.globalDepth {
		f.doubleDirectory()
	}
	f.splitBucket(bi)
	// Retry insert now that the bucket has room (splitting may still
	// leave one sibling full if every entry shares the new hash bit; in
	// that case chain an overflow bucket rather than split forever).
	bi = f.directory[f.dirIndex(h)]
	b = f.buckets[bi]
	if !b.isFull() {
		b.Records = append(b.Records, entry{Hash: h, RN: int32(n)})
		return f.save()
	}
	f.chainOverflow(bi, entry{Hash: h, RN: int32(n)})
	return f.save()
}

func (f *File) doubleDirectory() {
	old := f.directory
	f.globalDepth++
	f.directory = make([]int, len(old)*2)
	copy(f.directory, old)
	copy(f.directory[len(old):], old)
}

// splitBucket splits bi into two buckets at one greater local depth and
// redistributes every entry currently reachable from bi (including its
// overflow chain) between the two by the newly significant hash bit,
// per SPEC_FULL.md §4.3's "redistribute entries by the next hash bit".
func (f *File) splitBucket(bi int) {
	old := f.buckets[bi]
	newLocal := old.LocalDepth + 1
	sibling := &bucket{LocalDepth: newLocal, Next: -1}
	f.buckets = append(f.buckets, sibling)
	siblingIdx := len(f.buckets) - 1

	// Collect every entry in bi's chain (bucket plus any overflow
	// links), then clear the chain: redistribution may shrink the
	// entry count enough that the overflow links are no longer needed.
	var all []entry
	for cur := bi; cur != -1; {
		b := f.buckets[cur]
		all = append(all, b.Records...)
		next := b.Next
		if cur != bi {
			b.Records = nil
			b.Next = -1
		}
		cur = next
	}
	old.LocalDepth = newLocal
	old.Records = nil
	old.Next = -1

	highBit := uint64(1) << (newLocal - 1)
	for _, e := range all {
		if e.Hash&highBit != 0 {
			f.chainOverflow(siblingIdx, e)
		} else {
			f.chainOverflow(bi, e)
		}
	}

	// Repoint half of the directory slots that pointed at bi over to
	// the new sibling bucket.
	for i, target := range f.directory {
		if target != bi {
			continue
		}
		if uint64(i)&highBit != 0 {
			f.directory[i] = siblingIdx
		}
	}
}

// chainOverflow appends e to bi's chain, using bi's own bucket if it
// has room and otherwise walking (or extending) its overflow links.
func (f *File) chainOverflow(bi int, e entry) {
	cur := bi
	for {
		b := f.buckets[cur]
		if !b.isFull() {
			b.Records = append(b.Records, e)
			return
		}
		if b.Next == -1 {
			overflow := &bucket{LocalDepth: b.LocalDepth, Next: -1, Records: []entry{e}}
			f.buckets = append(f.buckets, overflow)
			b.Next = len(f.buckets) - 1
			return
		}
		cur = b.Next
	}
}

// Search returns every record number indexed under key, across the
// bucket chain. Entries are matched by their full 64-bit key hash, so
// other keys sharing the bucket are not returned.
func (f *File) Search(key record.Value) ([]record.RecordNumber, error) {
	h, err := hashBin(key)
	if err != nil {
		return nil, err
	}
	bi := f.directory[f.dirIndex(h)]
	var out []record.RecordNumber
	for bi != -1 {
		b := f.buckets[bi]
		for _, e := range b.Records {
			if e.Hash == h {
				out = append(out, record.RecordNumber(e.RN))
			}
		}
		bi = b.Next
	}
	return out, nil
}

// Delete removes the entry (n, key). Duplicate-keyed hash buckets
// (non-is_key attributes) may hold several records under the same key;
// only the matching record number is removed.
func (f *File) Delete(n record.RecordNumber, key record.Value) (bool, error) {
	h, err := hashBin(key)
	if err != nil {
		return false, err
	}
	bi := f.directory[f.dirIndex(h)]
	for bi != -1 {
		b := f.buckets[bi]
		for i, e := range b.Records {
			if record.RecordNumber(e.RN) == n {
				b.Records = append(b.Records[:i], b.Records[i+1:]...)
				return true, f.save()
			}
		}
		bi = b.Next
	}
	return false, nil
}

// RangeSearch is not supported on the hash index (spec.md §4.3).
func (f *File) RangeSearch(lo, hi record.Value) ([]record.RecordNumber, error) {
	return nil, index.ErrRangeUnsupported
}

// Close flushes the index to disk.
func (f *File) Close() error { return f.save() }
