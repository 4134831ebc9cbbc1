package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// ErrNotFound is a sentinel for a record number that does not exist or
// is already deleted. Get and Delete do not return it; they report such
// a record number through their bool result.
var ErrNotFound = errors.New("record: not found")

// headerSize is the on-disk size of the store's free-list-head header.
const headerSize = 4

// Store owns one fixed-width binary data file: the record layout,
// 1-based record numbers, and free-list deletion (invariant 2) from
// SPEC_FULL.md §4.
type Store struct {
	path   string
	file   *os.File
	layout *Layout
	freeHead int32
}

// Open opens (creating if absent) the data file at path for schema.
func Open(path string, schema Schema) (*Store, error) {
	layout := NewLayout(schema)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("record: open %s: %w", path, err)
	}
	s := &Store{path: path, file: f, layout: layout}
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() < headerSize {
		s.freeHead = -1
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
	} else {
		if err := s.readHeader(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := s.file.ReadAt(buf, 0); err != nil {
		return fmt.Errorf("record: read header: %w", err)
	}
	s.freeHead = int32(binary.LittleEndian.Uint32(buf))
	return nil
}

func (s *Store) writeHeader() error {
	buf := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(buf, uint32(s.freeHead))
	if _, err := s.file.WriteAt(buf, 0); err != nil {
		return fmt.Errorf("record: write header: %w", err)
	}
	return s.file.Sync()
}

func (s *Store) offset(n RecordNumber) int64 {
	return int64(headerSize) + int64(n-1)*int64(s.layout.RecordSize)
}

// Layout exposes the store's computed record layout.
func (s *Store) Layout() *Layout { return s.layout }

// Insert appends rec to the free list's head slot (or a new slot at
// EOF if the free list is empty) and returns the assigned record
// number.
func (s *Store) Insert(rec Record) (RecordNumber, error) {
	var n RecordNumber
	if s.freeHead != -1 {
		n = RecordNumber(s.freeHead)
		buf := make([]byte, s.layout.RecordSize)
		if _, err := s.file.ReadAt(buf, s.offset(n)); err != nil {
			return 0, fmt.Errorf("record: read free slot %d: %w", n, err)
		}
		_, next, err := s.layout.Unpack(buf)
		if err != nil {
			return 0, err
		}
		s.freeHead = next
	} else {
		info, err := s.file.Stat()
		if err != nil {
			return 0, err
		}
		n = RecordNumber((info.Size()-headerSize)/int64(s.layout.RecordSize)) + 1
	}
	buf, err := s.layout.Pack(rec, RecordNormal)
	if err != nil {
		return 0, err
	}
	if _, err := s.file.WriteAt(buf, s.offset(n)); err != nil {
		return 0, fmt.Errorf("record: write slot %d: %w", n, err)
	}
	if err := s.writeHeader(); err != nil {
		return 0, err
	}
	if err := s.file.Sync(); err != nil {
		return 0, err
	}
	return n, nil
}

// Get returns the record stored at n if it is ACTIVE.
func (s *Store) Get(n RecordNumber) (Record, bool, error) {
	buf := make([]byte, s.layout.RecordSize)
	if _, err := s.file.ReadAt(buf, s.offset(n)); err != nil {
		return nil, false, nil
	}
	rec, next, err := s.layout.Unpack(buf)
	if err != nil {
		return nil, false, err
	}
	if next != RecordNormal {
		return nil, false, nil
	}
	return rec, true, nil
}

// Delete marks n as free and links it into the free list (invariant 2).
// It returns false if n was already deleted or out of range.
func (s *Store) Delete(n RecordNumber) (bool, error) {
	_, active, err := s.Get(n)
	if err != nil {
		return false, err
	}
	if !active {
		return false, nil
	}
	nextBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(nextBuf, uint32(s.freeHead))
	if _, err := s.file.WriteAt(nextBuf, s.offset(n)+int64(s.layout.NextOffset)); err != nil {
		return false, fmt.Errorf("record: delete slot %d: %w", n, err)
	}
	s.freeHead = int32(n)
	if err := s.writeHeader(); err != nil {
		return false, err
	}
	return true, s.file.Sync()
}

// recordCount returns the number of allocated slots (active + free).
func (s *Store) recordCount() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return (info.Size() - headerSize) / int64(s.layout.RecordSize), nil
}

// AllRecordNumbers returns every allocated slot number, active or not.
func (s *Store) AllRecordNumbers() ([]RecordNumber, error) {
	count, err := s.recordCount()
	if err != nil {
		return nil, err
	}
	out := make([]RecordNumber, 0, count)
	for i := int64(1); i <= count; i++ {
		out = append(out, RecordNumber(i))
	}
	return out, nil
}

// ActiveRecordNumbers returns every ACTIVE slot number, in ascending order.
func (s *Store) ActiveRecordNumbers() ([]RecordNumber, error) {
	all, err := s.AllRecordNumbers()
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, n := range all {
		_, active, err := s.Get(n)
		if err != nil {
			return nil, err
		}
		if active {
			out = append(out, n)
		}
	}
	return out, nil
}

// Close flushes and closes the underlying file.
func (s *Store) Close() error {
	return s.file.Close()
}
