package record

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
)

// Layout computes byte offsets and sizes for a Schema's fixed-width
// record format: attribute values packed little-endian in schema order,
// followed by a trailing 4-byte "next" free-list field (record layout,
// SPEC_FULL.md §4).
type Layout struct {
	Schema     Schema
	offsets    []int
	sizes      []int
	RecordSize int // total bytes per slot, including the trailing next field
	NextOffset int
}

// NewLayout computes a Layout for schema.
func NewLayout(schema Schema) *Layout {
	l := &Layout{Schema: schema}
	off := 0
	for _, a := range schema.Attributes {
		l.offsets = append(l.offsets, off)
		sz := attributeSize(a)
		l.sizes = append(l.sizes, sz)
		off += sz
	}
	l.NextOffset = off
	l.RecordSize = off + 4
	return l
}

func attributeSize(a Attribute) int {
	switch a.Type {
	case TypeInt, TypeDate:
		return 4
	case TypeFloat:
		return 8
	case TypeBool:
		return 1
	case TypeVarchar, TypeChar:
		return a.Size
	case TypePoint:
		return 16
	default:
		return 0
	}
}

// Pack encodes rec and the next-pointer into a RecordSize-byte slice.
func (l *Layout) Pack(rec Record, next int32) ([]byte, error) {
	buf := make([]byte, l.RecordSize)
	for i, a := range l.Schema.Attributes {
		if i >= len(rec) {
			return nil, fmt.Errorf("record: missing value for attribute %q", a.Name)
		}
		if err := l.packOne(buf[l.offsets[i]:l.offsets[i]+l.sizes[i]], a, rec[i]); err != nil {
			return nil, err
		}
	}
	binary.LittleEndian.PutUint32(buf[l.NextOffset:l.NextOffset+4], uint32(next))
	return buf, nil
}

func (l *Layout) packOne(dst []byte, a Attribute, v Value) error {
	switch a.Type {
	case TypeInt, TypeDate:
		n, ok := toInt32(v)
		if !ok {
			return &ErrTypeMismatch{a.Name, a.Type, v}
		}
		binary.LittleEndian.PutUint32(dst, uint32(n))
	case TypeFloat:
		f, ok := toFloat64(v)
		if !ok {
			return &ErrTypeMismatch{a.Name, a.Type, v}
		}
		binary.LittleEndian.PutUint64(dst, math.Float64bits(f))
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return &ErrTypeMismatch{a.Name, a.Type, v}
		}
		if b {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case TypeVarchar, TypeChar:
		s, ok := v.(string)
		if !ok {
			return &ErrTypeMismatch{a.Name, a.Type, v}
		}
		b := []byte(s)
		if len(b) > len(dst) {
			b = b[:len(dst)]
		}
		copy(dst, b)
		for i := len(b); i < len(dst); i++ {
			dst[i] = 0
		}
	case TypePoint:
		p, ok := v.(point.Point)
		if !ok {
			return &ErrTypeMismatch{a.Name, a.Type, v}
		}
		binary.LittleEndian.PutUint64(dst[0:8], math.Float64bits(p.X))
		binary.LittleEndian.PutUint64(dst[8:16], math.Float64bits(p.Y))
	default:
		return fmt.Errorf("record: unknown attribute type for %q", a.Name)
	}
	return nil
}

// Unpack decodes a RecordSize-byte slice into a Record and its
// next-pointer.
func (l *Layout) Unpack(buf []byte) (Record, int32, error) {
	if len(buf) != l.RecordSize {
		return nil, 0, fmt.Errorf("record: buffer size %d, want %d", len(buf), l.RecordSize)
	}
	rec := make(Record, len(l.Schema.Attributes))
	for i, a := range l.Schema.Attributes {
		v, err := l.unpackOne(buf[l.offsets[i]:l.offsets[i]+l.sizes[i]], a)
		if err != nil {
			return nil, 0, err
		}
		rec[i] = v
	}
	next := int32(binary.LittleEndian.Uint32(buf[l.NextOffset : l.NextOffset+4]))
	return rec, next, nil
}

func (l *Layout) unpackOne(src []byte, a Attribute) (Value, error) {
	switch a.Type {
	case TypeInt, TypeDate:
		return int32(binary.LittleEndian.Uint32(src)), nil
	case TypeFloat:
		return math.Float64frombits(binary.LittleEndian.Uint64(src)), nil
	case TypeBool:
		return src[0] != 0, nil
	case TypeVarchar, TypeChar:
		end := len(src)
		for end > 0 && src[end-1] == 0 {
			end--
		}
		return string(src[:end]), nil
	case TypePoint:
		x := math.Float64frombits(binary.LittleEndian.Uint64(src[0:8]))
		y := math.Float64frombits(binary.LittleEndian.Uint64(src[8:16]))
		return point.New(x, y), nil
	default:
		return nil, fmt.Errorf("record: unknown attribute type for %q", a.Name)
	}
}

func toInt32(v Value) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	case int64:
		return int32(n), true
	}
	return 0, false
}

func toFloat64(v Value) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
