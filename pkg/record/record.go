// Package record implements the fixed-width record store: typed
// attribute packing, free-list slot allocation, and the binary record
// file format shared by every table.
package record

import (
	"fmt"

	"github.com/Jochuuuu/PVSProyectoB/pkg/point"
)

// DataType enumerates the attribute types a table column may hold.
type DataType int

const (
	TypeInt DataType = iota
	TypeFloat
	TypeBool
	TypeDate
	TypeVarchar
	TypeChar
	TypePoint
)

func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeFloat:
		return "DECIMAL"
	case TypeBool:
		return "BOOL"
	case TypeDate:
		return "DATE"
	case TypeVarchar:
		return "VARCHAR"
	case TypeChar:
		return "CHAR"
	case TypePoint:
		return "POINT"
	default:
		return "UNKNOWN"
	}
}

// Attribute describes one table column.
type Attribute struct {
	Name  string
	Type  DataType
	Size  int // byte length for VARCHAR[N]/CHAR[N]; ignored otherwise
	IsKey bool
	Index string // "", "hash", "avl", or "rtree"
}

// Schema is the ordered attribute list of a table plus its declared
// primary key attribute name (may be empty if none is declared).
type Schema struct {
	Table      string
	Attributes []Attribute
	PrimaryKey string
}

// AttributeIndex returns the position of name within the schema, or -1.
func (s Schema) AttributeIndex(name string) int {
	for i, a := range s.Attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// RecordNumber is a 1-based slot index into a Store's data file.
type RecordNumber int32

// RecordNormal is the sentinel "next" value stored for an ACTIVE record.
// Any other value (including -1) marks a DELETED slot holding the
// free-list chain.
const RecordNormal int32 = -2

// Value is the in-memory representation of one attribute value: an
// int32, float64, bool, int32 (DATE, unix day), string, or point.Point,
// depending on the attribute's DataType.
type Value interface{}

// Record is an ordered slice of attribute values matching a Schema's
// Attributes order.
type Record []Value

// DefaultValue returns the zero value for a given data type, used when
// a CSV import supplies no value for an attribute.
func DefaultValue(t DataType, size int) Value {
	switch t {
	case TypeInt, TypeDate:
		return int32(0)
	case TypeFloat:
		return float64(0)
	case TypeBool:
		return false
	case TypeVarchar, TypeChar:
		return " "
	case TypePoint:
		return point.New(0, 0)
	default:
		return nil
	}
}

// ErrTypeMismatch is returned when a Value does not match the
// Attribute's declared DataType.
type ErrTypeMismatch struct {
	Attribute string
	Want      DataType
	Got       Value
}

func (e *ErrTypeMismatch) Error() string {
	return fmt.Sprintf("record: attribute %q expects %s, got %T", e.Attribute, e.Want, e.Got)
}
