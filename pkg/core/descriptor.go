package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/liliang-cn/sqgeo/pkg/geo"
)

// ValueKind is the storage class of a single value returned by the driver
type ValueKind int

const (
	KindNull ValueKind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
	KindOther
)

var valueKindNames = [...]string{
	KindNull:    "null",
	KindInteger: "integer",
	KindFloat:   "float",
	KindText:    "text",
	KindBlob:    "blob",
	KindOther:   "other",
}

func (k ValueKind) String() string {
	if k >= 0 && int(k) < len(valueKindNames) {
		return valueKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// KindOf classifies a value scanned into an `any` destination.
// The driver reports DATE/DATETIME columns as time.Time; those count as text.
func KindOf(v any) ValueKind {
	switch v.(type) {
	case nil:
		return KindNull
	case int64, int, int32:
		return KindInteger
	case float64, float32:
		return KindFloat
	case string, time.Time:
		return KindText
	case []byte:
		return KindBlob
	default:
		return KindOther
	}
}

// FieldType is the attribute type reported for a column
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldInteger
	FieldDouble
	FieldString
)

var fieldTypeNames = map[FieldType]string{
	FieldUnknown: "unknown",
	FieldInteger: "integer",
	FieldDouble:  "double",
	FieldString:  "string",
}

var fieldTypesByName = map[string]FieldType{
	"unknown": FieldUnknown,
	"integer": FieldInteger,
	"double":  FieldDouble,
	"string":  FieldString,
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("fieldtype(%d)", int(t))
}

// ParseFieldType maps a name produced by String back to its FieldType
func ParseFieldType(name string) (FieldType, error) {
	t, ok := fieldTypesByName[strings.ToLower(name)]
	if !ok {
		return FieldUnknown, fmt.Errorf("unknown field type %q", name)
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *FieldType) UnmarshalText(b []byte) error {
	parsed, err := ParseFieldType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ColumnRole is the part a column plays in a geometry table
type ColumnRole int

const (
	RoleUnclassified ColumnRole = iota
	RoleGeometry
	RoleKey
	RoleAttribute
)

var columnRoleNames = map[ColumnRole]string{
	RoleUnclassified: "unclassified",
	RoleGeometry:     "geometry",
	RoleKey:          "key",
	RoleAttribute:    "attribute",
}

var columnRolesByName = map[string]ColumnRole{
	"unclassified": RoleUnclassified,
	"geometry":     RoleGeometry,
	"key":          RoleKey,
	"attribute":    RoleAttribute,
}

func (r ColumnRole) String() string {
	if name, ok := columnRoleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseColumnRole maps a name produced by String back to its ColumnRole
func ParseColumnRole(name string) (ColumnRole, error) {
	r, ok := columnRolesByName[strings.ToLower(name)]
	if !ok {
		return RoleUnclassified, fmt.Errorf("unknown column role %q", name)
	}
	return r, nil
}

// MarshalText implements encoding.TextMarshaler
func (r ColumnRole) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (r *ColumnRole) UnmarshalText(b []byte) error {
	parsed, err := ParseColumnRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ColumnDescriptor describes one column of a table
type ColumnDescriptor struct {
	Name string     `json:"name"`
	Type FieldType  `json:"type"`
	Role ColumnRole `json:"role"`
}

// TableDescriptor is the merged result of schema introspection
type TableDescriptor struct {
	Table         string             `json:"table"`
	Columns       []ColumnDescriptor `json:"columns"`
	KeyField      string             `json:"key_field,omitempty"`
	GeometryField string             `json:"geometry_field,omitempty"`

	// Found reports that the sample query returned a row
	Found bool `json:"found"`
	// FoundTable reports that the column catalog returned at least one column
	FoundTable bool `json:"found_table"`
}

// Column returns the descriptor for name, matched case-insensitively
func (d *TableDescriptor) Column(name string) (ColumnDescriptor, bool) {
	for _, c := range d.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Attributes returns every column except the geometry column
func (d *TableDescriptor) Attributes() []ColumnDescriptor {
	attrs := make([]ColumnDescriptor, 0, len(d.Columns))
	for _, c := range d.Columns {
		if c.Role != RoleGeometry {
			attrs = append(attrs, c)
		}
	}
	return attrs
}

// IndexRecord is one row of a spatial index
type IndexRecord struct {
	Key      int64
	Envelope geo.Envelope
}
