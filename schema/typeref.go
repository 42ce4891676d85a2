// Package schema turns tool declarations into wire-level message and
// service schemas. A declaration describes a tool's parameters and
// return payload with explicit TypeRef values; the package maps those
// onto a closed set of wire types, assigns stable field numbers, and
// resolves name collisions deterministically. Descriptor lowering and
// payload codecs live in the descriptor package.
package schema

import "fmt"

// Kind identifies one member of the closed set of native types a tool
// declaration may use. There is no escape hatch: a type outside this
// set cannot be declared, let alone mapped.
type Kind int

const (
	// KindInvalid is the zero Kind. Mapping it fails.
	KindInvalid Kind = iota

	// KindInt is a signed integer, carried as a 32-bit value.
	KindInt

	// KindFloat is a floating-point number, carried as a 32-bit value.
	KindFloat

	// KindBool is a boolean.
	KindBool

	// KindString is a UTF-8 string.
	KindString

	// KindBytes is an opaque byte sequence.
	KindBytes

	// KindList is a homogeneous sequence of an element type.
	KindList

	// KindOptional marks the inner type as present-or-absent.
	KindOptional

	// KindStringMap is a map with string keys and string values.
	KindStringMap

	// KindRecord is a named flat field set declared with RecordOf.
	KindRecord
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindList:
		return "list"
	case KindOptional:
		return "optional"
	case KindStringMap:
		return "string_map"
	case KindRecord:
		return "record"
	default:
		return "invalid"
	}
}

// TypeRef is a tagged description of a declared type. Values are built
// with the constructor functions below; the zero value is invalid and
// rejected at mapping time.
type TypeRef struct {
	kind   Kind
	elem   *TypeRef
	record *RecordType
}

// Int declares a signed integer parameter or return.
func Int() TypeRef { return TypeRef{kind: KindInt} }

// Float declares a floating-point parameter or return.
func Float() TypeRef { return TypeRef{kind: KindFloat} }

// Bool declares a boolean parameter or return.
func Bool() TypeRef { return TypeRef{kind: KindBool} }

// String declares a UTF-8 string parameter or return.
func String() TypeRef { return TypeRef{kind: KindString} }

// Bytes declares an opaque byte-sequence parameter or return.
func Bytes() TypeRef { return TypeRef{kind: KindBytes} }

// ListOf declares a homogeneous sequence of elem.
func ListOf(elem TypeRef) TypeRef {
	e := elem
	return TypeRef{kind: KindList, elem: &e}
}

// OptionalOf declares a present-or-absent wrapper around inner.
func OptionalOf(inner TypeRef) TypeRef {
	e := inner
	return TypeRef{kind: KindOptional, elem: &e}
}

// StringMap declares a map with string keys and string values.
func StringMap() TypeRef { return TypeRef{kind: KindStringMap} }

// RecordOf declares a reference to a named record type. The same
// *RecordType value may be shared between tools; it is mapped to a
// single wire message the first time it is seen.
func RecordOf(rec *RecordType) TypeRef {
	return TypeRef{kind: KindRecord, record: rec}
}

// Kind returns the tag of the reference.
func (t TypeRef) Kind() Kind { return t.kind }

// Elem returns the element type of a list or the inner type of an
// optional. The second result is false for other kinds.
func (t TypeRef) Elem() (TypeRef, bool) {
	if t.elem == nil {
		return TypeRef{}, false
	}
	return *t.elem, true
}

// Record returns the record definition for KindRecord references.
func (t TypeRef) Record() (*RecordType, bool) {
	if t.record == nil {
		return nil, false
	}
	return t.record, true
}

// String renders the reference for diagnostics, e.g. "list<int>" or
// "record<Point>".
func (t TypeRef) String() string {
	switch t.kind {
	case KindList, KindOptional:
		inner := "?"
		if t.elem != nil {
			inner = t.elem.String()
		}
		return fmt.Sprintf("%s<%s>", t.kind, inner)
	case KindStringMap:
		return "map<string,string>"
	case KindRecord:
		name := "?"
		if t.record != nil {
			name = t.record.Name
		}
		return fmt.Sprintf("record<%s>", name)
	default:
		return t.kind.String()
	}
}

// RecordType names a flat set of fields that maps to its own wire
// message. Fields may use scalars, lists, optionals and string maps,
// but not other records: records nest one level only.
type RecordType struct {
	// Name becomes the wire message name after casing and collision
	// resolution.
	Name string

	// Doc describes the record in generated schema text.
	Doc string

	// Fields in declaration order. Order fixes field numbering.
	Fields []RecordField
}

// RecordField is a single field of a record.
type RecordField struct {
	Name string
	Type TypeRef
	Doc  string
}
