package schema

import "fmt"

// WireType is the on-wire representation of a field. The set mirrors
// the scalar kinds of the descriptor format plus message references.
// WireEnum is part of the closed set for platform-defined schemas but
// is never produced by type mapping.
type WireType string

const (
	WireInvalid WireType = ""
	WireInt32   WireType = "int32"
	WireFloat   WireType = "float"
	WireBool    WireType = "bool"
	WireString  WireType = "string"
	WireBytes   WireType = "bytes"
	WireMessage WireType = "message"
	WireEnum    WireType = "enum"
)

// Mapping is the wire shape of one declared type. For maps, Wire holds
// the value type; keys are always strings. For message fields, Message
// names the record that defines the referenced wire message.
type Mapping struct {
	Wire     WireType
	Repeated bool
	Optional bool
	Map      bool
	Message  *RecordType
}

// MapType resolves a declared type to its wire shape. The rules are
// closed and total over the declared set:
//
//	int            -> int32
//	float          -> float (32-bit)
//	bool           -> bool
//	string         -> string
//	bytes          -> bytes
//	list<T>        -> repeated mapping of T
//	optional<T>    -> mapping of T with presence
//	map<str,str>   -> string-keyed map entry encoding
//	record         -> message reference, fields mapped recursively
//
// Anything else fails with ErrUnsupportedType. Shapes the wire cannot
// carry fail with ErrUnsupportedNesting: lists of lists, lists of
// optionals or maps, optionals of optionals, lists or maps, and
// records referenced from inside another record.
func MapType(t TypeRef) (Mapping, error) {
	return mapType(t, false)
}

func mapType(t TypeRef, inRecord bool) (Mapping, error) {
	switch t.Kind() {
	case KindInt:
		return Mapping{Wire: WireInt32}, nil
	case KindFloat:
		return Mapping{Wire: WireFloat}, nil
	case KindBool:
		return Mapping{Wire: WireBool}, nil
	case KindString:
		return Mapping{Wire: WireString}, nil
	case KindBytes:
		return Mapping{Wire: WireBytes}, nil

	case KindList:
		elem, _ := t.Elem()
		switch elem.Kind() {
		case KindList:
			return Mapping{}, fmt.Errorf("%w: list of lists", ErrUnsupportedNesting)
		case KindOptional:
			return Mapping{}, fmt.Errorf("%w: list of optionals", ErrUnsupportedNesting)
		case KindStringMap:
			return Mapping{}, fmt.Errorf("%w: list of maps", ErrUnsupportedNesting)
		}
		m, err := mapType(elem, inRecord)
		if err != nil {
			return Mapping{}, err
		}
		m.Repeated = true
		return m, nil

	case KindOptional:
		inner, _ := t.Elem()
		switch inner.Kind() {
		case KindOptional:
			return Mapping{}, fmt.Errorf("%w: optional of optional", ErrUnsupportedNesting)
		case KindList:
			return Mapping{}, fmt.Errorf("%w: optional of list", ErrUnsupportedNesting)
		case KindStringMap:
			return Mapping{}, fmt.Errorf("%w: optional of map", ErrUnsupportedNesting)
		}
		m, err := mapType(inner, inRecord)
		if err != nil {
			return Mapping{}, err
		}
		m.Optional = true
		return m, nil

	case KindStringMap:
		return Mapping{Wire: WireString, Map: true}, nil

	case KindRecord:
		rec, _ := t.Record()
		if rec == nil {
			return Mapping{}, fmt.Errorf("%w: record reference without definition", ErrUnsupportedType)
		}
		if inRecord {
			return Mapping{}, fmt.Errorf("%w: record %q inside a record", ErrUnsupportedNesting, rec.Name)
		}
		if err := validateRecord(rec); err != nil {
			return Mapping{}, err
		}
		return Mapping{Wire: WireMessage, Message: rec}, nil

	default:
		return Mapping{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

// validateRecord checks a record definition: a valid name, uniquely
// named fields, and field types that map without referencing further
// records.
func validateRecord(rec *RecordType) error {
	if err := ValidateIdent(rec.Name); err != nil {
		return fmt.Errorf("record name: %w", err)
	}
	seen := make(map[string]bool, len(rec.Fields))
	for _, f := range rec.Fields {
		if err := ValidateIdent(f.Name); err != nil {
			return fmt.Errorf("record %q: %w", rec.Name, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: record %q: duplicate field %q", ErrSchemaBuild, rec.Name, f.Name)
		}
		seen[f.Name] = true
		if _, err := mapType(f.Type, true); err != nil {
			return fmt.Errorf("record %q field %q: %w", rec.Name, f.Name, err)
		}
	}
	return nil
}
