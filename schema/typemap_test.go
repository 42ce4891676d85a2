package schema

import (
	"errors"
	"testing"
)

func TestMapTypeScalars(t *testing.T) {
	cases := []struct {
		ref  TypeRef
		wire WireType
	}{
		{Int(), WireInt32},
		{Float(), WireFloat},
		{Bool(), WireBool},
		{String(), WireString},
		{Bytes(), WireBytes},
	}
	for _, tc := range cases {
		m, err := MapType(tc.ref)
		if err != nil {
			t.Fatalf("MapType(%s) error = %v", tc.ref, err)
		}
		if m.Wire != tc.wire {
			t.Fatalf("MapType(%s).Wire = %q, want %q", tc.ref, m.Wire, tc.wire)
		}
		if m.Repeated || m.Optional || m.Map {
			t.Fatalf("MapType(%s) = %+v, want plain scalar", tc.ref, m)
		}
	}
}

func TestMapTypeList(t *testing.T) {
	m, err := MapType(ListOf(String()))
	if err != nil {
		t.Fatalf("MapType(list<string>) error = %v", err)
	}
	if !m.Repeated || m.Wire != WireString {
		t.Fatalf("MapType(list<string>) = %+v, want repeated string", m)
	}
}

func TestMapTypeOptionalScalar(t *testing.T) {
	m, err := MapType(OptionalOf(Int()))
	if err != nil {
		t.Fatalf("MapType(optional<int>) error = %v", err)
	}
	if !m.Optional || m.Wire != WireInt32 {
		t.Fatalf("MapType(optional<int>) = %+v, want optional int32", m)
	}
}

func TestMapTypeStringMap(t *testing.T) {
	m, err := MapType(StringMap())
	if err != nil {
		t.Fatalf("MapType(map) error = %v", err)
	}
	if !m.Map || m.Wire != WireString {
		t.Fatalf("MapType(map) = %+v, want string-valued map", m)
	}
}

func TestMapTypeRecord(t *testing.T) {
	rec := &RecordType{Name: "point", Fields: []RecordField{
		{Name: "x", Type: Float()},
		{Name: "y", Type: Float()},
	}}
	m, err := MapType(RecordOf(rec))
	if err != nil {
		t.Fatalf("MapType(record) error = %v", err)
	}
	if m.Wire != WireMessage || m.Message != rec {
		t.Fatalf("MapType(record) = %+v, want message reference", m)
	}
}

func TestMapTypeListOfRecords(t *testing.T) {
	rec := &RecordType{Name: "point", Fields: []RecordField{{Name: "x", Type: Float()}}}
	m, err := MapType(ListOf(RecordOf(rec)))
	if err != nil {
		t.Fatalf("MapType(list<record>) error = %v", err)
	}
	if !m.Repeated || m.Wire != WireMessage {
		t.Fatalf("MapType(list<record>) = %+v, want repeated message", m)
	}
}

func TestMapTypeRejectsUnsupportedNesting(t *testing.T) {
	point := &RecordType{Name: "point", Fields: []RecordField{{Name: "x", Type: Float()}}}
	cases := []struct {
		name string
		ref  TypeRef
	}{
		{"list of lists", ListOf(ListOf(Int()))},
		{"list of optionals", ListOf(OptionalOf(Int()))},
		{"list of maps", ListOf(StringMap())},
		{"optional of optional", OptionalOf(OptionalOf(Int()))},
		{"optional of list", OptionalOf(ListOf(Int()))},
		{"optional of map", OptionalOf(StringMap())},
		{"record in record", RecordOf(&RecordType{Name: "outer", Fields: []RecordField{
			{Name: "inner", Type: RecordOf(point)},
		}})},
		{"list of records in record", RecordOf(&RecordType{Name: "outer", Fields: []RecordField{
			{Name: "inner", Type: ListOf(RecordOf(point))},
		}})},
	}
	for _, tc := range cases {
		if _, err := MapType(tc.ref); !errors.Is(err, ErrUnsupportedNesting) {
			t.Fatalf("MapType(%s) error = %v, want ErrUnsupportedNesting", tc.name, err)
		}
	}
}

func TestMapTypeRejectsInvalid(t *testing.T) {
	if _, err := MapType(TypeRef{}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("MapType(zero) error = %v, want ErrUnsupportedType", err)
	}
	if _, err := MapType(ListOf(TypeRef{})); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("MapType(list<zero>) error = %v, want ErrUnsupportedType", err)
	}
}

func TestMapTypeRejectsDuplicateRecordFields(t *testing.T) {
	rec := &RecordType{Name: "pair", Fields: []RecordField{
		{Name: "v", Type: Int()},
		{Name: "v", Type: Int()},
	}}
	if _, err := MapType(RecordOf(rec)); !errors.Is(err, ErrSchemaBuild) {
		t.Fatalf("MapType(duplicate fields) error = %v, want ErrSchemaBuild", err)
	}
}

func TestMapTypeOptionalRecordAllowed(t *testing.T) {
	rec := &RecordType{Name: "point", Fields: []RecordField{{Name: "x", Type: Float()}}}
	m, err := MapType(OptionalOf(RecordOf(rec)))
	if err != nil {
		t.Fatalf("MapType(optional<record>) error = %v", err)
	}
	if !m.Optional || m.Wire != WireMessage {
		t.Fatalf("MapType(optional<record>) = %+v, want optional message", m)
	}
}
