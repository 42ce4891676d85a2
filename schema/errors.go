package schema

import "errors"

// Sentinel errors for schema construction and decoding. Callers match
// them with errors.Is; messages carry the offending tool, parameter or
// type via wrapping.
var (
	// ErrUnsupportedType reports a declared type outside the closed
	// native set, including the zero TypeRef.
	ErrUnsupportedType = errors.New("schema: unsupported type")

	// ErrUnsupportedNesting reports a composite shape the wire format
	// cannot carry: lists of lists, optionals of optionals, records
	// inside records, and similar.
	ErrUnsupportedNesting = errors.New("schema: unsupported nesting")

	// ErrUnknownParameter reports an argument doc naming a parameter
	// the declaration does not have.
	ErrUnknownParameter = errors.New("schema: unknown parameter")

	// ErrSchemaBuild is the umbrella for declaration and assembly
	// failures that are not one of the more specific errors above.
	ErrSchemaBuild = errors.New("schema: build failed")

	// ErrNameCollisionExhausted reports that suffix disambiguation ran
	// out of attempts for a reserved name.
	ErrNameCollisionExhausted = errors.New("schema: name collision suffixes exhausted")

	// ErrAlreadyCompiled reports registration or assembly after the
	// schema set was frozen. Assembly runs exactly once.
	ErrAlreadyCompiled = errors.New("schema: already compiled")

	// ErrDecodeMismatch reports an incoming argument string that does
	// not parse as the schema's declared type. It is the only
	// per-call recoverable error in the taxonomy: the call fails, the
	// schema and the process stay valid.
	ErrDecodeMismatch = errors.New("schema: decode mismatch")
)
