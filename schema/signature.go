package schema

import "fmt"

// Param is one declared tool parameter.
type Param struct {
	Name string
	Type TypeRef

	// Doc describes the parameter in generated schema text. Inspect
	// fills it from Declaration.ArgDocs when present.
	Doc string

	// Default is applied when the argument is absent at call time.
	// Only scalar defaults are supported; HasDefault distinguishes a
	// zero-valued default from none.
	Default    any
	HasDefault bool
}

// ReturnSpec declares what a tool returns. Build values with Returns,
// ReturnsNothing, ReturnsImage or ReturnsFile; the zero value is
// rejected so a forgotten return reads as a mistake, not as a tool
// without a result. For image and file kinds the wire payload is a
// string reference; Type may be left zero and defaults to string.
type ReturnSpec struct {
	Type TypeRef
	Kind ReturnKind
	Doc  string

	void bool
}

// Returns declares a plain return of type t.
func Returns(t TypeRef) ReturnSpec { return ReturnSpec{Type: t, Kind: ReturnPlain} }

// ReturnsNothing declares that the tool produces no result payload.
// The response message carries zero fields.
func ReturnsNothing() ReturnSpec { return ReturnSpec{Kind: ReturnPlain, void: true} }

// ReturnsImage declares that the tool produces an image reference.
func ReturnsImage() ReturnSpec { return ReturnSpec{Kind: ReturnImage} }

// ReturnsFile declares that the tool produces a file reference.
func ReturnsFile() ReturnSpec { return ReturnSpec{Kind: ReturnFile} }

// Void reports whether the return was declared with ReturnsNothing.
func (r ReturnSpec) Void() bool { return r.void }

// Declaration is the explicit signature of one tool: its name, doc,
// ordered parameters and return. ArgDocs attaches parameter docs by
// name, mirroring doc decoration that happens away from the parameter
// list; every key must name a declared parameter.
type Declaration struct {
	Name string
	Doc  string

	// Icon optionally names an icon asset for platform listings. It
	// rides through to the compiled tool schema untouched.
	Icon string

	Params  []Param
	Return  ReturnSpec
	ArgDocs map[string]string
}

// Inspect validates a declaration and returns its normalized form:
// identifiers checked, arg docs resolved onto parameters, the return
// spec completed. The input is not modified. Inspect is idempotent;
// building runs it again on already-inspected declarations without
// harm.
func Inspect(d Declaration) (Declaration, error) {
	if err := ValidateIdent(d.Name); err != nil {
		return Declaration{}, fmt.Errorf("tool name: %w", err)
	}

	out := d
	out.Params = make([]Param, len(d.Params))
	copy(out.Params, d.Params)
	out.ArgDocs = nil

	seen := make(map[string]int, len(d.Params))
	for i := range out.Params {
		p := &out.Params[i]
		if err := ValidateIdent(p.Name); err != nil {
			return Declaration{}, fmt.Errorf("tool %q: parameter %d: %w", d.Name, i+1, err)
		}
		if _, dup := seen[p.Name]; dup {
			return Declaration{}, fmt.Errorf("%w: tool %q: duplicate parameter %q", ErrSchemaBuild, d.Name, p.Name)
		}
		seen[p.Name] = i

		if _, err := MapType(p.Type); err != nil {
			return Declaration{}, fmt.Errorf("tool %q: parameter %q: %w", d.Name, p.Name, err)
		}
		if p.HasDefault {
			if err := checkDefault(p.Type, p.Default); err != nil {
				return Declaration{}, fmt.Errorf("tool %q: parameter %q: %w", d.Name, p.Name, err)
			}
		}
	}

	for name, doc := range d.ArgDocs {
		i, ok := seen[name]
		if !ok {
			return Declaration{}, fmt.Errorf("%w: tool %q: arg doc for %q", ErrUnknownParameter, d.Name, name)
		}
		out.Params[i].Doc = doc
	}

	ret, err := normalizeReturn(d.Return)
	if err != nil {
		return Declaration{}, fmt.Errorf("tool %q: return: %w", d.Name, err)
	}
	out.Return = ret

	return out, nil
}

// normalizeReturn completes a return spec. Plain returns need an
// explicit type or an explicit ReturnsNothing; image and file returns
// are forced to string, the reference payload.
func normalizeReturn(r ReturnSpec) (ReturnSpec, error) {
	switch r.Kind {
	case ReturnPlain, "":
		r.Kind = ReturnPlain
		if r.void {
			r.Type = TypeRef{}
			return r, nil
		}
		if r.Type.Kind() == KindInvalid {
			return ReturnSpec{}, fmt.Errorf("%w: return type is required (use ReturnsNothing for tools without a result)", ErrSchemaBuild)
		}
		if _, err := MapType(r.Type); err != nil {
			return ReturnSpec{}, err
		}
		return r, nil
	case ReturnImage, ReturnFile:
		switch r.Type.Kind() {
		case KindInvalid:
			r.Type = String()
		case KindString:
		default:
			return ReturnSpec{}, fmt.Errorf("%w: %s returns carry a string reference, not %s",
				ErrSchemaBuild, r.Kind, r.Type)
		}
		return r, nil
	default:
		return ReturnSpec{}, fmt.Errorf("%w: unknown return kind %q", ErrSchemaBuild, r.Kind)
	}
}

// checkDefault verifies that a declared default is a scalar matching
// the parameter type. Optionals defer to their inner type.
func checkDefault(t TypeRef, v any) error {
	if inner, ok := t.Elem(); ok && t.Kind() == KindOptional {
		if v == nil {
			return nil
		}
		return checkDefault(inner, v)
	}
	switch t.Kind() {
	case KindInt:
		switch v.(type) {
		case int, int32, int64:
			return nil
		}
	case KindFloat:
		switch v.(type) {
		case float32, float64, int:
			return nil
		}
	case KindBool:
		if _, ok := v.(bool); ok {
			return nil
		}
	case KindString:
		if _, ok := v.(string); ok {
			return nil
		}
	default:
		return fmt.Errorf("%w: defaults are not supported for %s parameters", ErrSchemaBuild, t)
	}
	return fmt.Errorf("%w: default %v does not match declared type %s", ErrSchemaBuild, v, t)
}
