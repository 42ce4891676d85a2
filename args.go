package pollen

// Args holds one call's decoded arguments, keyed by parameter name.
// Values are in canonical native form: int32, float32, bool, string,
// []byte, []any, map[string]string, and map[string]any for records.
// The accessors are forgiving the way the decode layer is strict: a
// missing or differently typed value yields the zero value, because
// by the time a handler runs, every declared argument has already
// been validated against the schema.
type Args map[string]any

// Get returns the raw value and whether it is present. Optional
// parameters that were not supplied are absent.
func (a Args) Get(name string) (any, bool) {
	v, ok := a[name]
	return v, ok
}

// Has reports whether the argument is present.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// String returns a string argument, or "" when absent.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Int returns an integer argument, or 0 when absent.
func (a Args) Int(name string) int {
	switch v := a[name].(type) {
	case int32:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

// Float returns a floating-point argument, or 0 when absent.
func (a Args) Float(name string) float64 {
	switch v := a[name].(type) {
	case float32:
		return float64(v)
	case float64:
		return v
	}
	return 0
}

// Bool returns a boolean argument, or false when absent.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Bytes returns a byte-sequence argument, or nil when absent.
func (a Args) Bytes(name string) []byte {
	b, _ := a[name].([]byte)
	return b
}

// Slice returns a list argument, or nil when absent.
func (a Args) Slice(name string) []any {
	s, _ := a[name].([]any)
	return s
}

// Strings returns a list argument as strings, skipping elements of
// other types.
func (a Args) Strings(name string) []string {
	elems := a.Slice(name)
	if elems == nil {
		return nil
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// StringMap returns a map argument, or nil when absent.
func (a Args) StringMap(name string) map[string]string {
	m, _ := a[name].(map[string]string)
	return m
}

// Record returns a record argument keyed by field name, or nil when
// absent.
func (a Args) Record(name string) map[string]any {
	m, _ := a[name].(map[string]any)
	return m
}
