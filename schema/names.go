package schema

import (
	"fmt"
	"strings"
	"unicode"
)

// Name scopes. Message and service names live in file-wide scopes;
// field and method names are scoped to their containing entity.
const (
	ScopeMessages = "messages"
	ScopeServices = "services"
)

// FieldScope returns the registry scope for fields of one message.
func FieldScope(message string) string { return "fields:" + message }

// MethodScope returns the registry scope for methods of one service.
func MethodScope(service string) string { return "methods:" + service }

// maxNameAttempts bounds suffix disambiguation per base name.
const maxNameAttempts = 1000

// NameRegistry hands out unique names per scope. A name that is
// already taken gets a deterministic numeric suffix: foo, foo_2,
// foo_3 and so on. The registry belongs to a single build pass and is
// not safe for concurrent use.
type NameRegistry struct {
	taken  map[string]map[string]bool
	frozen bool
}

// NewNameRegistry returns an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{taken: make(map[string]map[string]bool)}
}

// Reserve claims name within scope and returns the final, possibly
// suffixed, name. Reserving the same base name twice yields different
// results; the outcome depends only on reservation order.
func (r *NameRegistry) Reserve(scope, name string) (string, error) {
	if r.frozen {
		return "", fmt.Errorf("%w: reserve %q in scope %q", ErrAlreadyCompiled, name, scope)
	}
	if err := ValidateIdent(name); err != nil {
		return "", err
	}

	names := r.taken[scope]
	if names == nil {
		names = make(map[string]bool)
		r.taken[scope] = names
	}

	if !names[name] {
		names[name] = true
		return name, nil
	}
	for n := 2; n <= maxNameAttempts; n++ {
		candidate := fmt.Sprintf("%s_%d", name, n)
		if !names[candidate] {
			names[candidate] = true
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q in scope %q", ErrNameCollisionExhausted, name, scope)
}

// Release returns name to the pool within scope so a later Reserve
// can hand it out again. Releasing is only possible before Freeze and
// only for reserved names.
func (r *NameRegistry) Release(scope, name string) error {
	if r.frozen {
		return fmt.Errorf("%w: release %q in scope %q", ErrAlreadyCompiled, name, scope)
	}
	if !r.taken[scope][name] {
		return fmt.Errorf("%w: release of unreserved name %q in scope %q", ErrSchemaBuild, name, scope)
	}
	delete(r.taken[scope], name)
	return nil
}

// Taken reports whether name is reserved within scope.
func (r *NameRegistry) Taken(scope, name string) bool {
	return r.taken[scope][name]
}

// Freeze ends the reservation phase. Further Reserve calls fail with
// ErrAlreadyCompiled.
func (r *NameRegistry) Freeze() { r.frozen = true }

// Frozen reports whether Freeze was called.
func (r *NameRegistry) Frozen() bool { return r.frozen }

// reservedIdents are keywords of the schema language that cannot be
// used as message, service, field or method names.
var reservedIdents = map[string]bool{
	"syntax": true, "package": true, "import": true, "option": true,
	"message": true, "service": true, "rpc": true, "returns": true,
	"enum": true, "oneof": true, "map": true, "repeated": true,
	"optional": true, "required": true, "reserved": true,
	"extend": true, "extensions": true, "group": true, "stream": true,
	"true": true, "false": true,
}

// ValidateIdent checks that s is usable as a schema identifier: a
// letter or underscore followed by letters, digits or underscores, and
// not a reserved keyword.
func ValidateIdent(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty identifier", ErrSchemaBuild)
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) && r < unicode.MaxASCII {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return fmt.Errorf("%w: invalid identifier %q", ErrSchemaBuild, s)
	}
	if reservedIdents[strings.ToLower(s)] {
		return fmt.Errorf("%w: identifier %q is a reserved word", ErrSchemaBuild, s)
	}
	return nil
}

// CamelCase converts a snake_case identifier to UpperCamelCase:
// "get_user_data" becomes "GetUserData". Digits terminate a segment
// but are kept: "add_2" becomes "Add2".
func CamelCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if r == '_' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeIdent lowers s into a safe snake_case identifier for derived
// names such as service and package components. Runs of characters
// outside [a-z0-9] collapse to single underscores; a leading digit
// gains an "x" prefix.
func SanitizeIdent(s string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "app"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "x" + out
	}
	return out
}
