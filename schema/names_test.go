package schema

import (
	"errors"
	"testing"
)

func TestNameRegistrySuffixesCollisions(t *testing.T) {
	r := NewNameRegistry()

	got := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		name, err := r.Reserve(ScopeMessages, "foo")
		if err != nil {
			t.Fatalf("Reserve error = %v", err)
		}
		got = append(got, name)
	}

	want := []string{"foo", "foo_2", "foo_3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Reserve #%d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestNameRegistryScopesAreIndependent(t *testing.T) {
	r := NewNameRegistry()

	a, err := r.Reserve(FieldScope("AddRequest"), "text")
	if err != nil {
		t.Fatalf("Reserve error = %v", err)
	}
	b, err := r.Reserve(FieldScope("EchoRequest"), "text")
	if err != nil {
		t.Fatalf("Reserve error = %v", err)
	}
	if a != "text" || b != "text" {
		t.Fatalf("same name across scopes = (%q, %q), want (text, text)", a, b)
	}
}

func TestNameRegistrySkipsTakenSuffix(t *testing.T) {
	r := NewNameRegistry()

	for _, name := range []string{"foo_2", "foo", "foo"} {
		if _, err := r.Reserve(ScopeMessages, name); err != nil {
			t.Fatalf("Reserve(%q) error = %v", name, err)
		}
	}
	// foo_2 was taken up front, so the second "foo" lands on foo_3.
	if !r.Taken(ScopeMessages, "foo_3") {
		t.Fatal("foo_3 not reserved after suffix skip")
	}
}

func TestNameRegistryRelease(t *testing.T) {
	r := NewNameRegistry()
	if _, err := r.Reserve(ScopeMessages, "foo"); err != nil {
		t.Fatalf("Reserve error = %v", err)
	}
	if err := r.Release(ScopeMessages, "foo"); err != nil {
		t.Fatalf("Release error = %v", err)
	}
	// The base name is free again, so no suffix is needed.
	name, err := r.Reserve(ScopeMessages, "foo")
	if err != nil {
		t.Fatalf("Reserve after release error = %v", err)
	}
	if name != "foo" {
		t.Fatalf("Reserve after release = %q, want foo", name)
	}
}

func TestNameRegistryReleaseUnreserved(t *testing.T) {
	r := NewNameRegistry()
	if err := r.Release(ScopeMessages, "ghost"); !errors.Is(err, ErrSchemaBuild) {
		t.Fatalf("Release of unreserved name error = %v, want ErrSchemaBuild", err)
	}
}

func TestNameRegistryReleaseAfterFreeze(t *testing.T) {
	r := NewNameRegistry()
	if _, err := r.Reserve(ScopeMessages, "foo"); err != nil {
		t.Fatalf("Reserve error = %v", err)
	}
	r.Freeze()
	if err := r.Release(ScopeMessages, "foo"); !errors.Is(err, ErrAlreadyCompiled) {
		t.Fatalf("Release after freeze error = %v, want ErrAlreadyCompiled", err)
	}
}

func TestNameRegistryFreeze(t *testing.T) {
	r := NewNameRegistry()
	if _, err := r.Reserve(ScopeMessages, "foo"); err != nil {
		t.Fatalf("Reserve error = %v", err)
	}
	r.Freeze()
	if !r.Frozen() {
		t.Fatal("Frozen() = false after Freeze")
	}
	if _, err := r.Reserve(ScopeMessages, "bar"); !errors.Is(err, ErrAlreadyCompiled) {
		t.Fatalf("Reserve after freeze error = %v, want ErrAlreadyCompiled", err)
	}
}

func TestNameRegistryRejectsInvalidIdent(t *testing.T) {
	r := NewNameRegistry()
	for _, name := range []string{"", "9lives", "has space", "dash-ed", "message"} {
		if _, err := r.Reserve(ScopeMessages, name); !errors.Is(err, ErrSchemaBuild) {
			t.Fatalf("Reserve(%q) error = %v, want ErrSchemaBuild", name, err)
		}
	}
}

func TestValidateIdent(t *testing.T) {
	for _, name := range []string{"a", "_hidden", "snake_case", "CamelCase", "x9"} {
		if err := ValidateIdent(name); err != nil {
			t.Fatalf("ValidateIdent(%q) error = %v", name, err)
		}
	}
	for _, name := range []string{"", "9a", "a b", "a-b", "ünicode", "rpc", "Message"} {
		if err := ValidateIdent(name); err == nil {
			t.Fatalf("ValidateIdent(%q) = nil, want error", name)
		}
	}
}

func TestCamelCase(t *testing.T) {
	cases := map[string]string{
		"add":           "Add",
		"get_user_data": "GetUserData",
		"add_2":         "Add2",
		"Already":       "Already",
		"a":             "A",
	}
	for in, want := range cases {
		if got := CamelCase(in); got != want {
			t.Fatalf("CamelCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeIdent(t *testing.T) {
	cases := map[string]string{
		"calculator":  "calculator",
		"Image Magic": "image_magic",
		"my-app.v2":   "my_app_v2",
		"9th":         "x9th",
		"   ":         "app",
	}
	for in, want := range cases {
		if got := SanitizeIdent(in); got != want {
			t.Fatalf("SanitizeIdent(%q) = %q, want %q", in, got, want)
		}
	}
}
