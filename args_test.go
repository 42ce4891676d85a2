package pollen_test

import (
	"reflect"
	"testing"

	"github.com/petal-labs/pollen"
)

func TestArgsAccessors(t *testing.T) {
	args := pollen.Args{
		"name":   "Ada",
		"age":    int32(36),
		"big":    int64(1 << 40),
		"score":  float32(9.5),
		"ratio":  2.5,
		"active": true,
		"avatar": []byte{1, 2},
		"tags":   []any{"x", "y"},
		"mixed":  []any{"x", int32(1)},
		"meta":   map[string]string{"k": "v"},
		"home":   map[string]any{"street": "Main"},
	}

	if got := args.String("name"); got != "Ada" {
		t.Fatalf("String = %q", got)
	}
	if got := args.Int("age"); got != 36 {
		t.Fatalf("Int = %d", got)
	}
	if got := args.Int("big"); got != 1<<40 {
		t.Fatalf("Int(int64) = %d", got)
	}
	if got := args.Float("score"); got != 9.5 {
		t.Fatalf("Float(float32) = %v", got)
	}
	if got := args.Float("ratio"); got != 2.5 {
		t.Fatalf("Float = %v", got)
	}
	if !args.Bool("active") {
		t.Fatal("Bool = false")
	}
	if got := args.Bytes("avatar"); !reflect.DeepEqual(got, []byte{1, 2}) {
		t.Fatalf("Bytes = %v", got)
	}
	if got := args.Strings("tags"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Fatalf("Strings = %v", got)
	}
	if got := args.Strings("mixed"); !reflect.DeepEqual(got, []string{"x"}) {
		t.Fatalf("Strings skips non-strings, got %v", got)
	}
	if got := args.StringMap("meta"); got["k"] != "v" {
		t.Fatalf("StringMap = %v", got)
	}
	if got := args.Record("home"); got["street"] != "Main" {
		t.Fatalf("Record = %v", got)
	}
	if got := args.Slice("tags"); len(got) != 2 {
		t.Fatalf("Slice = %v", got)
	}
}

func TestArgsMissingKeys(t *testing.T) {
	args := pollen.Args{"name": "Ada"}

	if args.Has("missing") {
		t.Fatal("Has reported a missing key")
	}
	if _, ok := args.Get("missing"); ok {
		t.Fatal("Get reported a missing key")
	}
	if got := args.String("missing"); got != "" {
		t.Fatalf("String(missing) = %q", got)
	}
	if got := args.Int("missing"); got != 0 {
		t.Fatalf("Int(missing) = %d", got)
	}
	if args.Bool("missing") {
		t.Fatal("Bool(missing) = true")
	}
	if got := args.Bytes("missing"); got != nil {
		t.Fatalf("Bytes(missing) = %v", got)
	}

	// Wrong-typed values read as zero values too.
	if got := args.Int("name"); got != 0 {
		t.Fatalf("Int(string) = %d", got)
	}
	if got := args.Float("name"); got != 0 {
		t.Fatalf("Float(string) = %v", got)
	}
}
