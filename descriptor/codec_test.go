package descriptor_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/schema"
)

func profileBundle(t *testing.T) *descriptor.Bundle {
	t.Helper()
	address := &schema.RecordType{
		Name: "address",
		Fields: []schema.RecordField{
			{Name: "street", Type: schema.String()},
			{Name: "zip", Type: schema.Int()},
		},
	}
	decl := schema.Declaration{
		Name: "profile",
		Params: []schema.Param{
			{Name: "name", Type: schema.String()},
			{Name: "age", Type: schema.Int()},
			{Name: "score", Type: schema.Float()},
			{Name: "active", Type: schema.Bool()},
			{Name: "avatar", Type: schema.Bytes()},
			{Name: "tags", Type: schema.ListOf(schema.String())},
			{Name: "scores", Type: schema.ListOf(schema.Int())},
			{Name: "meta", Type: schema.StringMap()},
			{Name: "home", Type: schema.RecordOf(address)},
			{Name: "nick", Type: schema.OptionalOf(schema.String())},
		},
		Return: schema.Returns(schema.String()),
	}
	b, err := descriptor.Assemble("people", []schema.Declaration{decl}, nil)
	if err != nil {
		t.Fatalf("Assemble error = %v", err)
	}
	return b
}

func profileNatives() map[string]any {
	return map[string]any{
		"name":   "Ada",
		"age":    int32(36),
		"score":  float32(9.5),
		"active": true,
		"avatar": []byte{0x01, 0x02},
		"tags":   []any{"x", "y"},
		"scores": []any{int32(1), int32(2), int32(3)},
		"meta":   map[string]string{"k": "v"},
		"home":   map[string]any{"street": "Main", "zip": int32(12345)},
	}
}

func TestTextEncodingCanonicalForms(t *testing.T) {
	b := profileBundle(t)

	args, err := b.EncodeArgs("profile", profileNatives())
	if err != nil {
		t.Fatalf("EncodeArgs error = %v", err)
	}

	want := map[string]string{
		"name":   "Ada",
		"age":    "36",
		"score":  "9.5",
		"active": "true",
		"avatar": "AQI=",
		"tags":   `["x","y"]`,
		"scores": `[1,2,3]`,
		"meta":   `{"k":"v"}`,
		"home":   `{"street":"Main","zip":12345}`,
	}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("encoded args = %v\nwant %v", args, want)
	}
}

func TestTextRoundTrip(t *testing.T) {
	b := profileBundle(t)
	natives := profileNatives()

	args, err := b.EncodeArgs("profile", natives)
	if err != nil {
		t.Fatalf("EncodeArgs error = %v", err)
	}
	decoded, err := b.DecodeArgs("profile", args)
	if err != nil {
		t.Fatalf("DecodeArgs error = %v", err)
	}
	if !reflect.DeepEqual(decoded, natives) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", decoded, natives)
	}
}

func TestOptionalFieldPresence(t *testing.T) {
	b := profileBundle(t)

	natives := profileNatives()
	decoded, err := b.DecodeArgs("profile", mustEncode(t, b, natives))
	if err != nil {
		t.Fatalf("DecodeArgs error = %v", err)
	}
	if _, ok := decoded["nick"]; ok {
		t.Fatal("absent optional decoded as present")
	}

	natives["nick"] = "Lovelace"
	decoded, err = b.DecodeArgs("profile", mustEncode(t, b, natives))
	if err != nil {
		t.Fatalf("DecodeArgs error = %v", err)
	}
	if decoded["nick"] != "Lovelace" {
		t.Fatalf("nick = %#v, want Lovelace", decoded["nick"])
	}
}

func mustEncode(t *testing.T, b *descriptor.Bundle, natives map[string]any) map[string]string {
	t.Helper()
	args, err := b.EncodeArgs("profile", natives)
	if err != nil {
		t.Fatalf("EncodeArgs error = %v", err)
	}
	return args
}

func TestBinaryRoundTrip(t *testing.T) {
	b := profileBundle(t)
	c, err := b.RequestCodec("profile")
	if err != nil {
		t.Fatalf("RequestCodec error = %v", err)
	}

	natives := profileNatives()
	natives["nick"] = "Lovelace"

	data, err := c.EncodeBinary(natives)
	if err != nil {
		t.Fatalf("EncodeBinary error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("EncodeBinary produced no bytes")
	}

	decoded, err := c.DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary error = %v", err)
	}
	if !reflect.DeepEqual(decoded, natives) {
		t.Fatalf("binary round trip mismatch:\n got %#v\nwant %#v", decoded, natives)
	}
}

func TestBinaryOptionalAbsent(t *testing.T) {
	b := profileBundle(t)
	c, err := b.RequestCodec("profile")
	if err != nil {
		t.Fatalf("RequestCodec error = %v", err)
	}

	data, err := c.EncodeBinary(profileNatives())
	if err != nil {
		t.Fatalf("EncodeBinary error = %v", err)
	}
	decoded, err := c.DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary error = %v", err)
	}
	if _, ok := decoded["nick"]; ok {
		t.Fatal("absent optional survived binary round trip as present")
	}
}

func TestDecodeTextRejectsMalformedComposites(t *testing.T) {
	b := profileBundle(t)
	base := mustEncode(t, b, profileNatives())

	cases := map[string]string{
		"tags":   "not json",
		"meta":   `["k","v"]`,
		"home":   `"just a string"`,
		"avatar": "!!not base64!!",
		"scores": `[1,"two",3]`,
	}
	for field, bad := range cases {
		args := make(map[string]string, len(base))
		for k, v := range base {
			args[k] = v
		}
		args[field] = bad
		if _, err := b.DecodeArgs("profile", args); err == nil {
			t.Fatalf("DecodeArgs accepted malformed %s = %q", field, bad)
		}
	}
}

func TestDecodeTextRejectsIncompleteRecord(t *testing.T) {
	b := profileBundle(t)
	args := mustEncode(t, b, profileNatives())
	args["home"] = `{"street":"Main"}`

	if _, err := b.DecodeArgs("profile", args); err == nil {
		t.Fatal("DecodeArgs accepted a record missing a required field")
	}
}

func TestRenderValues(t *testing.T) {
	b := profileBundle(t)
	c, err := b.RequestCodec("profile")
	if err != nil {
		t.Fatalf("RequestCodec error = %v", err)
	}

	out, err := c.Render(profileNatives())
	if err != nil {
		t.Fatalf("Render error = %v", err)
	}
	for _, want := range []string{`name: "Ada"`, "age: 36"} {
		if !strings.Contains(out, want) {
			t.Fatalf("render missing %q:\n%s", want, out)
		}
	}
}

func TestListOfRecordsRoundTrip(t *testing.T) {
	point := &schema.RecordType{
		Name: "point",
		Fields: []schema.RecordField{
			{Name: "x", Type: schema.Int()},
			{Name: "y", Type: schema.Int()},
		},
	}
	decl := schema.Declaration{
		Name:   "plot",
		Params: []schema.Param{{Name: "points", Type: schema.ListOf(schema.RecordOf(point))}},
		Return: schema.Returns(schema.Int()),
	}
	b, err := descriptor.Assemble("charts", []schema.Declaration{decl}, nil)
	if err != nil {
		t.Fatalf("Assemble error = %v", err)
	}

	natives := map[string]any{"points": []any{
		map[string]any{"x": int32(1), "y": int32(2)},
		map[string]any{"x": int32(3), "y": int32(4)},
	}}

	args, err := b.EncodeArgs("plot", natives)
	if err != nil {
		t.Fatalf("EncodeArgs error = %v", err)
	}
	if args["points"] != `[{"x":1,"y":2},{"x":3,"y":4}]` {
		t.Fatalf("points = %q", args["points"])
	}

	decoded, err := b.DecodeArgs("plot", args)
	if err != nil {
		t.Fatalf("DecodeArgs error = %v", err)
	}
	if !reflect.DeepEqual(decoded, natives) {
		t.Fatalf("round trip mismatch:\n got %#v\nwant %#v", decoded, natives)
	}

	c, err := b.RequestCodec("plot")
	if err != nil {
		t.Fatalf("RequestCodec error = %v", err)
	}
	data, err := c.EncodeBinary(natives)
	if err != nil {
		t.Fatalf("EncodeBinary error = %v", err)
	}
	binDecoded, err := c.DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary error = %v", err)
	}
	if !reflect.DeepEqual(binDecoded, natives) {
		t.Fatalf("binary round trip mismatch:\n got %#v\nwant %#v", binDecoded, natives)
	}
}

func TestVoidResponseCodec(t *testing.T) {
	decl := schema.Declaration{
		Name:   "ping",
		Params: []schema.Param{{Name: "target", Type: schema.String()}},
		Return: schema.ReturnsNothing(),
	}
	b, err := descriptor.Assemble("netcheck", []schema.Declaration{decl}, nil)
	if err != nil {
		t.Fatalf("Assemble error = %v", err)
	}

	results, err := b.EncodeResult("ping", nil)
	if err != nil {
		t.Fatalf("EncodeResult error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("void results = %v, want empty", results)
	}

	decoded, err := b.DecodeResult("ping", map[string]string{})
	if err != nil {
		t.Fatalf("DecodeResult error = %v", err)
	}
	if decoded != nil {
		t.Fatalf("void decode = %v, want nil", decoded)
	}
}

func TestFloatRoundTripPrecision(t *testing.T) {
	b := profileBundle(t)

	natives := profileNatives()
	natives["score"] = float32(0.1)

	decoded, err := b.DecodeArgs("profile", mustEncode(t, b, natives))
	if err != nil {
		t.Fatalf("DecodeArgs error = %v", err)
	}
	if decoded["score"] != float32(0.1) {
		t.Fatalf("score = %#v, want float32(0.1)", decoded["score"])
	}
}
