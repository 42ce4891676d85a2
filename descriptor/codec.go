package descriptor

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/petal-labs/pollen/schema"
)

// Codec encodes and decodes one wire message. The native
// representation is a map keyed by field name:
//
//	int32 fields      int32 (liberal on encode: any Go integer,
//	                  truncated to 32 bits)
//	float fields      float32 (liberal on encode)
//	bool fields       bool
//	string fields     string
//	bytes fields      []byte (string accepted on encode)
//	repeated fields   []any, typed slices accepted on encode
//	map fields        map[string]string
//	message fields    map[string]any keyed by record field
//
// Absent optional fields stay absent from the map on decode; absent
// non-presence scalars decode to their zero value.
type Codec struct {
	spec   schema.MessageSchema
	md     protoreflect.MessageDescriptor
	byName map[string]schema.MessageSchema
}

// Spec returns the message schema the codec serves.
func (c *Codec) Spec() schema.MessageSchema { return c.spec }

// EncodeBinary serializes native values into the message wire format.
// Absent values leave their field unset.
func (c *Codec) EncodeBinary(values map[string]any) ([]byte, error) {
	m := dynamicpb.NewMessage(c.md)
	if err := c.fill(m, c.spec, values); err != nil {
		return nil, err
	}
	return proto.Marshal(m)
}

// DecodeBinary parses message wire bytes into native values.
func (c *Codec) DecodeBinary(data []byte) (map[string]any, error) {
	m := dynamicpb.NewMessage(c.md)
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("%w: message %q: %v", schema.ErrDecodeMismatch, c.spec.Name, err)
	}
	return c.extract(m, c.spec)
}

// Render formats native values as descriptor text format, for
// inspection output.
func (c *Codec) Render(values map[string]any) (string, error) {
	m := dynamicpb.NewMessage(c.md)
	if err := c.fill(m, c.spec, values); err != nil {
		return "", err
	}
	out, err := prototext.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("descriptor: render %q: %w", c.spec.Name, err)
	}
	return string(out), nil
}

func (c *Codec) fill(msg protoreflect.Message, spec schema.MessageSchema, values map[string]any) error {
	fields := msg.Descriptor().Fields()
	for _, fs := range spec.Fields {
		raw, ok := values[fs.Name]
		if !ok || raw == nil {
			continue
		}
		fd := fields.ByName(protoreflect.Name(fs.Name))
		if fd == nil {
			return fmt.Errorf("%w: descriptor for %q lacks field %q", schema.ErrSchemaBuild, spec.Name, fs.Name)
		}

		switch {
		case fs.Map:
			sm, err := toStringMap(raw)
			if err != nil {
				return fmt.Errorf("field %q: %w", fs.Name, err)
			}
			mp := msg.Mutable(fd).Map()
			for k, v := range sm {
				mp.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(v))
			}

		case fs.Repeated:
			elems, err := toSlice(raw)
			if err != nil {
				return fmt.Errorf("field %q: %w", fs.Name, err)
			}
			list := msg.Mutable(fd).List()
			for i, e := range elems {
				v, err := c.singleValue(fd, fs, e)
				if err != nil {
					return fmt.Errorf("field %q[%d]: %w", fs.Name, i, err)
				}
				list.Append(v)
			}

		default:
			v, err := c.singleValue(fd, fs, raw)
			if err != nil {
				return fmt.Errorf("field %q: %w", fs.Name, err)
			}
			msg.Set(fd, v)
		}
	}
	return nil
}

// singleValue converts one native element to a protoreflect value.
func (c *Codec) singleValue(fd protoreflect.FieldDescriptor, fs schema.FieldSpec, raw any) (protoreflect.Value, error) {
	if fs.Wire == schema.WireMessage {
		rm, err := toRecordMap(raw)
		if err != nil {
			return protoreflect.Value{}, err
		}
		nspec, ok := c.byName[fs.TypeName]
		if !ok {
			return protoreflect.Value{}, fmt.Errorf("%w: unknown message %q", schema.ErrSchemaBuild, fs.TypeName)
		}
		nested := dynamicpb.NewMessage(fd.Message())
		if err := c.fill(nested, nspec, rm); err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfMessage(nested), nil
	}

	switch fs.Wire {
	case schema.WireInt32:
		n, err := toInt32(raw)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfInt32(n), nil
	case schema.WireFloat:
		f, err := toFloat32(raw)
		if err != nil {
			return protoreflect.Value{}, err
		}
		return protoreflect.ValueOfFloat32(f), nil
	case schema.WireBool:
		b, ok := raw.(bool)
		if !ok {
			return protoreflect.Value{}, typeMismatch("bool", raw)
		}
		return protoreflect.ValueOfBool(b), nil
	case schema.WireString:
		s, ok := raw.(string)
		if !ok {
			return protoreflect.Value{}, typeMismatch("string", raw)
		}
		return protoreflect.ValueOfString(s), nil
	case schema.WireBytes:
		switch v := raw.(type) {
		case []byte:
			return protoreflect.ValueOfBytes(v), nil
		case string:
			return protoreflect.ValueOfBytes([]byte(v)), nil
		}
		return protoreflect.Value{}, typeMismatch("bytes", raw)
	default:
		return protoreflect.Value{}, fmt.Errorf("%w: wire type %q", schema.ErrSchemaBuild, fs.Wire)
	}
}

func (c *Codec) extract(msg protoreflect.Message, spec schema.MessageSchema) (map[string]any, error) {
	fields := msg.Descriptor().Fields()
	out := make(map[string]any, len(spec.Fields))

	for _, fs := range spec.Fields {
		fd := fields.ByName(protoreflect.Name(fs.Name))
		if fd == nil {
			return nil, fmt.Errorf("%w: descriptor for %q lacks field %q", schema.ErrSchemaBuild, spec.Name, fs.Name)
		}

		switch {
		case fs.Map:
			sm := make(map[string]string)
			msg.Get(fd).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
				sm[k.String()] = v.String()
				return true
			})
			out[fs.Name] = sm

		case fs.Repeated:
			list := msg.Get(fd).List()
			elems := make([]any, 0, list.Len())
			for i := 0; i < list.Len(); i++ {
				e, err := c.singleNative(fs, list.Get(i))
				if err != nil {
					return nil, fmt.Errorf("field %q[%d]: %w", fs.Name, i, err)
				}
				elems = append(elems, e)
			}
			out[fs.Name] = elems

		case fs.Wire == schema.WireMessage:
			if !msg.Has(fd) {
				continue
			}
			v, err := c.singleNative(fs, msg.Get(fd))
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fs.Name, err)
			}
			out[fs.Name] = v

		default:
			if fs.Optional && !msg.Has(fd) {
				continue
			}
			v, err := c.singleNative(fs, msg.Get(fd))
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", fs.Name, err)
			}
			out[fs.Name] = v
		}
	}
	return out, nil
}

func (c *Codec) singleNative(fs schema.FieldSpec, v protoreflect.Value) (any, error) {
	switch fs.Wire {
	case schema.WireInt32:
		return int32(v.Int()), nil
	case schema.WireFloat:
		return float32(v.Float()), nil
	case schema.WireBool:
		return v.Bool(), nil
	case schema.WireString:
		return v.String(), nil
	case schema.WireBytes:
		return v.Bytes(), nil
	case schema.WireMessage:
		nspec, ok := c.byName[fs.TypeName]
		if !ok {
			return nil, fmt.Errorf("%w: unknown message %q", schema.ErrSchemaBuild, fs.TypeName)
		}
		return c.extract(v.Message(), nspec)
	default:
		return nil, fmt.Errorf("%w: wire type %q", schema.ErrSchemaBuild, fs.Wire)
	}
}

// Conversion helpers. Encode-side inputs are liberal; integers outside
// the 32-bit range truncate, matching the declared wire width.

func typeMismatch(want string, got any) error {
	return fmt.Errorf("%w: want %s, got %T", schema.ErrDecodeMismatch, want, got)
}

func toInt32(raw any) (int32, error) {
	switch v := raw.(type) {
	case int32:
		return v, nil
	case int:
		return int32(v), nil
	case int8:
		return int32(v), nil
	case int16:
		return int32(v), nil
	case int64:
		return int32(v), nil
	case uint:
		return int32(v), nil
	case uint8:
		return int32(v), nil
	case uint16:
		return int32(v), nil
	case uint32:
		return int32(v), nil
	case uint64:
		return int32(v), nil
	case float32:
		if math.Trunc(float64(v)) != float64(v) {
			return 0, typeMismatch("integer", raw)
		}
		return int32(v), nil
	case float64:
		if math.Trunc(v) != v {
			return 0, typeMismatch("integer", raw)
		}
		return int32(v), nil
	}
	return 0, typeMismatch("integer", raw)
}

func toFloat32(raw any) (float32, error) {
	switch v := raw.(type) {
	case float32:
		return v, nil
	case float64:
		return float32(v), nil
	case int:
		return float32(v), nil
	case int32:
		return float32(v), nil
	case int64:
		return float32(v), nil
	}
	return 0, typeMismatch("float", raw)
}

func toSlice(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []int32:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []int64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []float32:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []float64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []bool:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case [][]byte:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	case []map[string]any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out, nil
	}
	return nil, typeMismatch("list", raw)
}

func toStringMap(raw any) (map[string]string, error) {
	switch v := raw.(type) {
	case map[string]string:
		return v, nil
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, typeMismatch("string map value", e)
			}
			out[k] = s
		}
		return out, nil
	}
	return nil, typeMismatch("string map", raw)
}

func toRecordMap(raw any) (map[string]any, error) {
	if m, ok := raw.(map[string]any); ok {
		return m, nil
	}
	return nil, typeMismatch("record", raw)
}
