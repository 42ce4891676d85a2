package descriptor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/petal-labs/pollen/schema"
)

// Canonical text encoding. The transport envelope carries every
// argument and result as a string; this file defines the one encoding
// both sides agree on:
//
//	int32    decimal digits, optional leading minus
//	float    shortest decimal that round-trips at 32-bit precision
//	bool     "true" or "false"
//	string   the value itself, verbatim UTF-8
//	bytes    standard base64
//	repeated JSON array of element values
//	map      JSON object with string values
//	message  JSON object keyed by record field
//
// Scalars inside JSON composites use JSON-native forms: numbers for
// int32 and float, booleans for bool, base64 strings for bytes.

// EncodeText renders native values into envelope strings. Absent
// values are allowed for optional fields and fields with a declared
// default; a missing required value is an error.
func (c *Codec) EncodeText(values map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, fs := range c.spec.Fields {
		raw, ok := values[fs.Name]
		if !ok || raw == nil {
			if fs.Optional || fs.HasDefault {
				continue
			}
			return nil, fmt.Errorf("%w: missing value for field %q", schema.ErrDecodeMismatch, fs.Name)
		}
		s, err := c.encodeField(fs, raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fs.Name, err)
		}
		out[fs.Name] = s
	}
	return out, nil
}

// DecodeText parses envelope strings into native values. Declared
// defaults fill absent keys; absent optional fields stay absent;
// absent required fields are an error. Keys not named by the schema
// are ignored.
func (c *Codec) DecodeText(args map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(c.spec.Fields))
	for _, fs := range c.spec.Fields {
		s, ok := args[fs.Name]
		if !ok {
			switch {
			case fs.HasDefault:
				v, err := c.coerceJSONValue(fs, fs.Default)
				if err != nil {
					return nil, fmt.Errorf("field %q default: %w", fs.Name, err)
				}
				out[fs.Name] = v
			case fs.Optional:
			default:
				return nil, fmt.Errorf("%w: missing required argument %q", schema.ErrDecodeMismatch, fs.Name)
			}
			continue
		}
		v, err := c.decodeField(fs, s)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", fs.Name, err)
		}
		out[fs.Name] = v
	}
	return out, nil
}

func (c *Codec) encodeField(fs schema.FieldSpec, raw any) (string, error) {
	switch {
	case fs.Map:
		sm, err := toStringMap(raw)
		if err != nil {
			return "", err
		}
		return marshalJSON(sm)

	case fs.Repeated:
		elems, err := toSlice(raw)
		if err != nil {
			return "", err
		}
		jsonElems := make([]any, len(elems))
		for i, e := range elems {
			je, err := c.jsonValue(fs, e)
			if err != nil {
				return "", fmt.Errorf("element %d: %w", i, err)
			}
			jsonElems[i] = je
		}
		return marshalJSON(jsonElems)

	case fs.Wire == schema.WireMessage:
		je, err := c.jsonValue(fs, raw)
		if err != nil {
			return "", err
		}
		return marshalJSON(je)

	default:
		return encodeScalar(fs.Wire, raw)
	}
}

func (c *Codec) decodeField(fs schema.FieldSpec, s string) (any, error) {
	switch {
	case fs.Map:
		var sm map[string]string
		if err := json.Unmarshal([]byte(s), &sm); err != nil {
			return nil, fmt.Errorf("%w: %q is not a JSON string map", schema.ErrDecodeMismatch, s)
		}
		return sm, nil

	case fs.Repeated:
		var elems []any
		if err := json.Unmarshal([]byte(s), &elems); err != nil {
			return nil, fmt.Errorf("%w: %q is not a JSON array", schema.ErrDecodeMismatch, s)
		}
		out := make([]any, len(elems))
		for i, e := range elems {
			v, err := c.coerceJSONValue(fs, e)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil

	case fs.Wire == schema.WireMessage:
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err != nil {
			return nil, fmt.Errorf("%w: %q is not a JSON object", schema.ErrDecodeMismatch, s)
		}
		return c.coerceRecord(fs.TypeName, obj)

	default:
		return decodeScalar(fs.Wire, s)
	}
}

// jsonValue converts one native element into its JSON-composite form.
func (c *Codec) jsonValue(fs schema.FieldSpec, raw any) (any, error) {
	if fs.Wire == schema.WireMessage {
		rm, err := toRecordMap(raw)
		if err != nil {
			return nil, err
		}
		nspec, ok := c.byName[fs.TypeName]
		if !ok {
			return nil, fmt.Errorf("%w: unknown message %q", schema.ErrSchemaBuild, fs.TypeName)
		}
		obj := make(map[string]any, len(nspec.Fields))
		for _, nf := range nspec.Fields {
			nraw, ok := rm[nf.Name]
			if !ok || nraw == nil {
				if nf.Optional {
					continue
				}
				return nil, fmt.Errorf("%w: record %q missing field %q", schema.ErrDecodeMismatch, fs.TypeName, nf.Name)
			}
			switch {
			case nf.Map:
				sm, err := toStringMap(nraw)
				if err != nil {
					return nil, fmt.Errorf("record field %q: %w", nf.Name, err)
				}
				obj[nf.Name] = sm
			case nf.Repeated:
				elems, err := toSlice(nraw)
				if err != nil {
					return nil, fmt.Errorf("record field %q: %w", nf.Name, err)
				}
				jsonElems := make([]any, len(elems))
				for i, e := range elems {
					je, err := scalarJSON(nf.Wire, e)
					if err != nil {
						return nil, fmt.Errorf("record field %q[%d]: %w", nf.Name, i, err)
					}
					jsonElems[i] = je
				}
				obj[nf.Name] = jsonElems
			default:
				je, err := scalarJSON(nf.Wire, nraw)
				if err != nil {
					return nil, fmt.Errorf("record field %q: %w", nf.Name, err)
				}
				obj[nf.Name] = je
			}
		}
		return obj, nil
	}
	return scalarJSON(fs.Wire, raw)
}

// coerceJSONValue turns a decoded JSON element (or declared default)
// into the canonical native form for one field element.
func (c *Codec) coerceJSONValue(fs schema.FieldSpec, e any) (any, error) {
	if fs.Wire == schema.WireMessage {
		obj, ok := e.(map[string]any)
		if !ok {
			return nil, typeMismatch("record", e)
		}
		return c.coerceRecord(fs.TypeName, obj)
	}
	return coerceScalarJSON(fs.Wire, e)
}

// coerceRecord validates a decoded JSON object against a record
// schema: required fields must be present, values coerce to their
// field types, extra keys are dropped.
func (c *Codec) coerceRecord(typeName string, obj map[string]any) (map[string]any, error) {
	nspec, ok := c.byName[typeName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message %q", schema.ErrSchemaBuild, typeName)
	}
	out := make(map[string]any, len(nspec.Fields))
	for _, nf := range nspec.Fields {
		e, ok := obj[nf.Name]
		if !ok || e == nil {
			if nf.Optional {
				continue
			}
			return nil, fmt.Errorf("%w: record %q missing field %q", schema.ErrDecodeMismatch, typeName, nf.Name)
		}
		switch {
		case nf.Map:
			sm, err := toStringMap(e)
			if err != nil {
				return nil, fmt.Errorf("record field %q: %w", nf.Name, err)
			}
			out[nf.Name] = sm
		case nf.Repeated:
			elems, err := toSlice(e)
			if err != nil {
				return nil, fmt.Errorf("record field %q: %w", nf.Name, err)
			}
			vals := make([]any, len(elems))
			for i, el := range elems {
				v, err := coerceScalarJSON(nf.Wire, el)
				if err != nil {
					return nil, fmt.Errorf("record field %q[%d]: %w", nf.Name, i, err)
				}
				vals[i] = v
			}
			out[nf.Name] = vals
		default:
			v, err := coerceScalarJSON(nf.Wire, e)
			if err != nil {
				return nil, fmt.Errorf("record field %q: %w", nf.Name, err)
			}
			out[nf.Name] = v
		}
	}
	return out, nil
}

func encodeScalar(w schema.WireType, raw any) (string, error) {
	switch w {
	case schema.WireInt32:
		n, err := toInt32(raw)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(n), 10), nil
	case schema.WireFloat:
		f, err := toFloat32(raw)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(float64(f), 'g', -1, 32), nil
	case schema.WireBool:
		b, ok := raw.(bool)
		if !ok {
			return "", typeMismatch("bool", raw)
		}
		return strconv.FormatBool(b), nil
	case schema.WireString:
		s, ok := raw.(string)
		if !ok {
			return "", typeMismatch("string", raw)
		}
		return s, nil
	case schema.WireBytes:
		switch v := raw.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(v), nil
		case string:
			return base64.StdEncoding.EncodeToString([]byte(v)), nil
		}
		return "", typeMismatch("bytes", raw)
	default:
		return "", fmt.Errorf("%w: wire type %q", schema.ErrSchemaBuild, w)
	}
}

func decodeScalar(w schema.WireType, s string) (any, error) {
	switch w {
	case schema.WireInt32:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", schema.ErrDecodeMismatch, s)
		}
		// Values beyond 32 bits truncate, matching the wire width.
		return int32(n), nil
	case schema.WireFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a float", schema.ErrDecodeMismatch, s)
		}
		return float32(f), nil
	case schema.WireBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", schema.ErrDecodeMismatch, s)
		}
		return b, nil
	case schema.WireString:
		return s, nil
	case schema.WireBytes:
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not base64", schema.ErrDecodeMismatch, s)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: wire type %q", schema.ErrSchemaBuild, w)
	}
}

// scalarJSON converts a native scalar to its JSON-composite form.
func scalarJSON(w schema.WireType, raw any) (any, error) {
	switch w {
	case schema.WireInt32:
		n, err := toInt32(raw)
		if err != nil {
			return nil, err
		}
		return n, nil
	case schema.WireFloat:
		f, err := toFloat32(raw)
		if err != nil {
			return nil, err
		}
		return f, nil
	case schema.WireBool:
		b, ok := raw.(bool)
		if !ok {
			return nil, typeMismatch("bool", raw)
		}
		return b, nil
	case schema.WireString:
		s, ok := raw.(string)
		if !ok {
			return nil, typeMismatch("string", raw)
		}
		return s, nil
	case schema.WireBytes:
		switch v := raw.(type) {
		case []byte:
			return base64.StdEncoding.EncodeToString(v), nil
		case string:
			return base64.StdEncoding.EncodeToString([]byte(v)), nil
		}
		return nil, typeMismatch("bytes", raw)
	default:
		return nil, fmt.Errorf("%w: wire type %q", schema.ErrSchemaBuild, w)
	}
}

// coerceScalarJSON turns a decoded JSON scalar into canonical native
// form. JSON numbers arrive as float64; integer fields require an
// integral value.
func coerceScalarJSON(w schema.WireType, e any) (any, error) {
	switch w {
	case schema.WireInt32:
		return toInt32(e)
	case schema.WireFloat:
		return toFloat32(e)
	case schema.WireBool:
		b, ok := e.(bool)
		if !ok {
			return nil, typeMismatch("bool", e)
		}
		return b, nil
	case schema.WireString:
		s, ok := e.(string)
		if !ok {
			return nil, typeMismatch("string", e)
		}
		return s, nil
	case schema.WireBytes:
		s, ok := e.(string)
		if !ok {
			return nil, typeMismatch("base64 string", e)
		}
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not base64", schema.ErrDecodeMismatch, s)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: wire type %q", schema.ErrSchemaBuild, w)
	}
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("descriptor: marshal composite: %w", err)
	}
	return string(data), nil
}
