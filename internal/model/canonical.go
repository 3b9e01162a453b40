package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces a canonical JSON encoding of an attribute payload:
// object keys sorted, strings NFC normalized, no HTML escaping. Two payloads
// that differ only in key order or Unicode representation of the same text
// encode identically.
//
// This is the only serialization used for attribute equality (diff,
// modified-detection) and for persisting payloads in both storage backends.
func MarshalCanonical(a Attrs) ([]byte, error) {
	return marshalValue(map[string]any(a))
}

// AttrsEqual reports whether two attribute payloads are canonically equal.
func AttrsEqual(a, b Attrs) (bool, error) {
	ca, err := MarshalCanonical(a)
	if err != nil {
		return false, fmt.Errorf("canonicalize left: %w", err)
	}
	cb, err := MarshalCanonical(b)
	if err != nil {
		return false, fmt.Errorf("canonicalize right: %w", err)
	}
	return bytes.Equal(ca, cb), nil
}

// UnmarshalAttrs decodes a stored canonical payload back into an Attrs map.
// Numbers decode as json.Number so integer attributes survive a round trip
// without float conversion.
func UnmarshalAttrs(data []byte) (Attrs, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode attrs: %w", err)
	}
	return Attrs(m), nil
}

func marshalValue(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return marshalString(val)
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case json.Number:
		return []byte(val.String()), nil
	case float64:
		// Attribute schemas only admit integer numerics; a float here came
		// from a plain json.Unmarshal upstream. Reject fractional values.
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("non-integer number %v in attribute payload", val)
		}
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalArray(arr)
	case []any:
		return marshalArray(val)
	case map[string]any:
		return marshalObject(val)
	case Attrs:
		return marshalObject(map[string]any(val))
	default:
		return nil, fmt.Errorf("unsupported attribute type %T", v)
	}
}

func marshalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("encode string: %w", err)
	}
	// Encode appends a trailing newline.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func marshalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := marshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalObject(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyData, err := marshalString(k)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", k, err)
		}
		buf.Write(keyData)
		buf.WriteByte(':')
		valData, err := marshalValue(m[k])
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		buf.Write(valData)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
