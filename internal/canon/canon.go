// Package canon provides the canonical serialization used for every
// content-addressed identity in the engine: input revisions, build cache
// keys, and closure fingerprints.
//
// Canonical form is a JSON subset: object keys sorted by byte order,
// strings NFC-normalized, no HTML escaping, no floats, no null. Two
// logically equal values always serialize to the same bytes, which is what
// makes revisions and build keys stable across invocations and hosts.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces canonical bytes for v.
//
// Accepted types: string, int, int64, bool, []any, map[string]any, and
// nested combinations thereof. Floats and nil are rejected with an error:
// neither has a canonical representation, and nothing in the engine's
// identity material needs them.
func Marshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical form")
	case string:
		return marshalString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalArray(arr)
	case []any:
		return marshalArray(val)
	case map[string]string:
		obj := make(map[string]any, len(val))
		for k, s := range val {
			obj[k] = s
		}
		return marshalObject(obj)
	case map[string]any:
		return marshalObject(val)
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical form: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical form: %T", v)
	}
}

func marshalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := Marshal(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalObject(obj map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := marshalString(k)
		if err != nil {
			return nil, fmt.Errorf("object key %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := Marshal(obj[k])
		if err != nil {
			return nil, fmt.Errorf("object[%q]: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalString encodes s as a JSON string with NFC normalization and HTML
// escaping disabled. Normalizing at the serialization boundary means
// visually identical Unicode spellings hash identically.
func marshalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder appends a trailing newline; strip it.
	out := buf.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
	}
	return out, nil
}
