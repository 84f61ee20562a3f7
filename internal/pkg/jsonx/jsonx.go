// Package jsonx reads and writes JSON documents whose key order matters, such
// as the VS Code files users also edit by hand.
package jsonx

import (
	"bytes"
	slowJson "encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	fastJson "github.com/goccy/go-json"
	"github.com/ozacod/cppenv/internal/pkg/fsutil"
)

// ErrNotObject is returned when a document's top level is not a JSON object.
var ErrNotObject = errors.New("top-level JSON value is not an object")

// Object is a JSON object that remembers insertion order.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set stores v under key. New keys are appended; existing keys keep their place.
func (o *Object) Set(key string, v any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// String returns the string stored under key, or "" when absent or not a string.
func (o *Object) String(key string) string {
	v, _ := o.Get(key)
	s, _ := v.(string)
	return s
}

// Object returns the nested object under key.
func (o *Object) Object(key string) (*Object, bool) {
	v, _ := o.Get(key)
	obj, ok := v.(*Object)
	return obj, ok && obj != nil
}

// Array returns the array under key.
func (o *Object) Array(key string) ([]any, bool) {
	v, _ := o.Get(key)
	arr, ok := v.([]any)
	return arr, ok
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := &Object{keys: append([]string(nil), o.keys...), values: make(map[string]any, len(o.values))}
	for k, v := range o.values {
		c.values[k] = cloneValue(v)
	}
	return c
}

// CloneValue deep-copies a decoded JSON value.
func CloneValue(v any) any {
	return cloneValue(v)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON writes the keys in order.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeCompact(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encodeCompact(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and keeps its key order, recursively.
func (o *Object) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*o = *parsed
	return nil
}

// Parse decodes data, which must hold a single JSON object. Nested objects
// become *Object, arrays []any and numbers json.Number.
func Parse(data []byte) (*Object, error) {
	// The token stream of encoding/json is used for decoding because key order
	// only survives at token level; encoding goes through goccy.
	dec := slowJson.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(slowJson.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}
	obj, err := decodeObject(dec)
	if err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after top-level object")
	}
	return obj, nil
}

func decodeObject(dec *slowJson.Decoder) (*Object, error) {
	obj := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is %T, not string", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *slowJson.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

func decodeValue(dec *slowJson.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(slowJson.Delim); ok {
		switch d {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", d)
	}
	return tok, nil
}

// ReadFile parses the object stored at path.
func ReadFile(path string) (*Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	obj, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return obj, nil
}

// Marshal encodes v with the given indent, no HTML escaping and a trailing newline.
func Marshal(v any, indent string) ([]byte, error) {
	compact, err := encodeCompact(v)
	if err != nil {
		return nil, err
	}
	if indent == "" {
		return append(compact, '\n'), nil
	}

	var out bytes.Buffer
	if err := slowJson.Indent(&out, compact, "", indent); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// WriteFile marshals v and atomically replaces path.
func WriteFile(path string, v any, indent string) error {
	data, err := Marshal(v, indent)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return fsutil.WriteFile(path, data, 0644)
}

// Unmarshal decodes data into a typed value.
func Unmarshal(data []byte, v any) error {
	return fastJson.Unmarshal(data, v)
}

// Stringify renders a decoded JSON value the way it is substituted into
// templates: strings verbatim, scalars as JSON literals, containers as
// compact JSON and null as "".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case slowJson.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := encodeCompact(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func encodeCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := fastJson.NewEncoder(&buf)
	if err := enc.EncodeWithOption(v, fastJson.DisableHTMLEscape(), fastJson.DisableNormalizeUTF8()); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Quote returns s as a JSON string literal, quotes included.
func Quote(s string) string {
	b, err := encodeCompact(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}
