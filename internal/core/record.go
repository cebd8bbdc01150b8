package core

// record.go provides the ordered key/value record shared by the raw and
// clean sides of the pipeline.
//
// Go maps have no iteration order, but the column order of an upload matters
// twice: clean records are inserted column-by-column in a fixed order, and
// quarantined rows are persisted as JSON that should read like the source row.
// Record keeps insertion order and round-trips it through JSON.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is an insertion-ordered mapping from field name to an untyped scalar
// (nil, string, bool, json.Number, int64, float64, ...).
//
// The zero value is an empty record ready to use.
type Record struct {
	keys   []string
	values map[string]any
}

// RawRecord is a record exactly as it arrived at the ingestion boundary.
type RawRecord = Record

// NewRecord builds a record from alternating key/value pairs.
// It panics if pairs has odd length or a key is not a string.
func NewRecord(pairs ...any) Record {
	if len(pairs)%2 != 0 {
		panic("core.NewRecord: odd number of arguments")
	}
	var r Record
	for i := 0; i < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("core.NewRecord: key %v is not a string", pairs[i]))
		}
		r.Set(k, pairs[i+1])
	}
	return r
}

// Set stores v under key. Existing keys keep their position.
func (r *Record) Set(key string, v any) {
	if r.values == nil {
		r.values = make(map[string]any)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value stored under key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Value returns the value stored under key, or nil.
func (r Record) Value(key string) any {
	return r.values[key]
}

// Keys returns the keys in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r Record) Len() int {
	return len(r.keys)
}

// Values returns the values in key order.
func (r Record) Values() []any {
	out := make([]any, len(r.keys))
	for i, k := range r.keys {
		out[i] = r.values[k]
	}
	return out
}

// Clone returns a copy that shares no storage with r.
func (r Record) Clone() Record {
	var c Record
	for _, k := range r.keys {
		c.Set(k, r.values[k])
	}
	return c
}

// MarshalJSON encodes the record as a JSON object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := marshalScalar(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalScalar encodes v, mapping non-finite floats to null so a malformed
// cell can never make a whole quarantine batch unencodable.
func marshalScalar(v any) ([]byte, error) {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes a JSON object, preserving key order.
// Numbers are kept as json.Number so integer identifiers survive intact.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record: expected JSON object, got %v", tok)
	}

	*r = Record{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("record: expected string key, got %v", tok)
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("record: field %q: %w", key, err)
		}
		r.Set(key, v)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// scalarString renders a scalar the way a spreadsheet would show it.
// The second return is false for absent values (nil, NaN).
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32:
		return scalarString(float64(x))
	case int:
		return strconv.Itoa(x), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return fmt.Sprint(x), true
	}
}

// scalarNumber reports the numeric value of v when v is a number type.
// Strings are not numbers here, even when they look like one.
func scalarNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case float32:
		return scalarNumber(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// scalarInt reports v as an int64 when it is an integer type or a JSON
// number with no fraction or exponent. Large ids stay exact this way.
func scalarInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// trimmedText returns the trimmed string form of v, or "" when absent.
func trimmedText(v any) string {
	s, ok := scalarString(v)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
