package topology

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinKey orders below every other value.
type MinKey struct{}

// MaxKey orders above every other value.
type MaxKey struct{}

func (MinKey) String() string { return "MinKey" }
func (MaxKey) String() string { return "MaxKey" }

func (MinKey) MarshalJSON() ([]byte, error) { return []byte(`{"$minKey":1}`), nil }
func (MaxKey) MarshalJSON() ([]byte, error) { return []byte(`{"$maxKey":1}`), nil }

// NormalizeValue converts a decoded YAML, JSON or Go value into one of the
// supported key value types: nil, bool, int64, float64, string, MinKey or
// MaxKey. The extended JSON markers {"$minKey": 1} and {"$maxKey": 1} become
// MinKey and MaxKey.
func NormalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, float64, MinKey, MaxKey:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return float64(x), nil
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrInvalid, x.String())
		}
		return f, nil
	case map[string]any:
		if len(x) == 1 {
			if _, ok := x["$minKey"]; ok {
				return MinKey{}, nil
			}
			if _, ok := x["$maxKey"]; ok {
				return MaxKey{}, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: unsupported key value %v (%T)", ErrInvalid, v, v)
}

func typeRank(v any) int {
	switch v.(type) {
	case MinKey:
		return 0
	case nil:
		return 1
	case int64, float64:
		return 2
	case string:
		return 3
	case bool:
		return 4
	case MaxKey:
		return 5
	}
	return 6
}

// CompareValues orders two normalized values: by type (MinKey, null,
// numbers, strings, booleans, MaxKey), then by value.
func CompareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch x := a.(type) {
	case int64:
		if y, ok := b.(int64); ok {
			return cmpInt64(x, y)
		}
		return cmpFloat(float64(x), b.(float64))
	case float64:
		if y, ok := b.(int64); ok {
			return cmpFloat(x, float64(y))
		}
		return cmpFloat(x, b.(float64))
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	}
	return 0
}

// CompareKeys compares two full key tuples under the key's field directions.
func CompareKeys(key ShardKey, a, b []any) int {
	for i := range key {
		if i >= len(a) || i >= len(b) {
			break
		}
		c := CompareValues(a[i], b[i])
		if c != 0 {
			return c * key[i].Direction
		}
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// BoundField is one field/value pair of a range bound.
type BoundField struct {
	Field string
	Value any
}

// Bound is an ordered document naming a prefix of the shard key fields.
// Field order is significant, so Bound decodes YAML and JSON objects
// preserving key order.
type Bound []BoundField

// NewBound builds a bound from alternating field names and values.
func NewBound(pairs ...any) Bound {
	b := make(Bound, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		name, _ := pairs[i].(string)
		v, err := NormalizeValue(pairs[i+1])
		if err != nil {
			v = pairs[i+1]
		}
		b = append(b, BoundField{Field: name, Value: v})
	}
	return b
}

// Extend checks that the bound's fields are a prefix of key and returns the
// full key tuple. Missing trailing fields are padded with the lowest value
// under the field's direction: MinKey for ascending fields and MaxKey for
// descending ones, so the padded tuple sorts before every key sharing the
// bound's prefix.
func (b Bound) Extend(key ShardKey) ([]any, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: bound cannot be empty", ErrInvalid)
	}
	if len(b) > len(key) {
		return nil, fmt.Errorf("%w: bound %s has more fields than shard key %s", ErrInvalid, b, key)
	}
	out := make([]any, len(key))
	for i, f := range key {
		if i >= len(b) {
			out[i] = lowest(f.Direction)
			continue
		}
		if b[i].Field != f.Field {
			return nil, fmt.Errorf("%w: bound %s is not a prefix of shard key %s", ErrInvalid, b, key)
		}
		if typeRank(b[i].Value) > 5 {
			return nil, fmt.Errorf("%w: bound %s has unsupported value for %q", ErrInvalid, b, f.Field)
		}
		out[i] = b[i].Value
	}
	return out, nil
}

func lowest(direction int) any {
	if direction < 0 {
		return MaxKey{}
	}
	return MinKey{}
}

// Equal reports whether both bounds name the same fields with equal values.
func (b Bound) Equal(other Bound) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i].Field != other[i].Field {
			return false
		}
		if typeRank(b[i].Value) != typeRank(other[i].Value) || CompareValues(b[i].Value, other[i].Value) != 0 {
			return false
		}
	}
	return true
}

func (b Bound) String() string {
	parts := make([]string, len(b))
	for i, f := range b {
		parts[i] = f.Field + ": " + formatValue(f.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	default:
		return fmt.Sprint(x)
	}
}

// MarshalJSON encodes the bound as a JSON object in field order.
func (b Bound) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Field)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping its key order.
func (b *Bound) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w: bound must be a JSON object", ErrInvalid)
	}
	out := Bound{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		v, err := NormalizeValue(raw)
		if err != nil {
			return fmt.Errorf("bound field %q: %w", name, err)
		}
		out = append(out, BoundField{Field: name, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}

// UnmarshalYAML decodes a YAML mapping keeping its key order.
func (b *Bound) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: bound at line %d must be a mapping", ErrInvalid, node.Line)
	}
	out := make(Bound, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		var raw any
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return err
		}
		v, err := NormalizeValue(raw)
		if err != nil {
			return fmt.Errorf("bound field %q at line %d: %w", name, node.Content[i].Line, err)
		}
		out = append(out, BoundField{Field: name, Value: v})
	}
	*b = out
	return nil
}
