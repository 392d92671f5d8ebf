package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// AttrType is the storage type tag of an attribute value.
type AttrType string

const (
	TypeText  AttrType = "text"
	TypeInt   AttrType = "int"
	TypeFloat AttrType = "float"
	TypeJSON  AttrType = "json"
)

// Valid reports whether t is one of the four attribute types.
func (t AttrType) Valid() bool {
	switch t {
	case TypeText, TypeInt, TypeFloat, TypeJSON:
		return true
	}
	return false
}

// Value is an attribute value. The set of implementations is closed:
// Text, Int, Float and JSON.
type Value interface {
	Type() AttrType
	// Interface returns the plain Go value (string, int64, float64, or the
	// decoded JSON document).
	Interface() any
	isValue()
}

type (
	Text  string
	Int   int64
	Float float64
	// JSON holds an encoded JSON document.
	JSON json.RawMessage
)

func (Text) Type() AttrType  { return TypeText }
func (Int) Type() AttrType   { return TypeInt }
func (Float) Type() AttrType { return TypeFloat }
func (JSON) Type() AttrType  { return TypeJSON }

func (v Text) Interface() any  { return string(v) }
func (v Int) Interface() any   { return int64(v) }
func (v Float) Interface() any { return float64(v) }

func (v JSON) Interface() any {
	var out any
	if err := json.Unmarshal(v, &out); err != nil {
		return nil
	}
	return out
}

// MarshalJSON embeds the document as-is instead of base64.
func (v JSON) MarshalJSON() ([]byte, error) {
	if len(v) == 0 {
		return []byte("null"), nil
	}
	return []byte(v), nil
}

func (Text) isValue()  {}
func (Int) isValue()   {}
func (Float) isValue() {}
func (JSON) isValue()  {}

// NewJSON encodes an arbitrary document into a JSON value.
func NewJSON(doc any) (JSON, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, typeMismatch("encoding json attribute: %v", err)
	}
	return JSON(data), nil
}

// ValueOf maps a host value to its attribute value. The mapping covers
// strings, signed integers, finite floats, maps with string keys and
// slices other than []byte; any other type fails with ErrTypeMismatch.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Float:
		return floatValue(float64(x))
	case Value:
		return x, nil
	case string:
		return Text(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case float32:
		return floatValue(float64(x))
	case float64:
		return floatValue(x)
	case map[string]any:
		return NewJSON(x)
	case []any:
		return NewJSON(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() != reflect.Uint8 {
			return NewJSON(v)
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return NewJSON(v)
		}
	}
	return nil, typeMismatch("cannot infer attribute type of %T", v)
}

// floatValue rejects NaN and infinities, which neither backend stores
// faithfully and JSON cannot encode.
func floatValue(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, typeMismatch("float attribute must be finite, got %v", f)
	}
	return Float(f), nil
}

// Coerce builds a value of the declared type t from a host value,
// rejecting host types that are not allowed for t.
func Coerce(v any, t AttrType) (Value, error) {
	if val, ok := v.(Value); ok {
		if val.Type() != t {
			return nil, typeMismatch("value of type %s declared as %s", val.Type(), t)
		}
		return ValueOf(val)
	}
	inferred, err := ValueOf(v)
	if err != nil {
		return nil, err
	}
	switch t {
	case TypeText, TypeInt, TypeFloat:
		if inferred.Type() != t {
			return nil, typeMismatch("%T is not allowed for %s attributes", v, t)
		}
		return inferred, nil
	case TypeJSON:
		if j, ok := inferred.(JSON); ok {
			return j, nil
		}
		return NewJSON(inferred.Interface())
	default:
		return nil, typeMismatch("unknown attribute type %q", t)
	}
}

// Encode converts a value to the column representation used by backends:
// string for text and json, int64 for int, float64 for float.
func Encode(v Value) (AttrType, any) {
	switch x := v.(type) {
	case Text:
		return TypeText, string(x)
	case Int:
		return TypeInt, int64(x)
	case Float:
		return TypeFloat, float64(x)
	case JSON:
		return TypeJSON, string(x)
	}
	panic(fmt.Sprintf("graph: unknown value implementation %T", v))
}

// Decode rebuilds a value from its stored type and raw column value.
// When want is non-empty it must match the stored type.
func Decode(stored AttrType, raw any, want AttrType) (Value, error) {
	if want != "" && want != stored {
		return nil, typeMismatch("attribute stored as %s, requested %s", stored, want)
	}
	switch stored {
	case TypeText:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		return Text(s), nil
	case TypeInt:
		switch x := raw.(type) {
		case int64:
			return Int(x), nil
		case int:
			return Int(x), nil
		case float64:
			if x == math.Trunc(x) {
				return Int(int64(x)), nil
			}
		}
		return nil, typeMismatch("cannot decode %T as int", raw)
	case TypeFloat:
		switch x := raw.(type) {
		case float64:
			return Float(x), nil
		case int64:
			return Float(float64(x)), nil
		}
		return nil, typeMismatch("cannot decode %T as float", raw)
	case TypeJSON:
		s, err := asString(raw)
		if err != nil {
			return nil, err
		}
		if !json.Valid([]byte(s)) {
			return nil, typeMismatch("stored json attribute is not valid json")
		}
		return JSON(s), nil
	}
	return nil, typeMismatch("unknown stored attribute type %q", stored)
}

// Equal reports whether two values have the same type and content.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type() != b.Type() {
		return false
	}
	if ja, ok := a.(JSON); ok {
		return bytes.Equal(ja, b.(JSON))
	}
	return a == b
}

func asString(raw any) (string, error) {
	switch x := raw.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	}
	return "", typeMismatch("cannot decode %T as string", raw)
}
