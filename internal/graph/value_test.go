package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want AttrType
	}{
		{"hello", TypeText},
		{42, TypeInt},
		{int32(-1), TypeInt},
		{int64(1 << 40), TypeInt},
		{3.5, TypeFloat},
		{float32(1.25), TypeFloat},
		{map[string]any{"a": 1}, TypeJSON},
		{[]any{1, "two"}, TypeJSON},
		{Text("pre-typed"), TypeText},
		{[]string{"x", "y"}, TypeJSON},
		{[]int{1, 2}, TypeJSON},
		{[2]float64{1, 2}, TypeJSON},
		{map[string]string{"k": "v"}, TypeJSON},
		{map[string][]int{"k": {1}}, TypeJSON},
	}
	for _, tt := range tests {
		v, err := ValueOf(tt.in)
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, v.Type(), "%v", tt.in)
	}

	for _, bad := range []any{true, nil, struct{}{}, uint(3), []byte("raw"), map[int]string{1: "x"}} {
		_, err := ValueOf(bad)
		assert.True(t, IsTypeMismatch(err), "%v", bad)
	}
}

func TestValueOf_TypedCollections(t *testing.T) {
	v, err := ValueOf([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, JSON(`["a","b"]`), v)
	assert.Equal(t, []any{"a", "b"}, v.Interface())

	v, err = ValueOf(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(1)}, v.Interface())
}

func TestValueOf_NonFiniteFloats(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ValueOf(f)
		assert.True(t, IsTypeMismatch(err), "%v", f)

		_, err = ValueOf(float32(f))
		assert.True(t, IsTypeMismatch(err), "float32 %v", f)

		_, err = ValueOf(Float(f))
		assert.True(t, IsTypeMismatch(err), "Float %v", f)

		_, err = Coerce(f, TypeFloat)
		assert.True(t, IsTypeMismatch(err), "coerce %v", f)

		_, err = Coerce(Float(f), TypeFloat)
		assert.True(t, IsTypeMismatch(err), "coerce Float %v", f)

		_, err = ValueOf([]float64{1, f})
		assert.True(t, IsTypeMismatch(err), "nested %v", f)
	}

	v, err := ValueOf(math.MaxFloat64)
	require.NoError(t, err)
	assert.Equal(t, Float(math.MaxFloat64), v)
}

func TestCoerce(t *testing.T) {
	v, err := Coerce("[1,2]", TypeJSON)
	require.NoError(t, err)
	assert.Equal(t, JSON(`"[1,2]"`), v)

	v, err = Coerce(7, TypeJSON)
	require.NoError(t, err)
	assert.Equal(t, []byte("7"), []byte(v.(JSON)))

	_, err = Coerce("7", TypeInt)
	assert.True(t, IsTypeMismatch(err))
	_, err = Coerce(7, TypeFloat)
	assert.True(t, IsTypeMismatch(err))
	_, err = Coerce(Int(7), TypeText)
	assert.True(t, IsTypeMismatch(err))
	_, err = Coerce(7, AttrType("date"))
	assert.True(t, IsTypeMismatch(err))

	v, err = Coerce(2.5, TypeFloat)
	require.NoError(t, err)
	assert.Equal(t, Float(2.5), v)
}

func TestEncodeDecode(t *testing.T) {
	doc, err := NewJSON(map[string]any{"k": []any{1.0, "v"}})
	require.NoError(t, err)

	for _, v := range []Value{Text("t"), Int(-9), Float(0.25), doc} {
		typ, raw := Encode(v)
		got, err := Decode(typ, raw, "")
		require.NoError(t, err)
		assert.True(t, Equal(v, got), "%v", v)
		assert.Equal(t, v.Interface(), got.Interface())
	}

	// Drivers may hand back integral reals and byte slices.
	got, err := Decode(TypeInt, float64(4), "")
	require.NoError(t, err)
	assert.Equal(t, Int(4), got)
	got, err = Decode(TypeText, []byte("b"), TypeText)
	require.NoError(t, err)
	assert.Equal(t, Text("b"), got)

	_, err = Decode(TypeInt, int64(4), TypeText)
	assert.True(t, IsTypeMismatch(err))
	_, err = Decode(TypeJSON, "{bad", "")
	assert.True(t, IsTypeMismatch(err))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(Int(1), nil))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.True(t, Equal(JSON(`{"a":1}`), JSON(`{"a":1}`)))
	assert.False(t, Equal(JSON(`{"a":1}`), JSON(`{"a":2}`)))
}
