package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalSortsKeys(t *testing.T) {
	data, err := MarshalCanonical(Attrs{"zeta": "z", "alpha": "a", "mid": "m"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mid":"m","zeta":"z"}`, string(data))
}

func TestMarshalCanonicalEmptyAndNil(t *testing.T) {
	data, err := MarshalCanonical(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	data, err = MarshalCanonical(Attrs{})
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestMarshalCanonicalNormalizesUnicode(t *testing.T) {
	// "é" as a precomposed rune versus "e" plus a combining accent must
	// encode identically.
	composed := Attrs{"name": "réponse"}
	decomposed := Attrs{"name": "réponse"}

	a, err := MarshalCanonical(composed)
	require.NoError(t, err)
	b, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(Attrs{"name": "a <b> & c"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"a <b> & c"}`, string(data))
}

func TestMarshalCanonicalNumbers(t *testing.T) {
	data, err := MarshalCanonical(Attrs{"order": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"order":3}`, string(data))

	// json.Number values pass through untouched.
	data, err = MarshalCanonical(Attrs{"order": json.Number("7")})
	require.NoError(t, err)
	assert.Equal(t, `{"order":7}`, string(data))

	// Integral floats normalize to integers; fractional values are rejected.
	data, err = MarshalCanonical(Attrs{"order": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, `{"order":5}`, string(data))

	_, err = MarshalCanonical(Attrs{"order": 1.5})
	require.Error(t, err)
}

func TestMarshalCanonicalArrays(t *testing.T) {
	data, err := MarshalCanonical(Attrs{"tags": []string{"b", "a"}})
	require.NoError(t, err)
	// Array order is caller-meaningful and preserved.
	assert.Equal(t, `{"tags":["b","a"]}`, string(data))
}

func TestAttrsEqual(t *testing.T) {
	equal, err := AttrsEqual(
		Attrs{"a": "1", "b": "2"},
		Attrs{"b": "2", "a": "1"},
	)
	require.NoError(t, err)
	assert.True(t, equal)

	equal, err = AttrsEqual(Attrs{"a": "1"}, Attrs{"a": "2"})
	require.NoError(t, err)
	assert.False(t, equal)

	// An int and its json.Number round-trip form are canonically equal.
	equal, err = AttrsEqual(Attrs{"n": 3}, Attrs{"n": json.Number("3")})
	require.NoError(t, err)
	assert.True(t, equal)
}

func TestUnmarshalAttrsRoundTrip(t *testing.T) {
	original := Attrs{"name": "triage", "effort_points": 3, "tags": []string{"x"}}
	data, err := MarshalCanonical(original)
	require.NoError(t, err)

	decoded, err := UnmarshalAttrs(data)
	require.NoError(t, err)

	equal, err := AttrsEqual(original, decoded)
	require.NoError(t, err)
	assert.True(t, equal)

	// Numbers come back as json.Number, never float64.
	assert.IsType(t, json.Number(""), decoded["effort_points"])
}

func TestAttrsClone(t *testing.T) {
	original := Attrs{"name": "a"}
	clone := original.Clone()
	clone["name"] = "b"
	assert.Equal(t, "a", original["name"])

	assert.Nil(t, Attrs(nil).Clone())
}
