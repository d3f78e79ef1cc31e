package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"int64", int64(9223372036854775807), "9223372036854775807"},
		{"negative", int64(-100), "-100"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"mixed array", []any{int64(1), "x", true}, `[1,"x",true]`},
		{"simple object", map[string]any{"a": int64(1)}, `{"a":1}`},
		{"newline and tab", "a\nb\tc", `"a\nb\tc"`},
		{"quote and backslash", `q"b\`, `"q\"b\\"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": int64(1),
		"alpha": int64(2),
		"beta":  int64(3),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))

	// Code-unit order, not numeric or locale order: "10" sorts before
	// "9", and the empty key sorts first.
	obj = map[string]any{"9": int64(1), "10": int64(2), "": int64(3)}
	result, err = MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"":3,"10":2,"9":1}`, string(result))
}

func TestMarshalCanonicalNestedObjects(t *testing.T) {
	obj := map[string]any{
		"b": []any{int64(1), "x", true},
		"a": int64(-5),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":-5,"b":[1,"x",true]}`, string(result))
}

func TestMarshalCanonicalUTF16Ordering(t *testing.T) {
	// U+10000 encodes to the surrogate pair D800 DC00, which sorts
	// before U+E000 in UTF-16 even though its UTF-8 bytes sort after.
	obj := map[string]any{
		"":     int64(1),
		"\U00010000": int64(2),
	}

	result, err := MarshalCanonical(obj)
	require.NoError(t, err)

	expected := `{"` + "\U00010000" + `":2,"` + "" + `":1}`
	assert.Equal(t, expected, string(result))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed, err := MarshalCanonical("café")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("café")
	require.NoError(t, err)

	assert.Equal(t, string(composed), string(decomposed))
	assert.Equal(t, `"caf`+"é"+`"`, string(composed))
}

func TestMarshalCanonicalNoHTMLEscaping(t *testing.T) {
	result, err := MarshalCanonical("a<b>c&d")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>c&d"`, string(result))
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	// Real U+2028 and U+2029 stay literal.
	result, err := MarshalCanonical("a b c")
	require.NoError(t, err)
	assert.Equal(t, `"a`+" "+`b`+" "+`c"`, string(result))

	// A backslash followed by the text "u2028" is not a separator and
	// must stay escaped.
	result, err = MarshalCanonical(`a\u2028`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028"`, string(result))
}

func TestMarshalCanonicalRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr string
	}{
		{"null", nil, "null is forbidden"},
		{"float64", float64(1.5), "floats are forbidden"},
		{"float32", float32(1), "floats are forbidden"},
		{"uint", uint(1), "unsupported type"},
		{"struct", struct{}{}, "unsupported type"},
		{"null in object", map[string]any{"a": nil}, `value for key "a"`},
		{"float in array", []any{float64(1)}, "array[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonical(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
