package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortedKeys(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"zebra": 1,
		"alpha": 2,
		"mid":   3,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zebra":1}`, string(got))
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	m := map[string]any{"b": int64(2), "a": "x", "c": []any{1, "two", true}}
	first, err := MarshalCanonical(m)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(m)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{"s": "<&>"})
	require.NoError(t, err)
	assert.Equal(t, `{"s":"<&>"}`, string(got))
}

func TestMarshalCanonical_ControlCharsEscaped(t *testing.T) {
	got, err := MarshalCanonical("line\nbreak\ttab\x01")
	require.NoError(t, err)
	assert.Equal(t, `"line\nbreak\ttab\u0001"`, string(got))
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// e + combining acute normalizes to the precomposed form.
	decomposed := "é"
	got, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	assert.Equal(t, "\"é\"", string(got))
}

func TestMarshalCanonical_Rejections(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err, "null forbidden")

	_, err = MarshalCanonical(3.14)
	assert.Error(t, err, "floats forbidden")

	_, err = MarshalCanonical(map[string]any{"k": struct{}{}})
	assert.Error(t, err)
}

func TestMarshalCanonical_Ints(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"a": int(1), "b": int64(-2), "c": uint32(3), "d": uint64(4),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":-2,"c":3,"d":4}`, string(got))
}
