package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_SortsObjectKeys(t *testing.T) {
	b, err := Marshal(map[string]any{
		"zebra": "z",
		"alpha": "a",
		"mango": "m",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"a","mango":"m","zebra":"z"}`, string(b))
}

func TestMarshal_NestedStructures(t *testing.T) {
	b, err := Marshal(map[string]any{
		"files": map[string]any{
			"b.txt": map[string]any{"hash": "bb", "exec": false},
			"a.txt": map[string]any{"hash": "aa", "exec": true},
		},
		"count": 2,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"count":2,"files":{"a.txt":{"exec":true,"hash":"aa"},"b.txt":{"exec":false,"hash":"bb"}}}`,
		string(b))
}

func TestMarshal_Deterministic(t *testing.T) {
	v := map[string]any{
		"inputs":   []any{"a", "b", "c"},
		"platform": "x86_64-linux",
		"flag":     true,
	}
	first, err := Marshal(v)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Marshal(v)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshal_NoHTMLEscaping(t *testing.T) {
	b, err := Marshal("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(b))
}

func TestMarshal_NFCNormalization(t *testing.T) {
	// "é" precomposed vs "e" + combining acute must serialize identically.
	precomposed := "café"
	decomposed := "café"

	b1, err := Marshal(precomposed)
	require.NoError(t, err)
	b2, err := Marshal(decomposed)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestMarshal_RejectsFloats(t *testing.T) {
	_, err := Marshal(1.5)
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": 1.5})
	assert.Error(t, err)
}

func TestMarshal_RejectsNull(t *testing.T) {
	_, err := Marshal(nil)
	assert.Error(t, err)

	_, err = Marshal(map[string]any{"x": nil})
	assert.Error(t, err)
}

func TestMarshal_StringMapAndSlice(t *testing.T) {
	b, err := Marshal(map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"v"}`, string(b))

	b, err = Marshal([]string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, string(b))
}

func TestHash_DomainSeparation(t *testing.T) {
	v := map[string]any{"name": "src"}
	rev, err := Hash(DomainRevision, v)
	require.NoError(t, err)
	key, err := Hash(DomainBuildKey, v)
	require.NoError(t, err)

	assert.NotEqual(t, rev, key, "same value under different domains must hash differently")
}

func TestHash_Format(t *testing.T) {
	h := MustHash(DomainRevision, "x")
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, h)
}

func TestHash_Stable(t *testing.T) {
	v := map[string]any{"a": 1, "b": []any{"x"}}
	assert.Equal(t, MustHash(DomainClosure, v), MustHash(DomainClosure, v))
}
