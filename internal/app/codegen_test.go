package app

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomCodeGeneratorAlphabet(t *testing.T) {
	gen := NewCodeGenerator()
	for i := 0; i < 200; i++ {
		code, err := gen.NextCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(CodeAlphabet, c), "unexpected rune %q in %s", c, code)
		}
	}
}

func TestRandomCodeGeneratorSkipsBiasedBytes(t *testing.T) {
	// 252 and above fall outside the largest multiple of 36 and must be skipped.
	src := []byte{255, 0, 1, 252, 35, 36, 71, 253, 2, 0, 0, 0}
	gen := NewCodeGeneratorFromReader(bytes.NewReader(src))

	code, err := gen.NextCode()
	require.NoError(t, err)
	assert.Equal(t, "AB9A9C", code)
}

func TestRandomCodeGeneratorReadError(t *testing.T) {
	gen := NewCodeGeneratorFromReader(bytes.NewReader([]byte{1, 2}))
	_, err := gen.NextCode()
	assert.Error(t, err)
}
