package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tk, err := New()
	require.NoError(t, err)
	return tk
}

func TestCountEmpty(t *testing.T) {
	assert.Equal(t, 0, newTokenizer(t).Count(""))
}

func TestCountDeterministic(t *testing.T) {
	tk := newTokenizer(t)
	text := "The quick brown fox jumps over the lazy dog."
	first := tk.Count(text)
	assert.Greater(t, first, 0)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, tk.Count(text))
	}
}

func TestCountMonotonicUnderConcatenation(t *testing.T) {
	tk := newTokenizer(t)
	pairs := [][2]string{
		{"hello", " world"},
		{"alpha beta gamma", "\n\ndelta epsilon"},
		{"12345", "67890"},
		{"a", "b"},
		{"The report covers Q3.", " Revenue grew by 12%."},
	}
	for _, p := range pairs {
		assert.GreaterOrEqual(t, tk.Count(p[0]+p[1]), tk.Count(p[0]), "%q + %q", p[0], p[1])
	}
}

func TestOffsetsCoverText(t *testing.T) {
	tk := newTokenizer(t)
	for _, text := range []string{
		"plain ascii sentence with several words",
		"unicode: naïve café, 東京, emoji 🚀 done",
		strings.Repeat("x", 300),
	} {
		offsets := tk.Offsets(text)
		require.Len(t, offsets, tk.Count(text)+1)
		assert.Equal(t, 0, offsets[0])
		assert.Equal(t, len(text), offsets[len(offsets)-1])
		for i := 1; i < len(offsets); i++ {
			assert.Greater(t, offsets[i], offsets[i-1])
		}
	}
}

func TestOffsetsEmpty(t *testing.T) {
	assert.Equal(t, []int{0}, newTokenizer(t).Offsets(""))
}
