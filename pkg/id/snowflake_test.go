package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDsAreOrderedAndUnique(t *testing.T) {
	seen := make(map[int64]bool)
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		v := New()
		assert.False(t, seen[v])
		assert.Greater(t, v, prev)
		seen[v] = true
		prev = v
	}
}

func TestLocalPrefix(t *testing.T) {
	a, b := Local(), Local()
	assert.True(t, strings.HasPrefix(a, "local-"))
	assert.NotEqual(t, a, b)
}
