package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeeded_Deterministic(t *testing.T) {
	a := NewSeeded(1, 2)
	b := NewSeeded(1, 2)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.IntN(100), b.IntN(100))
	}
}

func TestBetween(t *testing.T) {
	src := NewSeeded(7, 7)
	for i := 0; i < 200; i++ {
		v := Between(src, 1, 5)
		assert.GreaterOrEqual(t, v, 1)
		assert.LessOrEqual(t, v, 5)
	}
	assert.Equal(t, 3, Between(src, 3, 3))
	assert.Equal(t, 4, Between(src, 4, 2))
}

func TestFixed(t *testing.T) {
	assert.Equal(t, 2, Fixed(2).IntN(5))
	assert.Equal(t, 4, Fixed(9).IntN(5))
	assert.Equal(t, 0, Fixed(-1).IntN(5))
}

func TestGlobal(t *testing.T) {
	for i := 0; i < 100; i++ {
		v := Global{}.IntN(3)
		assert.True(t, v >= 0 && v < 3)
	}
}
