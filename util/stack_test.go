package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStack(t *testing.T) {
	s := &Stack[int]{}
	_, ok := s.Pop()
	assert.False(t, ok)

	s.Push(1, 2)
	s.Push(3)
	fork := s.Copy()

	for _, want := range []int{3, 2, 1} {
		got, ok := s.Pop()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	assert.Zero(t, s.Len())
	assert.Equal(t, 3, fork.Len())
}
