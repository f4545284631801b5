// Package util holds small generic containers shared by the engine
package util

import "slices"

// Stack is a LIFO of pending work. Its zero value is empty and ready to use.
type Stack[A any] struct {
	items []A
}

var _ Copyable[*Stack[int]] = (*Stack[int])(nil)

// Push adds vs so that the last of them is popped first
func (s *Stack[A]) Push(vs ...A) {
	s.items = append(s.items, vs...)
}

func (s *Stack[A]) Pop() (ret A, ok bool) {
	last := len(s.items) - 1
	if last < 0 {
		return ret, false
	}
	ret = s.items[last]
	var zero A
	s.items[last] = zero
	s.items = s.items[:last]
	return ret, true
}

func (s *Stack[A]) Len() int {
	return len(s.items)
}

// Copy returns a stack with the same items that can be popped independently
func (s *Stack[A]) Copy() *Stack[A] {
	return &Stack[A]{items: slices.Clone(s.items)}
}
