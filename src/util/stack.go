// stack.go provides a slice backed stack that holds arbitrary data.
// The bottom element is the first entry into the stack, while the top is
// the last entry to be added to the stack.

package util

import "sync"

// Stack is a stack of elements of type T, safe for use by multiple goroutines.
type Stack[T any] struct {
	e  []T        // Entries, bottom first.
	mx sync.Mutex // For synchronising multiple worker threads to one stack.
}

// Push adds a new element to the top of the stack.
func (s *Stack[T]) Push(e T) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.e = append(s.e, e)
}

// Pop removes and returns the last inserted element on the stack.
// ok is false if the stack is empty.
func (s *Stack[T]) Pop() (e T, ok bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.e) == 0 {
		return e, false
	}
	e = s.e[len(s.e)-1]
	s.e = s.e[:len(s.e)-1]
	return e, true
}

// Peek works just like Pop, but it does not remove the element from the stack.
func (s *Stack[T]) Peek() (e T, ok bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if len(s.e) == 0 {
		return e, false
	}
	return s.e[len(s.e)-1], true
}

// Size returns the number of elements in the stack.
func (s *Stack[T]) Size() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.e)
}

// Get returns the nth element from the stack, top down, not zero indexed.
// Get(1) returns the first element on stack, and is similar to Peek.
// Get(Stack.Size()) returns the bottom element. ok is false if n is out of range.
func (s *Stack[T]) Get(n int) (e T, ok bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if n < 1 || n > len(s.e) {
		return e, false
	}
	return s.e[len(s.e)-n], true
}
