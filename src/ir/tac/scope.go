package tac

import (
	"fmt"

	"decafc/src/ir"
	"decafc/src/util"
)

// ScopeStack tracks the current scope while the generator walks the tree. Scope
// identifiers are handed out in visit order from a counter; popping moves to the
// parent recorded in the symbol table.
type ScopeStack struct {
	table   ir.SymbolTable
	count   int // Identifier of the last scope pushed.
	current int // Identifier of the current scope.
	depth   int // Number of pushes not yet popped.
}

// NewScopeStack returns a ScopeStack positioned at the root scope. The next push
// enters scope start+1.
func NewScopeStack(table ir.SymbolTable, start int) *ScopeStack {
	return &ScopeStack{
		table:   table,
		count:   start,
		current: ir.RootScope,
	}
}

// Push enters the next scope in visit order and returns it. The entered scope must
// be a child of the current scope.
func (s *ScopeStack) Push() (*ir.Scope, error) {
	id := s.count + 1
	sc, err := s.table.Scope(id)
	if err != nil {
		return nil, undeclared(fmt.Sprintf("scope %d", id), s.label(), err)
	}
	if sc.Parent != s.current {
		return nil, malformed("scope %s has parent %d, expected %d", sc.Label(), sc.Parent, s.current)
	}
	s.count = id
	s.current = id
	s.depth++
	util.Trace("push scope", "scope", sc.Label(), "depth", s.depth)
	return sc, nil
}

// Pop leaves the current scope and returns the enclosing one.
func (s *ScopeStack) Pop() (*ir.Scope, error) {
	if s.depth == 0 {
		return nil, malformed("pop of the root scope")
	}
	sc, err := s.table.Scope(s.current)
	if err != nil {
		return nil, undeclared(fmt.Sprintf("scope %d", s.current), s.label(), err)
	}
	parent, err := s.table.Scope(sc.Parent)
	if err != nil {
		return nil, undeclared(fmt.Sprintf("scope %d", sc.Parent), sc.Label(), err)
	}
	s.current = parent.ID
	s.depth--
	util.Trace("pop scope", "scope", sc.Label(), "depth", s.depth)
	return parent, nil
}

// Current returns the current scope.
func (s *ScopeStack) Current() (*ir.Scope, error) {
	return s.table.Scope(s.current)
}

// CurrentID returns the identifier of the current scope.
func (s *ScopeStack) CurrentID() int {
	return s.current
}

// Count returns the identifier of the last scope pushed.
func (s *ScopeStack) Count() int {
	return s.count
}

// Depth returns the number of pushes not yet popped.
func (s *ScopeStack) Depth() int {
	return s.depth
}

// label returns the frame name of the current scope for diagnostics.
func (s *ScopeStack) label() string {
	if sc, err := s.table.Scope(s.current); err == nil {
		return sc.Label()
	}
	return fmt.Sprintf("%d", s.current)
}
