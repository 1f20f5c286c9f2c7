package ir

import (
	"errors"
	"fmt"
	"sort"
)

// ValidateTable checks the internal consistency of a populated Table: the root scope
// exists, every other scope has a parent with a smaller identifier, symbol types are
// declared, parameter ordinals of method scopes are contiguous from zero and struct
// types point at struct scopes.
func ValidateTable(t *Table) error {
	scopes := t.Scopes()
	if len(scopes) == 0 || scopes[0].ID != RootScope {
		return fmt.Errorf("missing root scope %d", RootScope)
	}
	if scopes[0].Parent != -1 {
		return fmt.Errorf("root scope must not have a parent, got %d", scopes[0].Parent)
	}

	for _, e1 := range scopes[1:] {
		if e1.Parent < 0 || e1.Parent >= e1.ID {
			return fmt.Errorf("scope %s: parent %d must be declared before it", e1.Label(), e1.Parent)
		}
		if _, err := t.Scope(e1.Parent); err != nil {
			return fmt.Errorf("scope %s: %s", e1.Label(), err)
		}
		if err := validateSymbols(t, e1); err != nil {
			return err
		}
	}
	if err := validateSymbols(t, scopes[0]); err != nil {
		return err
	}

	for _, e1 := range t.Types() {
		if e1.Size < 0 {
			return fmt.Errorf("type %q: negative size %d", e1.Name, e1.Size)
		}
		if e1.Fields < 0 {
			continue
		}
		s, err := t.Scope(e1.Fields)
		if err != nil {
			return fmt.Errorf("type %q: %s", e1.Name, err)
		}
		if s.Kind != ScopeStruct {
			return fmt.Errorf("type %q: field table %s is a %s scope", e1.Name, s.Label(), s.Kind)
		}
	}
	return nil
}

// validateSymbols checks the symbols declared in scope s.
func validateSymbols(t *Table, s *Scope) error {
	seen := make(map[string]bool, len(s.Symbols))
	params := make([]int, 0, len(s.Symbols))
	for _, e1 := range s.Symbols {
		if seen[e1.Name] {
			return fmt.Errorf("scope %s: duplicate declaration of %q", s.Label(), e1.Name)
		}
		seen[e1.Name] = true
		if e1.Offset < 0 || e1.Len < 0 {
			return fmt.Errorf("scope %s: symbol %q has negative offset or length", s.Label(), e1.Name)
		}
		if _, err := t.TypeSize(e1.Typ); err != nil {
			return fmt.Errorf("scope %s: symbol %q: %s", s.Label(), e1.Name, err)
		}
		if e1.Param >= 0 {
			if s.Kind != ScopeMethod {
				return fmt.Errorf("scope %s: parameter %q declared outside a method scope", s.Label(), e1.Name)
			}
			params = append(params, e1.Param)
		}
	}
	sort.Ints(params)
	for i1, e1 := range params {
		if i1 != e1 {
			return fmt.Errorf("scope %s: parameter ordinals must be 0..%d, got %v", s.Label(), len(params)-1, params)
		}
	}
	return nil
}

// ValidateProgram checks that the scope numbering of t matches the order in which the
// scope opening nodes of p are visited: the n'th scope opened by p must be scope n of
// t, with matching kind and, for named scopes, matching name. Class scopes must be
// children of the root scope.
func ValidateProgram(p *Program, t SymbolTable) error {
	if p == nil {
		return errors.New("program is <nil>")
	}
	id := RootScope
	var err error
	Walk(p, func(n Node) bool {
		if err != nil {
			return false
		}
		var kinds []ScopeKind
		var name string
		switch n := n.(type) {
		case *ClassDecl:
			kinds, name = []ScopeKind{ScopeClass}, n.Name
		case *MethodDecl:
			kinds, name = []ScopeKind{ScopeMethod}, n.Name
		case *StructDecl:
			kinds, name = []ScopeKind{ScopeStruct}, n.Name
		case *IfStmt, *WhileStmt:
			// Conditionals and loops are numbered together with their nested scopes.
			kinds = ScopeKinds(n)
		default:
			return true
		}
		for i1, e1 := range kinds {
			id++
			var s *Scope
			if s, err = t.Scope(id); err != nil {
				line, pos := n.Position()
				err = fmt.Errorf("line %d:%d: %s opens scope %d: %w", line, pos, n.Type(), id, err)
				return false
			}
			if s.Kind != e1 {
				line, pos := n.Position()
				err = fmt.Errorf("line %d:%d: scope %d is a %s scope, expected %s", line, pos, id, s.Kind, e1)
				return false
			}
			if i1 == 0 && len(name) > 0 && s.Name != name {
				line, pos := n.Position()
				err = fmt.Errorf("line %d:%d: scope %d is named %q, expected %q", line, pos, id, s.Name, name)
				return false
			}
			if e1 == ScopeClass && s.Parent != RootScope {
				err = fmt.Errorf("class scope %s must be a child of the root scope", s.Label())
				return false
			}
		}
		_, isBranch := n.(*IfStmt)
		_, isLoop := n.(*WhileStmt)
		return !isBranch && !isLoop
	})
	return err
}
