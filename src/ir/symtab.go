package ir

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"decafc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// ScopeKind differentiates the lexical regions that own a scope.
type ScopeKind int

// Symbol refers to a declared variable, field or parameter.
type Symbol struct {
	Name   string // Name of symbol.
	Typ    string // Element type name. For arrays this is the type of one element.
	Len    int    // Number of elements for arrays, 0 for scalars.
	Offset int    // Byte offset within the owning scope's frame.
	Param  int    // Ordinal among the method's parameters, -1 if the symbol is not a parameter.
}

// Scope is a lexical region with its own frame.
type Scope struct {
	ID      int       // Identifier, assigned in generation pre-order. The root scope is 0.
	Kind    ScopeKind // Kind of region.
	Name    string    // Declared name for class, method and struct scopes.
	Parent  int       // Identifier of the enclosing scope, -1 for the root.
	Symbols []*Symbol // Declared symbols in declaration order.
}

// Type describes the storage of a named type.
type Type struct {
	Name   string // Type name.
	Size   int    // Size in bytes of one value.
	Fields int    // Scope holding the fields of struct types, -1 for other types.
}

// SymbolTable is the read-only service through which code generation consumes the
// symbol and scope tables built by the front end.
type SymbolTable interface {
	// Scope returns the scope with the given identifier.
	Scope(id int) (*Scope, error)
	// Lookup resolves name starting in scope and continuing through its ancestors.
	// It returns the symbol and the scope that declares it.
	Lookup(name string, scope int) (*Symbol, *Scope, error)
	// Method resolves the scope of the method name visible from scope.
	Method(name string, scope int) (*Scope, error)
	// Params returns the parameters of method scope in declaration order.
	Params(method int) ([]*Symbol, error)
	// TypeSize returns the size in bytes of one value of the named type.
	TypeSize(typ string) (int, error)
	// Fields returns the field table of the named struct type.
	Fields(typ string) (*Scope, error)
}

// Table is the in-memory SymbolTable implementation populated by the front end.
// A Table is safe for concurrent reads once populated.
type Table struct {
	scopes   map[int]*Scope   // Scopes by identifier.
	children map[int][]*Scope // Child scopes by parent identifier, in identifier order.
	types    map[string]*Type // Types by name.
	mx       sync.RWMutex     // Used for synchronising worker threads.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	ScopeGlobal ScopeKind = iota
	ScopeClass
	ScopeMethod
	ScopeStruct
	ScopeIf
	ScopeElse
	ScopeWhile
)

const hTabSize = 16 // It is unlikely that a compilation unit declares more than 16 types up front.

// RootScope is the identifier of the root scope.
const RootScope = 0

// -------------------
// ----- Globals -----
// -------------------

// sk defines strings for print friendly output of ScopeKind. The first letter names the frame.
var sk = [...]string{
	"global",
	"class",
	"method",
	"struct",
	"if",
	"else",
	"while",
}

// ErrNotFound is returned by Table lookups that find nothing.
var ErrNotFound = errors.New("not found")

// ----------------------
// ----- Functions ------
// ----------------------

// String returns the kind name.
func (k ScopeKind) String() string {
	if k < 0 || int(k) >= len(sk) {
		return fmt.Sprintf("ScopeKind(%d)", int(k))
	}
	return sk[k]
}

// ParseScopeKind returns the ScopeKind with name s.
func ParseScopeKind(s string) (ScopeKind, error) {
	for i1, e1 := range sk {
		if e1 == strings.ToLower(s) {
			return ScopeKind(i1), nil
		}
	}
	return 0, fmt.Errorf("unknown scope kind %q", s)
}

// Label returns the frame name of the scope, e.g. M3 for method scope 3.
func (s *Scope) Label() string {
	return util.FrameName(s.Kind.String(), s.ID)
}

// Get returns the symbol name declared directly in scope s.
func (s *Scope) Get(name string) (*Symbol, bool) {
	for _, e1 := range s.Symbols {
		if e1.Name == name {
			return e1, true
		}
	}
	return nil, false
}

// String returns a print friendly string of Scope s.
func (s *Scope) String() string {
	if len(s.Name) > 0 {
		return fmt.Sprintf("%s %s [%q] parent: %d, symbols: %d", s.Label(), s.Kind, s.Name, s.Parent, len(s.Symbols))
	}
	return fmt.Sprintf("%s %s parent: %d, symbols: %d", s.Label(), s.Kind, s.Parent, len(s.Symbols))
}

// String returns a print friendly string of Symbol s.
func (s *Symbol) String() string {
	if s.Len > 0 {
		return fmt.Sprintf("%s %s[%d] @%d", s.Name, s.Typ, s.Len, s.Offset)
	}
	return fmt.Sprintf("%s %s @%d", s.Name, s.Typ, s.Offset)
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		scopes:   make(map[int]*Scope, hTabSize),
		children: make(map[int][]*Scope, hTabSize),
		types:    make(map[string]*Type, hTabSize),
	}
}

// AddScope adds scope s to the table.
func (t *Table) AddScope(s *Scope) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if _, ok := t.scopes[s.ID]; ok {
		return fmt.Errorf("duplicate declaration of scope %d", s.ID)
	}
	t.scopes[s.ID] = s
	if s.Parent >= 0 {
		c := append(t.children[s.Parent], s)
		sort.Slice(c, func(i, j int) bool { return c[i].ID < c[j].ID })
		t.children[s.Parent] = c
	}
	return nil
}

// AddType adds type typ to the table.
func (t *Table) AddType(typ *Type) error {
	t.mx.Lock()
	defer t.mx.Unlock()
	if _, ok := t.types[typ.Name]; ok {
		return fmt.Errorf("duplicate declaration of type %q", typ.Name)
	}
	t.types[typ.Name] = typ
	return nil
}

// Scope returns the scope with identifier id.
func (t *Table) Scope(id int) (*Scope, error) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	if s, ok := t.scopes[id]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("scope %d: %w", id, ErrNotFound)
}

// Scopes returns every scope in identifier order.
func (t *Table) Scopes() []*Scope {
	t.mx.RLock()
	defer t.mx.RUnlock()
	res := make([]*Scope, 0, len(t.scopes))
	for _, v := range t.scopes {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Types returns every type in name order.
func (t *Table) Types() []*Type {
	t.mx.RLock()
	defer t.mx.RUnlock()
	res := make([]*Type, 0, len(t.types))
	for _, v := range t.types {
		res = append(res, v)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Lookup resolves name starting in scope and continuing through its ancestors.
func (t *Table) Lookup(name string, scope int) (*Symbol, *Scope, error) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	for id := scope; id >= 0; {
		s, ok := t.scopes[id]
		if !ok {
			return nil, nil, fmt.Errorf("scope %d: %w", id, ErrNotFound)
		}
		if sym, ok := s.Get(name); ok {
			return sym, s, nil
		}
		id = s.Parent
	}
	return nil, nil, fmt.Errorf("identifier %q: %w", name, ErrNotFound)
}

// Method resolves the scope of the method name visible from scope: a method scope
// declared directly inside scope or one of its ancestors.
func (t *Table) Method(name string, scope int) (*Scope, error) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	for id := scope; id >= 0; {
		s, ok := t.scopes[id]
		if !ok {
			return nil, fmt.Errorf("scope %d: %w", id, ErrNotFound)
		}
		for _, e1 := range t.children[id] {
			if e1.Kind == ScopeMethod && e1.Name == name {
				return e1, nil
			}
		}
		id = s.Parent
	}
	return nil, fmt.Errorf("method %q: %w", name, ErrNotFound)
}

// Params returns the parameters of method scope in ordinal order.
func (t *Table) Params(method int) ([]*Symbol, error) {
	s, err := t.Scope(method)
	if err != nil {
		return nil, err
	}
	if s.Kind != ScopeMethod {
		return nil, fmt.Errorf("scope %s is a %s scope, not a method scope", s.Label(), s.Kind)
	}
	res := make([]*Symbol, 0, len(s.Symbols))
	for _, e1 := range s.Symbols {
		if e1.Param >= 0 {
			res = append(res, e1)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Param < res[j].Param })
	return res, nil
}

// TypeSize returns the size in bytes of one value of type typ.
func (t *Table) TypeSize(typ string) (int, error) {
	t.mx.RLock()
	defer t.mx.RUnlock()
	if v, ok := t.types[typ]; ok {
		return v.Size, nil
	}
	return 0, fmt.Errorf("type %q: %w", typ, ErrNotFound)
}

// Fields returns the field table of struct type typ.
func (t *Table) Fields(typ string) (*Scope, error) {
	t.mx.RLock()
	v, ok := t.types[typ]
	t.mx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("type %q: %w", typ, ErrNotFound)
	}
	if v.Fields < 0 {
		return nil, fmt.Errorf("type %q is not a struct type", typ)
	}
	return t.Scope(v.Fields)
}

// FrameSize returns the number of bytes needed by the frame of scope id: the end of
// its furthest symbol.
func FrameSize(t SymbolTable, id int) (int, error) {
	s, err := t.Scope(id)
	if err != nil {
		return 0, err
	}
	size := 0
	for _, e1 := range s.Symbols {
		n, err := t.TypeSize(e1.Typ)
		if err != nil {
			return 0, fmt.Errorf("symbol %q of scope %s: %w", e1.Name, s.Label(), err)
		}
		if e1.Len > 0 {
			n *= e1.Len
		}
		if end := e1.Offset + n; end > size {
			size = end
		}
	}
	return size, nil
}
