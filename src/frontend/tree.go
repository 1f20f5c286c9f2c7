// tree.go decodes a compilation unit handed over by the front end: the typed syntax tree together with the
// populated type and scope tables. The unit is a YAML document; tables map directly to structs while the
// syntax tree is walked node by node so that every ir.Node records its source position.

package frontend

import (
	"errors"
	"fmt"
	"strings"

	"decafc/src/ir"

	"gopkg.in/yaml.v3"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// unit is the top level document of a compilation unit.
type unit struct {
	Types   []typeDecl  `yaml:"types"`
	Scopes  []scopeDecl `yaml:"scopes"`
	Program yaml.Node   `yaml:"program"`
}

// typeDecl declares a named type.
type typeDecl struct {
	Name   string `yaml:"name"`
	Size   int    `yaml:"size"`
	Fields *int   `yaml:"fields"` // Struct scope holding the fields, if any.
}

// scopeDecl declares a scope with its symbols.
type scopeDecl struct {
	ID      int          `yaml:"id"`
	Kind    string       `yaml:"kind"`
	Name    string       `yaml:"name"`
	Parent  int          `yaml:"parent"`
	Symbols []symbolDecl `yaml:"symbols"`
}

// symbolDecl declares a variable, field or parameter.
type symbolDecl struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Offset int    `yaml:"offset"`
	Len    int    `yaml:"len"`
	Param  *int   `yaml:"param"` // Parameter ordinal, absent for non-parameters.
}

// ---------------------
// ----- Functions -----
// ---------------------

// Decode decodes the compilation unit src into its syntax tree and symbol table.
func Decode(src string) (*ir.Program, *ir.Table, error) {
	var u unit
	if err := yaml.Unmarshal([]byte(src), &u); err != nil {
		return nil, nil, fmt.Errorf("could not decode compilation unit: %w", err)
	}
	t, err := table(u)
	if err != nil {
		return nil, nil, err
	}
	p, err := program(&u.Program)
	if err != nil {
		return nil, nil, err
	}
	return p, t, nil
}

// table builds the symbol table of u.
func table(u unit) (*ir.Table, error) {
	t := ir.NewTable()
	for _, e1 := range u.Types {
		typ := &ir.Type{Name: e1.Name, Size: e1.Size, Fields: -1}
		if e1.Fields != nil {
			typ.Fields = *e1.Fields
		}
		if err := t.AddType(typ); err != nil {
			return nil, err
		}
	}
	for _, e1 := range u.Scopes {
		kind, err := ir.ParseScopeKind(e1.Kind)
		if err != nil {
			return nil, fmt.Errorf("scope %d: %w", e1.ID, err)
		}
		s := &ir.Scope{
			ID:      e1.ID,
			Kind:    kind,
			Name:    e1.Name,
			Parent:  e1.Parent,
			Symbols: make([]*ir.Symbol, len(e1.Symbols)),
		}
		if e1.ID == ir.RootScope && e1.Parent == 0 {
			s.Parent = -1
		}
		for i2, e2 := range e1.Symbols {
			sym := &ir.Symbol{Name: e2.Name, Typ: e2.Type, Offset: e2.Offset, Len: e2.Len, Param: -1}
			if e2.Param != nil {
				sym.Param = *e2.Param
			}
			s.Symbols[i2] = sym
		}
		if err := t.AddScope(s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// pos returns the source position of n.
func pos(n *yaml.Node) ir.Pos {
	return ir.Pos{Line: n.Line, Col: n.Column}
}

// errorf returns an error prefixed with the position of n.
func errorf(n *yaml.Node, format string, args ...interface{}) error {
	return fmt.Errorf("line %d:%d: %s", n.Line, n.Column, fmt.Sprintf(format, args...))
}

// fields returns the values of mapping node n by key.
func fields(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected a mapping")
	}
	res := make(map[string]*yaml.Node, len(n.Content)/2)
	for i1 := 0; i1+1 < len(n.Content); i1 += 2 {
		res[n.Content[i1].Value] = n.Content[i1+1]
	}
	return res, nil
}

// items returns the elements of sequence node n. A missing or null node is empty.
func items(n *yaml.Node) ([]*yaml.Node, error) {
	if n == nil || n.Kind == 0 || n.ShortTag() == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, errorf(n, "expected a sequence")
	}
	return n.Content, nil
}

// name returns the value of scalar node n.
func name(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode || len(n.Value) == 0 {
		return "", errorf(n, "expected a name")
	}
	return n.Value, nil
}

// program decodes the list of classes.
func program(n *yaml.Node) (*ir.Program, error) {
	classes, err := items(n)
	if err != nil {
		return nil, err
	}
	p := &ir.Program{Pos: pos(n), Classes: make([]*ir.ClassDecl, 0, len(classes))}
	for _, e1 := range classes {
		f, err := fields(e1)
		if err != nil {
			return nil, err
		}
		v, ok := f["class"]
		if !ok {
			return nil, errorf(e1, "expected a class declaration")
		}
		c := &ir.ClassDecl{Pos: pos(e1)}
		if c.Name, err = name(v); err != nil {
			return nil, err
		}
		body, err := items(f["body"])
		if err != nil {
			return nil, err
		}
		for _, e2 := range body {
			m, err := member(e2)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", c.Name, err)
			}
			c.Members = append(c.Members, m)
		}
		p.Classes = append(p.Classes, c)
	}
	return p, nil
}

// member decodes a class member: a method, struct or variable declaration.
func member(n *yaml.Node) (ir.Node, error) {
	f, err := fields(n)
	if err != nil {
		return nil, err
	}
	if v, ok := f["method"]; ok {
		m := &ir.MethodDecl{Pos: pos(n)}
		if m.Name, err = name(v); err != nil {
			return nil, err
		}
		if m.Body, err = block(n, f["body"]); err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Name, err)
		}
		return m, nil
	}
	if _, ok := f["struct"]; ok {
		return structDecl(n, f)
	}
	if _, ok := f["var"]; ok {
		return varDecl(n, f)
	}
	return nil, errorf(n, "expected a method, struct or var declaration")
}

// structDecl decodes a struct declaration.
func structDecl(n *yaml.Node, f map[string]*yaml.Node) (*ir.StructDecl, error) {
	var err error
	s := &ir.StructDecl{Pos: pos(n)}
	if s.Name, err = name(f["struct"]); err != nil {
		return nil, err
	}
	list, err := items(f["fields"])
	if err != nil {
		return nil, err
	}
	for _, e1 := range list {
		ff, err := fields(e1)
		if err != nil {
			return nil, err
		}
		v, err := varDecl(e1, ff)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, v)
	}
	return s, nil
}

// varDecl decodes a variable declaration.
func varDecl(n *yaml.Node, f map[string]*yaml.Node) (*ir.VarDecl, error) {
	var err error
	v := &ir.VarDecl{Pos: pos(n)}
	if v.Name, err = name(f["var"]); err != nil {
		return nil, err
	}
	if t, ok := f["type"]; ok {
		v.Typ = t.Value
	}
	return v, nil
}

// block decodes the statement list n. parent positions an empty block.
func block(parent, n *yaml.Node) (*ir.Block, error) {
	list, err := items(n)
	if err != nil {
		return nil, err
	}
	b := &ir.Block{Pos: pos(parent), Stmts: make([]ir.Stmt, 0, len(list))}
	if n != nil {
		b.Pos = pos(n)
	}
	for _, e1 := range list {
		s, err := stmt(e1)
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, nil
}

// stmt decodes a statement. The statement kind is given by its leading key.
func stmt(n *yaml.Node) (ir.Stmt, error) {
	f, err := fields(n)
	if err != nil {
		return nil, err
	}
	switch {
	case f["assign"] != nil:
		target, err := expr(f["assign"])
		if err != nil {
			return nil, err
		}
		l, ok := target.(*ir.Location)
		if !ok {
			return nil, errorf(f["assign"], "cannot assign to %s", target.Type())
		}
		value, err := expr(f["value"])
		if err != nil {
			return nil, err
		}
		return &ir.AssignStmt{Pos: pos(n), Target: l, Value: value}, nil

	case f["if"] != nil:
		s := &ir.IfStmt{Pos: pos(n)}
		if s.Cond, err = expr(f["if"]); err != nil {
			return nil, err
		}
		if s.Then, err = block(n, f["then"]); err != nil {
			return nil, err
		}
		if f["else"] != nil {
			if s.Else, err = block(n, f["else"]); err != nil {
				return nil, err
			}
		}
		return s, nil

	case f["while"] != nil:
		s := &ir.WhileStmt{Pos: pos(n)}
		if s.Cond, err = expr(f["while"]); err != nil {
			return nil, err
		}
		if s.Body, err = block(n, f["do"]); err != nil {
			return nil, err
		}
		return s, nil

	case f["return"] != nil:
		s := &ir.ReturnStmt{Pos: pos(n)}
		if v := f["return"]; v.ShortTag() != "!!null" {
			if s.Value, err = expr(v); err != nil {
				return nil, err
			}
		}
		return s, nil

	case f["call"] != nil:
		c, err := methodCall(n, f)
		if err != nil {
			return nil, err
		}
		return &ir.CallStmt{Pos: pos(n), Call: c}, nil

	case f["block"] != nil:
		return block(n, f["block"])

	case f["struct"] != nil:
		return structDecl(n, f)

	case f["var"] != nil:
		return varDecl(n, f)
	}
	return nil, errorf(n, "unknown statement")
}

// methodCall decodes a call from the fields of a mapping.
func methodCall(n *yaml.Node, f map[string]*yaml.Node) (*ir.MethodCall, error) {
	var err error
	c := &ir.MethodCall{Pos: pos(n)}
	if c.Name, err = name(f["call"]); err != nil {
		return nil, err
	}
	args, err := items(f["args"])
	if err != nil {
		return nil, err
	}
	for _, e1 := range args {
		a, err := expr(e1)
		if err != nil {
			return nil, err
		}
		c.Args = append(c.Args, a)
	}
	return c, nil
}

// expr decodes an expression. Scalars are literals or bare variable names; mappings
// are keyed by the expression kind.
func expr(n *yaml.Node) (ir.Expr, error) {
	if n == nil {
		return nil, errors.New("missing expression")
	}
	if n.Kind == yaml.ScalarNode {
		return scalar(n)
	}
	f, err := fields(n)
	if err != nil {
		return nil, err
	}
	switch {
	case f["loc"] != nil:
		return location(n, f)
	case f["bin"] != nil:
		ops, err := items(f["bin"])
		if err != nil {
			return nil, err
		}
		if len(ops) != 3 {
			return nil, errorf(n, "binary expression needs [left, op, right]")
		}
		l, err := expr(ops[0])
		if err != nil {
			return nil, err
		}
		r, err := expr(ops[2])
		if err != nil {
			return nil, err
		}
		return &ir.BinaryExpr{Pos: pos(n), Left: l, Op: ops[1].Value, Right: r}, nil
	case f["un"] != nil:
		ops, err := items(f["un"])
		if err != nil {
			return nil, err
		}
		if len(ops) != 2 {
			return nil, errorf(n, "unary expression needs [op, operand]")
		}
		x, err := expr(ops[1])
		if err != nil {
			return nil, err
		}
		return &ir.UnaryExpr{Pos: pos(n), Op: ops[0].Value, X: x}, nil
	case f["paren"] != nil:
		x, err := expr(f["paren"])
		if err != nil {
			return nil, err
		}
		return &ir.ParenExpr{Pos: pos(n), X: x}, nil
	case f["call"] != nil:
		return methodCall(n, f)
	}
	return nil, errorf(n, "unknown expression")
}

// scalar decodes a literal or a bare variable name.
func scalar(n *yaml.Node) (ir.Expr, error) {
	switch n.ShortTag() {
	case "!!int":
		return &ir.Literal{Pos: pos(n), Kind: ir.IntLiteral, Text: n.Value}, nil
	case "!!bool":
		return &ir.Literal{Pos: pos(n), Kind: ir.BoolLiteral, Text: strings.ToLower(n.Value)}, nil
	case "!!str":
		if strings.HasPrefix(n.Value, "'") {
			return &ir.Literal{Pos: pos(n), Kind: ir.CharLiteral, Text: n.Value}, nil
		}
		if len(n.Value) > 0 {
			return &ir.Location{Pos: pos(n), Name: n.Value}, nil
		}
	}
	return nil, errorf(n, "unexpected scalar %q", n.Value)
}

// location decodes an optionally indexed location with an optional field chain.
func location(n *yaml.Node, f map[string]*yaml.Node) (*ir.Location, error) {
	var err error
	l := &ir.Location{Pos: pos(n)}
	if l.Name, err = name(f["loc"]); err != nil {
		return nil, err
	}
	if v := f["index"]; v != nil {
		if l.Index, err = expr(v); err != nil {
			return nil, err
		}
	}
	v := f["field"]
	if v == nil {
		return l, nil
	}
	field, err := expr(v)
	if err != nil {
		return nil, err
	}
	fl, ok := field.(*ir.Location)
	if !ok {
		return nil, errorf(v, "field selector must be a location")
	}
	l.Field = fl
	return l, nil
}
