package ir

import (
	"fmt"
	"strings"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// NodeType differentiates the kinds of nodes in the typed syntax tree.
type NodeType int

// Node is implemented by every syntax tree node kind. The set of kinds is closed:
// only types of this package implement Node.
type Node interface {
	Type() NodeType       // Kind of node.
	Position() (int, int) // Line and position in source code the node was declared.
	sealed()
}

// Stmt is a Node that may appear in a Block.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is a Node that produces a value.
type Expr interface {
	Node
	exprNode()
}

// Pos is embedded by every node and records its source position.
type Pos struct {
	Line int // Line in source code Node is declared.
	Col  int // Position on the line in source code Node is declared.
}

// Program is the root of the syntax tree.
type Program struct {
	Pos
	Classes []*ClassDecl
}

// ClassDecl declares a class. Members are *MethodDecl, *StructDecl and *VarDecl nodes.
type ClassDecl struct {
	Pos
	Name    string
	Members []Node
}

// MethodDecl declares a method. Parameters are symbols of the method scope.
type MethodDecl struct {
	Pos
	Name string
	Body *Block
}

// StructDecl declares a struct type. Fields are symbols of the struct scope.
type StructDecl struct {
	Pos
	Name   string
	Fields []*VarDecl
}

// VarDecl declares a variable. Storage is described by the symbol table, so it generates no code.
type VarDecl struct {
	Pos
	Name string
	Typ  string
}

// Block is a brace delimited statement list. A Block does not open a scope of its own.
type Block struct {
	Pos
	Stmts []Stmt
}

// IfStmt is a conditional with an optional else branch.
type IfStmt struct {
	Pos
	Cond Expr
	Then *Block
	Else *Block // <nil> if there is no else branch.
}

// WhileStmt is a pre-tested loop.
type WhileStmt struct {
	Pos
	Cond Expr
	Body *Block
}

// ReturnStmt returns from the current method.
type ReturnStmt struct {
	Pos
	Value Expr // <nil> for a bare return.
}

// AssignStmt stores the value of an expression to a location.
type AssignStmt struct {
	Pos
	Target *Location
	Value  Expr
}

// CallStmt is a method call in statement position.
type CallStmt struct {
	Pos
	Call *MethodCall
}

// LiteralKind differentiates literal values.
type LiteralKind int

// Literal is an integer, character or boolean constant.
type Literal struct {
	Pos
	Kind LiteralKind
	Text string // Source text of the literal.
}

// ParenExpr is a parenthesised expression.
type ParenExpr struct {
	Pos
	X Expr
}

// UnaryExpr is a negation '-' or logical not '!'.
type UnaryExpr struct {
	Pos
	Op string
	X  Expr
}

// BinaryExpr is an arithmetic, relational, equality or logical operation.
type BinaryExpr struct {
	Pos
	Left  Expr
	Op    string
	Right Expr
}

// Location references a variable, optionally indexed and optionally followed by a field.
type Location struct {
	Pos
	Name  string
	Index Expr      // <nil> if the location is not indexed.
	Field *Location // <nil> if the location has no field selector.
}

// MethodCall calls a method with arguments in parameter order.
type MethodCall struct {
	Pos
	Name string
	Args []Expr
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	PROGRAM NodeType = iota
	CLASS_DECLARATION
	METHOD_DECLARATION
	STRUCT_DECLARATION
	VAR_DECLARATION
	BLOCK
	IF_STATEMENT
	WHILE_STATEMENT
	RETURN_STATEMENT
	ASSIGNMENT_STATEMENT
	CALL_STATEMENT
	LITERAL
	PAREN_EXPRESSION
	UNARY_EXPRESSION
	BINARY_EXPRESSION
	LOCATION
	METHOD_CALL
)

// Literal kinds.
const (
	IntLiteral LiteralKind = iota
	CharLiteral
	BoolLiteral
)

// nt provides an array of strings used for printing NodeType in a print friendly manner.
var nt = [...]string{
	"PROGRAM",
	"CLASS_DECLARATION",
	"METHOD_DECLARATION",
	"STRUCT_DECLARATION",
	"VAR_DECLARATION",
	"BLOCK",
	"IF_STATEMENT",
	"WHILE_STATEMENT",
	"RETURN_STATEMENT",
	"ASSIGNMENT_STATEMENT",
	"CALL_STATEMENT",
	"LITERAL",
	"PAREN_EXPRESSION",
	"UNARY_EXPRESSION",
	"BINARY_EXPRESSION",
	"LOCATION",
	"METHOD_CALL",
}

// ----------------------
// ----- functions ------
// ----------------------

// String returns a print friendly string of NodeType t.
func (t NodeType) String() string {
	if t < 0 || int(t) >= len(nt) {
		return fmt.Sprintf("NodeType(%d)", int(t))
	}
	return nt[t]
}

// Position returns the line and position of the node.
func (p Pos) Position() (int, int) {
	return p.Line, p.Col
}

func (Pos) sealed() {}

func (*Program) Type() NodeType    { return PROGRAM }
func (*ClassDecl) Type() NodeType  { return CLASS_DECLARATION }
func (*MethodDecl) Type() NodeType { return METHOD_DECLARATION }
func (*StructDecl) Type() NodeType { return STRUCT_DECLARATION }
func (*VarDecl) Type() NodeType    { return VAR_DECLARATION }
func (*Block) Type() NodeType      { return BLOCK }
func (*IfStmt) Type() NodeType     { return IF_STATEMENT }
func (*WhileStmt) Type() NodeType  { return WHILE_STATEMENT }
func (*ReturnStmt) Type() NodeType { return RETURN_STATEMENT }
func (*AssignStmt) Type() NodeType { return ASSIGNMENT_STATEMENT }
func (*CallStmt) Type() NodeType   { return CALL_STATEMENT }
func (*Literal) Type() NodeType    { return LITERAL }
func (*ParenExpr) Type() NodeType  { return PAREN_EXPRESSION }
func (*UnaryExpr) Type() NodeType  { return UNARY_EXPRESSION }
func (*BinaryExpr) Type() NodeType { return BINARY_EXPRESSION }
func (*Location) Type() NodeType   { return LOCATION }
func (*MethodCall) Type() NodeType { return METHOD_CALL }

func (*VarDecl) stmtNode()    {}
func (*StructDecl) stmtNode() {}
func (*Block) stmtNode()      {}
func (*IfStmt) stmtNode()     {}
func (*WhileStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode() {}
func (*AssignStmt) stmtNode() {}
func (*CallStmt) stmtNode()   {}

func (*Literal) exprNode()    {}
func (*ParenExpr) exprNode()  {}
func (*UnaryExpr) exprNode()  {}
func (*BinaryExpr) exprNode() {}
func (*Location) exprNode()   {}
func (*MethodCall) exprNode() {}

// Value returns the operand text of the literal. Booleans are represented as 1 and 0.
func (l *Literal) Value() string {
	if l.Kind == BoolLiteral {
		switch l.Text {
		case "true":
			return "1"
		case "false":
			return "0"
		}
	}
	return l.Text
}

// String returns the source form of the location, e.g. a[i].b.
func (l *Location) String() string {
	sb := strings.Builder{}
	for e1 := l; e1 != nil; e1 = e1.Field {
		if e1 != l {
			sb.WriteRune('.')
		}
		sb.WriteString(e1.Name)
		if e1.Index != nil {
			sb.WriteString("[...]")
		}
	}
	return sb.String()
}

// Walk traverses the sub-tree rooted at n in pre-order, calling fn for every node.
// Children of a node are skipped if fn returns false.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch n := n.(type) {
	case *Program:
		for _, e1 := range n.Classes {
			Walk(e1, fn)
		}
	case *ClassDecl:
		for _, e1 := range n.Members {
			Walk(e1, fn)
		}
	case *MethodDecl:
		if n.Body != nil {
			Walk(n.Body, fn)
		}
	case *StructDecl:
		for _, e1 := range n.Fields {
			Walk(e1, fn)
		}
	case *Block:
		for _, e1 := range n.Stmts {
			Walk(e1, fn)
		}
	case *IfStmt:
		Walk(n.Cond, fn)
		if n.Then != nil {
			Walk(n.Then, fn)
		}
		if n.Else != nil {
			Walk(n.Else, fn)
		}
	case *WhileStmt:
		Walk(n.Cond, fn)
		if n.Body != nil {
			Walk(n.Body, fn)
		}
	case *ReturnStmt:
		if n.Value != nil {
			Walk(n.Value, fn)
		}
	case *AssignStmt:
		Walk(n.Target, fn)
		Walk(n.Value, fn)
	case *CallStmt:
		Walk(n.Call, fn)
	case *ParenExpr:
		Walk(n.X, fn)
	case *UnaryExpr:
		Walk(n.X, fn)
	case *BinaryExpr:
		Walk(n.Left, fn)
		Walk(n.Right, fn)
	case *Location:
		if n.Index != nil {
			Walk(n.Index, fn)
		}
		if n.Field != nil {
			Walk(n.Field, fn)
		}
	case *MethodCall:
		for _, e1 := range n.Args {
			Walk(e1, fn)
		}
	}
}

// ScopeKinds returns the kinds of the scopes opened by the sub-tree rooted at n, in
// the order a generator pushes them. An if statement with an else branch opens two scopes.
func ScopeKinds(n Node) []ScopeKind {
	res := make([]ScopeKind, 0, 8)
	Walk(n, func(n Node) bool {
		switch n := n.(type) {
		case *ClassDecl:
			res = append(res, ScopeClass)
		case *MethodDecl:
			res = append(res, ScopeMethod)
		case *StructDecl:
			res = append(res, ScopeStruct)
		case *WhileStmt:
			res = append(res, ScopeWhile)
		case *IfStmt:
			// The else scope is opened after the then block, so walk manually.
			res = append(res, ScopeIf)
			res = append(res, ScopeKinds(n.Cond)...)
			if n.Then != nil {
				res = append(res, ScopeKinds(n.Then)...)
			}
			if n.Else != nil {
				res = append(res, ScopeElse)
				res = append(res, ScopeKinds(n.Else)...)
			}
			return false
		}
		return true
	})
	return res
}
