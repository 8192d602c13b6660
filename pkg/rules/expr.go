package rules

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// Expr is a node of a rule expression tree. The set of variants is closed:
// Literal, VarRef, Operator, SettlementOp, StructureOp and List.
type Expr interface {
	expr()
}

// Literal is a constant value (number, string, bool).
type Literal struct {
	Value any
}

// VarRef is a {"var": path} or {"var": [path, default]} lookup. Path is empty
// when the reference is not a string.
type VarRef struct {
	Path    string
	Default Expr
}

// Operator is a generic combinator such as "and", ">", "if" or "+".
type Operator struct {
	Name string
	Args []Expr
}

// SettlementOp is a "settlement.<accessor>" custom operator.
type SettlementOp struct {
	Accessor string
	Args     []Expr
}

// StructureOp is a "structure.<accessor>" custom operator.
type StructureOp struct {
	Accessor string
	Args     []Expr
}

// List is a bare JSON array appearing where an expression is expected.
type List struct {
	Items []Expr
}

func (Literal) expr()      {}
func (VarRef) expr()       {}
func (Operator) expr()     {}
func (SettlementOp) expr() {}
func (StructureOp) expr()  {}
func (List) expr()         {}

// Accessors understood on the custom settlement and structure operators.
const (
	AccessorLevel            = "level"
	AccessorVar              = "var"
	AccessorType             = "type"
	AccessorHasStructureType = "hasStructureType"
	AccessorStructureCount   = "structureCount"
	AccessorInKingdom        = "inKingdom"
	AccessorAtLocation       = "atLocation"
	AccessorIsOperational    = "isOperational"
	AccessorInSettlement     = "inSettlement"
)

const (
	settlementPrefix = "settlement."
	structurePrefix  = "structure."
)

// Parse decodes a stored JSON rule expression. Empty input, "null" and
// invalid JSON all yield nil, which references nothing.
func Parse(raw []byte) Expr {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	return FromResult(gjson.ParseBytes(raw))
}

// FromResult converts an already parsed gjson value into an expression.
func FromResult(r gjson.Result) Expr {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return nil
	case r.IsArray():
		return List{Items: arguments(r)}
	case r.IsObject():
		ops := make([]Expr, 0, 1)
		r.ForEach(func(key, value gjson.Result) bool {
			ops = append(ops, operator(key.String(), value))
			return true
		})
		switch len(ops) {
		case 0:
			return nil
		case 1:
			return ops[0]
		}
		return List{Items: ops}
	default:
		return Literal{Value: r.Value()}
	}
}

func operator(name string, value gjson.Result) Expr {
	if name == "var" {
		return varRef(value)
	}
	if accessor, ok := strings.CutPrefix(name, settlementPrefix); ok {
		return SettlementOp{Accessor: accessor, Args: arguments(value)}
	}
	if accessor, ok := strings.CutPrefix(name, structurePrefix); ok {
		return StructureOp{Accessor: accessor, Args: arguments(value)}
	}
	return Operator{Name: name, Args: arguments(value)}
}

func varRef(value gjson.Result) VarRef {
	ref := VarRef{}
	target := value
	if value.IsArray() {
		items := value.Array()
		if len(items) == 0 {
			return ref
		}
		target = items[0]
		if len(items) > 1 {
			ref.Default = FromResult(items[1])
		}
	}
	if target.Type == gjson.String {
		ref.Path = target.String()
	}
	return ref
}

// arguments accepts both the array form {"op": [a, b]} and the shorthand
// {"op": a}. Null arguments are dropped.
func arguments(value gjson.Result) []Expr {
	if !value.IsArray() {
		if e := FromResult(value); e != nil {
			return []Expr{e}
		}
		return nil
	}
	args := make([]Expr, 0)
	value.ForEach(func(_, item gjson.Result) bool {
		if e := FromResult(item); e != nil {
			args = append(args, e)
		}
		return true
	})
	return args
}

// Walk visits expr depth-first. Children are skipped when fn returns false.
func Walk(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	var children []Expr
	switch e := expr.(type) {
	case List:
		children = e.Items
	case Operator:
		children = e.Args
	case SettlementOp:
		children = e.Args
	case StructureOp:
		children = e.Args
	case VarRef:
		if e.Default != nil {
			children = []Expr{e.Default}
		}
	}
	for _, child := range children {
		Walk(child, fn)
	}
}

// StringArg returns the i-th argument when it is a non-empty string literal.
func StringArg(args []Expr, i int) (string, bool) {
	if i < 0 || i >= len(args) {
		return "", false
	}
	lit, ok := args[i].(Literal)
	if !ok {
		return "", false
	}
	s, ok := lit.Value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// BaseSegment returns the first segment of a dot or bracket accessor path:
// "items.0.name" and "items[0]" both yield "items".
func BaseSegment(path string) string {
	path = strings.TrimSpace(path)
	if i := strings.IndexAny(path, ".["); i >= 0 {
		path = path[:i]
	}
	return path
}
