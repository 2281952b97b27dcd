package ast

import (
	"strconv"
	"strings"
)

// Kind discriminates the expression variants produced by the parser.
type Kind string

const (
	KindIntegerLiteral Kind = "IntegerLiteral"
	KindFloatLiteral   Kind = "FloatLiteral"
	KindSymbol         Kind = "Symbol"
	KindCombination    Kind = "Combination"
)

// Reserved words. The tokenizer flushes them as standalone tokens; the
// evaluator special-cases them only in operator position.
const (
	KeywordAssign   = ":="
	KeywordFunction = "function"
)

// Expr is the shared behaviour for all parsed expressions. Expressions are
// immutable once constructed.
type Expr interface {
	Kind() Kind
	String() string
	isExpr()
}

// IntegerLiteral is a base-10 integer atom.
type IntegerLiteral struct {
	Value int64
}

func NewIntegerLiteral(value int64) *IntegerLiteral {
	return &IntegerLiteral{Value: value}
}

func (*IntegerLiteral) Kind() Kind { return KindIntegerLiteral }
func (*IntegerLiteral) isExpr()    {}

func (e *IntegerLiteral) String() string {
	return strconv.FormatInt(e.Value, 10)
}

// FloatLiteral is a floating-point atom.
type FloatLiteral struct {
	Value float64
}

func NewFloatLiteral(value float64) *FloatLiteral {
	return &FloatLiteral{Value: value}
}

func (*FloatLiteral) Kind() Kind { return KindFloatLiteral }
func (*FloatLiteral) isExpr()    {}

func (e *FloatLiteral) String() string {
	return strconv.FormatFloat(e.Value, 'g', -1, 64)
}

// Symbol is a bare name, including operator names and the reserved words.
type Symbol struct {
	Name string
}

func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name}
}

func (*Symbol) Kind() Kind { return KindSymbol }
func (*Symbol) isExpr()    {}

func (e *Symbol) String() string {
	return e.Name
}

// Combination is an ordered, possibly empty, parenthesized expression list.
type Combination struct {
	Elements []Expr
}

func NewCombination(elements []Expr) *Combination {
	return &Combination{Elements: elements}
}

func (*Combination) Kind() Kind { return KindCombination }
func (*Combination) isExpr()    {}

func (e *Combination) String() string {
	parts := make([]string, 0, len(e.Elements))
	for _, element := range e.Elements {
		parts = append(parts, element.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}
