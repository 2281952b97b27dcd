package runtime

import (
	"fmt"

	"github.com/ecodercc5/carlae/pkg/ast"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindInteger Kind = iota
	KindFloat
	KindEmptyList
	KindClosure
	KindNativeFunction
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindEmptyList:
		return "empty_list"
	case KindClosure:
		return "closure"
	case KindNativeFunction:
		return "native_function"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values.
type Value interface {
	Kind() Kind
}

//-----------------------------------------------------------------------------
// Scalars
//-----------------------------------------------------------------------------

type IntegerValue struct {
	Val int64
}

func (v IntegerValue) Kind() Kind { return KindInteger }

type FloatValue struct {
	Val float64
}

func (v FloatValue) Kind() Kind { return KindFloat }

// EmptyListValue is what an empty combination evaluates to.
type EmptyListValue struct{}

func (EmptyListValue) Kind() Kind { return KindEmptyList }

//-----------------------------------------------------------------------------
// Callables
//-----------------------------------------------------------------------------

// ClosureValue pairs parameter names and a body expression with the
// environment that was current when the closure was created. The environment
// is captured by reference, so definitions added to it later are visible
// through the closure.
type ClosureValue struct {
	Params []string
	Body   ast.Expr
	Env    *Environment
}

func (v *ClosureValue) Kind() Kind { return KindClosure }

type NativeFunc func(args []Value) (Value, error)

type NativeFunctionValue struct {
	Name string
	Impl NativeFunc
}

func (v NativeFunctionValue) Kind() Kind { return KindNativeFunction }
