package interpreter

import (
	"github.com/ecodercc5/carlae/pkg/ast"
	"github.com/ecodercc5/carlae/pkg/runtime"
)

// DefaultMaxDepth bounds evaluator recursion. Runaway recursion surfaces as
// an EvaluationError well before the goroutine stack is exhausted.
const DefaultMaxDepth = 10000

// Interpreter drives evaluation of Carlae expressions.
type Interpreter struct {
	global   *runtime.Environment
	maxDepth int
}

// New returns an interpreter whose global environment holds the builtin
// arithmetic functions.
func New() *Interpreter {
	return &Interpreter{
		global:   NewGlobalEnvironment(),
		maxDepth: DefaultMaxDepth,
	}
}

// GlobalEnvironment returns the interpreter's global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Environment {
	return i.global
}

// Evaluate reduces a single expression to a value. A nil env evaluates
// directly in the global environment.
func (i *Interpreter) Evaluate(expr ast.Expr, env *runtime.Environment) (runtime.Value, error) {
	if env == nil {
		env = i.global
	}
	return i.evaluate(expr, env, 0)
}

func (i *Interpreter) evaluate(expr ast.Expr, env *runtime.Environment, depth int) (runtime.Value, error) {
	if depth > i.maxDepth {
		return nil, newEvaluationError("maximum recursion depth exceeded")
	}
	switch node := expr.(type) {
	case *ast.IntegerLiteral:
		return runtime.IntegerValue{Val: node.Value}, nil
	case *ast.FloatLiteral:
		return runtime.FloatValue{Val: node.Value}, nil
	case *ast.Symbol:
		return env.Get(node.Name)
	case *ast.Combination:
		return i.evaluateCombination(node, env, depth)
	default:
		return nil, newEvaluationError("unsupported expression kind %s", expr.Kind())
	}
}

// evaluateCombination dispatches on the leading element: the two special
// forms are recognized only in operator position, everything else is
// ordinary application.
func (i *Interpreter) evaluateCombination(node *ast.Combination, env *runtime.Environment, depth int) (runtime.Value, error) {
	if len(node.Elements) == 0 {
		return runtime.EmptyListValue{}, nil
	}
	if head, ok := node.Elements[0].(*ast.Symbol); ok {
		switch head.Name {
		case ast.KeywordAssign:
			return i.evaluateAssign(node, env, depth)
		case ast.KeywordFunction:
			return i.evaluateFunction(node, env)
		}
	}
	return i.evaluateApplication(node, env, depth)
}

// evaluateAssign handles both assignment shapes. A symbol target binds the
// evaluated value; a combination target is shorthand for binding a closure:
// (:= (name params...) body). Both bind in the current scope and return the
// bound value.
func (i *Interpreter) evaluateAssign(node *ast.Combination, env *runtime.Environment, depth int) (runtime.Value, error) {
	if len(node.Elements) != 3 {
		return nil, newEvaluationError("'%s' expects a target and a value", ast.KeywordAssign)
	}
	switch target := node.Elements[1].(type) {
	case *ast.Symbol:
		value, err := i.evaluate(node.Elements[2], env, depth+1)
		if err != nil {
			return nil, err
		}
		env.Define(target.Name, value)
		return value, nil
	case *ast.Combination:
		if len(target.Elements) == 0 {
			return nil, newEvaluationError("'%s' shorthand requires a function name", ast.KeywordAssign)
		}
		name, ok := target.Elements[0].(*ast.Symbol)
		if !ok {
			return nil, newEvaluationError("'%s' shorthand requires a symbol function name", ast.KeywordAssign)
		}
		params, err := parameterNames(target.Elements[1:])
		if err != nil {
			return nil, err
		}
		closure := &runtime.ClosureValue{Params: params, Body: node.Elements[2], Env: env}
		env.Define(name.Name, closure)
		return closure, nil
	default:
		return nil, newEvaluationError("'%s' target must be a symbol or combination", ast.KeywordAssign)
	}
}

// evaluateFunction constructs an anonymous closure over the current
// environment. No name is bound.
func (i *Interpreter) evaluateFunction(node *ast.Combination, env *runtime.Environment) (runtime.Value, error) {
	if len(node.Elements) != 3 {
		return nil, newEvaluationError("'%s' expects a parameter list and a body", ast.KeywordFunction)
	}
	paramList, ok := node.Elements[1].(*ast.Combination)
	if !ok {
		return nil, newEvaluationError("'%s' parameter list must be a combination", ast.KeywordFunction)
	}
	params, err := parameterNames(paramList.Elements)
	if err != nil {
		return nil, err
	}
	return &runtime.ClosureValue{Params: params, Body: node.Elements[2], Env: env}, nil
}

func parameterNames(elements []ast.Expr) ([]string, error) {
	params := make([]string, 0, len(elements))
	for _, element := range elements {
		symbol, ok := element.(*ast.Symbol)
		if !ok {
			return nil, newEvaluationError("function parameters must be symbols, got %s", element.Kind())
		}
		params = append(params, symbol.Name)
	}
	return params, nil
}

// evaluateApplication reduces every element left to right in the current
// environment, then applies the first value to the rest. A combination of
// exactly one element is that element's value, not a call.
func (i *Interpreter) evaluateApplication(node *ast.Combination, env *runtime.Environment, depth int) (runtime.Value, error) {
	values := make([]runtime.Value, 0, len(node.Elements))
	for _, element := range node.Elements {
		value, err := i.evaluate(element, env, depth+1)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	if len(values) == 1 {
		return values[0], nil
	}
	return i.apply(values[0], values[1:], depth)
}

// apply invokes a callable with already-evaluated arguments. Closure calls
// bind parameters positionally in a fresh scope whose parent is the
// environment captured at closure creation, so free variables resolve
// lexically rather than against the caller.
func (i *Interpreter) apply(callee runtime.Value, args []runtime.Value, depth int) (runtime.Value, error) {
	switch fn := callee.(type) {
	case *runtime.ClosureValue:
		if len(args) != len(fn.Params) {
			return nil, newEvaluationError("closure expects %d arguments, got %d", len(fn.Params), len(args))
		}
		local := runtime.NewEnvironment(fn.Env)
		for idx, param := range fn.Params {
			local.Define(param, args[idx])
		}
		return i.evaluate(fn.Body, local, depth+1)
	case runtime.NativeFunctionValue:
		return fn.Impl(args)
	case *runtime.NativeFunctionValue:
		return fn.Impl(args)
	default:
		return nil, newEvaluationError("value of kind %s is not callable", callee.Kind())
	}
}
