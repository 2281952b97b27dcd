package interpreter

import "github.com/ecodercc5/carlae/pkg/runtime"

// number accumulates arithmetic at integer precision until a float operand
// forces promotion. Integer results stay integer.
type number struct {
	i       int64
	f       float64
	isFloat bool
}

func (n number) value() runtime.Value {
	if n.isFloat {
		return runtime.FloatValue{Val: n.f}
	}
	return runtime.IntegerValue{Val: n.i}
}

func (n number) asFloat() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func toNumber(name string, v runtime.Value) (number, error) {
	switch val := v.(type) {
	case runtime.IntegerValue:
		return number{i: val.Val}, nil
	case runtime.FloatValue:
		return number{f: val.Val, isFloat: true}, nil
	default:
		return number{}, newEvaluationError("'%s' expects numeric arguments, got %s", name, v.Kind())
	}
}

func addNumbers(a, b number) number {
	if a.isFloat || b.isFloat {
		return number{f: a.asFloat() + b.asFloat(), isFloat: true}
	}
	return number{i: a.i + b.i}
}

func subtractNumbers(a, b number) number {
	if a.isFloat || b.isFloat {
		return number{f: a.asFloat() - b.asFloat(), isFloat: true}
	}
	return number{i: a.i - b.i}
}

func multiplyNumbers(a, b number) number {
	if a.isFloat || b.isFloat {
		return number{f: a.asFloat() * b.asFloat(), isFloat: true}
	}
	return number{i: a.i * b.i}
}

// divideNumbers truncates toward zero on the integer path. Both paths refuse
// a zero divisor.
func divideNumbers(a, b number) (number, error) {
	if a.isFloat || b.isFloat {
		if b.asFloat() == 0 {
			return number{}, newEvaluationError("division by zero")
		}
		return number{f: a.asFloat() / b.asFloat(), isFloat: true}, nil
	}
	if b.i == 0 {
		return number{}, newEvaluationError("division by zero")
	}
	return number{i: a.i / b.i}, nil
}

// builtinAdd sums its arguments; the empty sum is integer zero.
func builtinAdd(args []runtime.Value) (runtime.Value, error) {
	acc := number{}
	for _, arg := range args {
		n, err := toNumber("+", arg)
		if err != nil {
			return nil, err
		}
		acc = addNumbers(acc, n)
	}
	return acc.value(), nil
}

// builtinSubtract negates a single argument, otherwise folds left to right
// subtracting each later argument from the running value.
func builtinSubtract(args []runtime.Value) (runtime.Value, error) {
	if len(args) == 0 {
		return nil, newEvaluationError("'-' expects at least one argument")
	}
	first, err := toNumber("-", args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return subtractNumbers(number{}, first).value(), nil
	}
	acc := first
	for _, arg := range args[1:] {
		n, err := toNumber("-", arg)
		if err != nil {
			return nil, err
		}
		acc = subtractNumbers(acc, n)
	}
	return acc.value(), nil
}

// builtinMultiply multiplies its arguments; the empty product is integer one.
func builtinMultiply(args []runtime.Value) (runtime.Value, error) {
	acc := number{i: 1}
	for _, arg := range args {
		n, err := toNumber("*", arg)
		if err != nil {
			return nil, err
		}
		acc = multiplyNumbers(acc, n)
	}
	return acc.value(), nil
}

// builtinDivide folds left to right, dividing the running value by each
// later argument. A single argument is returned unchanged.
func builtinDivide(args []runtime.Value) (runtime.Value, error) {
	if len(args) == 0 {
		return nil, newEvaluationError("'/' expects at least one argument")
	}
	acc, err := toNumber("/", args[0])
	if err != nil {
		return nil, err
	}
	for _, arg := range args[1:] {
		n, err := toNumber("/", arg)
		if err != nil {
			return nil, err
		}
		acc, err = divideNumbers(acc, n)
		if err != nil {
			return nil, err
		}
	}
	return acc.value(), nil
}

// NewGlobalEnvironment builds a root scope with the builtin arithmetic
// functions bound.
func NewGlobalEnvironment() *runtime.Environment {
	env := runtime.NewEnvironment(nil)
	define := func(name string, impl runtime.NativeFunc) {
		env.Define(name, runtime.NativeFunctionValue{Name: name, Impl: impl})
	}
	define("+", builtinAdd)
	define("-", builtinSubtract)
	define("*", builtinMultiply)
	define("/", builtinDivide)
	return env
}
