package interpreter

import (
	"github.com/ecodercc5/carlae/pkg/parser"
	"github.com/ecodercc5/carlae/pkg/runtime"
)

// Run tokenizes, parses, and evaluates a single expression of source text.
// A nil env starts a fresh scope under the interpreter's global environment.
// The environment is always returned, so callers can thread bindings through
// successive calls.
func (i *Interpreter) Run(source string, env *runtime.Environment) (runtime.Value, *runtime.Environment, error) {
	if env == nil {
		env = runtime.NewEnvironment(i.global)
	}
	expr, err := parser.Parse(parser.Tokenize(source))
	if err != nil {
		return nil, env, err
	}
	value, err := i.Evaluate(expr, env)
	if err != nil {
		return nil, env, err
	}
	return value, env, nil
}

// RunProgram evaluates every top-level expression of source text in order
// and returns the value of the last one.
func (i *Interpreter) RunProgram(source string, env *runtime.Environment) (runtime.Value, *runtime.Environment, error) {
	if env == nil {
		env = runtime.NewEnvironment(i.global)
	}
	exprs, err := parser.ParseProgram(parser.Tokenize(source))
	if err != nil {
		return nil, env, err
	}
	var last runtime.Value
	for _, expr := range exprs {
		value, err := i.Evaluate(expr, env)
		if err != nil {
			return nil, env, err
		}
		last = value
	}
	return last, env, nil
}

// Run evaluates one expression with a throwaway interpreter.
func Run(source string, env *runtime.Environment) (runtime.Value, *runtime.Environment, error) {
	return New().Run(source, env)
}

// RunProgram evaluates a whole program with a throwaway interpreter.
func RunProgram(source string, env *runtime.Environment) (runtime.Value, *runtime.Environment, error) {
	return New().RunProgram(source, env)
}
