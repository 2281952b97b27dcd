package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ecodercc5/carlae/pkg/runtime"
)

// formatValue renders a runtime value for the REPL and `carlae run`.
func formatValue(val runtime.Value) string {
	switch v := val.(type) {
	case runtime.IntegerValue:
		return strconv.FormatInt(v.Val, 10)
	case runtime.FloatValue:
		return formatFloat(v.Val)
	case runtime.EmptyListValue:
		return "()"
	case *runtime.ClosureValue:
		return fmt.Sprintf("#<function (%s)>", strings.Join(v.Params, " "))
	case runtime.NativeFunctionValue:
		return fmt.Sprintf("#<builtin %s>", v.Name)
	case *runtime.NativeFunctionValue:
		return fmt.Sprintf("#<builtin %s>", v.Name)
	default:
		return fmt.Sprintf("[%s]", val.Kind())
	}
}

// formatFloat keeps integral floats visually distinct from integers by
// forcing a trailing ".0" when the shortest representation drops it.
func formatFloat(f float64) string {
	if math.IsInf(f, 1) {
		return "+inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
