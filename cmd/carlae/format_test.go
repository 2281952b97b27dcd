package main

import (
	"math"
	"testing"

	"github.com/ecodercc5/carlae/pkg/ast"
	"github.com/ecodercc5/carlae/pkg/runtime"
)

func TestFormatValue(t *testing.T) {
	closure := &runtime.ClosureValue{
		Params: []string{"a", "b"},
		Body:   ast.Sym("a"),
		Env:    runtime.NewEnvironment(nil),
	}
	thunk := &runtime.ClosureValue{
		Body: ast.Int(1),
		Env:  runtime.NewEnvironment(nil),
	}
	native := runtime.NativeFunctionValue{Name: "+"}

	cases := []struct {
		name string
		val  runtime.Value
		want string
	}{
		{"integer", runtime.IntegerValue{Val: 42}, "42"},
		{"negative integer", runtime.IntegerValue{Val: -7}, "-7"},
		{"float", runtime.FloatValue{Val: 3.5}, "3.5"},
		{"integral float keeps decimal point", runtime.FloatValue{Val: 4}, "4.0"},
		{"empty list", runtime.EmptyListValue{}, "()"},
		{"closure", closure, "#<function (a b)>"},
		{"parameterless closure", thunk, "#<function ()>"},
		{"native function", native, "#<builtin +>"},
		{"native function pointer", &native, "#<builtin +>"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatValue(tc.val); got != tc.want {
				t.Fatalf("formatValue = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFormatFloat(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{3.5, "3.5"},
		{4, "4.0"},
		{-0.5, "-0.5"},
		{0, "0.0"},
		{1e21, "1e+21"},
		{math.Inf(1), "+inf"},
		{math.Inf(-1), "-inf"},
		{math.NaN(), "nan"},
	}
	for _, tc := range cases {
		if got := formatFloat(tc.in); got != tc.want {
			t.Fatalf("formatFloat(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
