package ast

// Expression helpers used heavily by tests.

func Int(value int64) *IntegerLiteral {
	return NewIntegerLiteral(value)
}

func Flt(value float64) *FloatLiteral {
	return NewFloatLiteral(value)
}

func Sym(name string) *Symbol {
	return NewSymbol(name)
}

func Comb(elements ...Expr) *Combination {
	return NewCombination(elements)
}
