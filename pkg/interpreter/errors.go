package interpreter

import "fmt"

// EvaluationError reports a malformed special form, an arity mismatch, a
// non-callable operator, or arithmetic over unsupported operands.
type EvaluationError struct {
	Message string
}

func (e *EvaluationError) Error() string {
	return "evaluation error: " + e.Message
}

func newEvaluationError(format string, args ...any) *EvaluationError {
	return &EvaluationError{Message: fmt.Sprintf(format, args...)}
}
