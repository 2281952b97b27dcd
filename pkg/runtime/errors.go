package runtime

import "fmt"

// NameError reports a lookup of a symbol with no binding in any enclosing
// scope.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("name error: variable '%s' is not bound", e.Name)
}
