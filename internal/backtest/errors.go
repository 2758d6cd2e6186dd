package backtest

import "fmt"

// ValidationError reports malformed or insufficient simulation input:
// missing price fields, a non-sortable index, or a non-positive starting
// capital. It is always fatal to the run it occurs in and never silently
// recovered.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "backtest: invalid input: " + e.Reason
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
