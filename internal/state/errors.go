package state

import "fmt"

// ValidationError covers invalid State documents: cyclic dependencies,
// dangling cron workload references, a masked path that cannot be resolved
// against new_state's shape, or a patch result that fails validation. It
// is surfaced as Error{message} on the Response; state is left unchanged.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

// NewValidationError formats a ValidationError from reason and args.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
