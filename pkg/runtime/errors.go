package runtime

import "fmt"

// RetryExhaustedError reports that a step failed validation on every
// generation attempt. It is fatal to the whole run: it propagates past all
// parent steps to the engine's caller.
type RetryExhaustedError struct {
	StepID   string
	Attempts int
	Reason   string
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("step %q: validation failed after %d attempts: %s", e.StepID, e.Attempts, e.Reason)
}
