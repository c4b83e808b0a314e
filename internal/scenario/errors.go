package scenario

import (
	"fmt"

	"github.com/xkilldash9x/uiprobe/api/schemas"
)

// StepError is an execution failure: a step could not be carried out. It is
// distinct from a Fail outcome, which means the application was driven
// successfully but did not show what the scenario expected.
type StepError struct {
	Index int
	Step  schemas.Step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Index+1, e.Step.Label(), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// EvaluationError is a host failure while checking an assertion. A plain
// timeout is never an EvaluationError; it becomes a Fail outcome.
type EvaluationError struct {
	AssertionID string
	Err         error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("assertion %s could not be evaluated: %v", e.AssertionID, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }
