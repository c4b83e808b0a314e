package browser

import "fmt"

// Session acquisition stages reported by EnvironmentError.
const (
	StageStartHost     = "start host"
	StageLaunchBrowser = "launch browser"
	StageOpenContext   = "open context"
	StageOpenPage      = "open page"
)

// EnvironmentError reports that the automation environment could not be
// brought up. It is always fatal to the run.
type EnvironmentError struct {
	Stage string
	Err   error
}

func (e *EnvironmentError) Error() string {
	return fmt.Sprintf("environment failure during %s: %v", e.Stage, e.Err)
}

func (e *EnvironmentError) Unwrap() error {
	return e.Err
}
