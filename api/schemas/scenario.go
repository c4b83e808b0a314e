package schemas

import (
	"fmt"
	"time"
)

// -- Step Schemas --

// ActionKind names the interaction a Step performs.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionFill     ActionKind = "fill"
	ActionScroll   ActionKind = "scroll"
	ActionNavigate ActionKind = "navigate"
	ActionWait     ActionKind = "wait"
)

// ActionKinds lists every supported action in a stable order.
var ActionKinds = []ActionKind{ActionClick, ActionFill, ActionScroll, ActionNavigate, ActionWait}

// Valid reports whether k is a known action kind.
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Targeted reports whether the action operates on an element locator.
func (k ActionKind) Targeted() bool {
	return k == ActionClick || k == ActionFill
}

// Step is a single declarative interaction within a scenario. Steps are
// immutable once loaded and are executed exactly once, in order.
type Step struct {
	ID     string     `json:"id,omitempty" yaml:"id,omitempty"`
	Action ActionKind `json:"action" yaml:"action"`
	// Target is a locator in the selector dialect understood by the drivers:
	// "xpath=<expr>", "text=<literal>", or a plain CSS selector.
	Target string `json:"target,omitempty" yaml:"target,omitempty"`
	// Nth selects the zero-based match of Target. Zero means the first match.
	Nth   int    `json:"nth,omitempty" yaml:"nth,omitempty"`
	Value string `json:"value,omitempty" yaml:"value,omitempty"`
	// URL is the destination of a navigate step. Relative paths resolve
	// against the configured base URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
	// Duration is the pause taken by a wait step.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	// Dwell overrides the configured settle delay before a targeted action.
	Dwell *time.Duration `json:"dwell,omitempty" yaml:"dwell,omitempty"`
	// ReadyWhen is an optional locator whose visibility ends the dwell early.
	ReadyWhen string `json:"ready_when,omitempty" yaml:"ready_when,omitempty"`
	// Timeout overrides the configured action timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Label returns a short human readable identifier for log lines and errors.
func (s Step) Label() string {
	if s.ID != "" {
		return s.ID
	}
	switch {
	case s.Target != "":
		return fmt.Sprintf("%s %s", s.Action, s.Target)
	case s.URL != "":
		return fmt.Sprintf("%s %s", s.Action, s.URL)
	default:
		return string(s.Action)
	}
}

// -- Assertion Schemas --

// Assertion is one row of a scenario's outcome table: the element that must
// become visible, how long to wait for it, and the reason reported when it
// does not.
type Assertion struct {
	ID            string        `json:"id" yaml:"id"`
	Target        string        `json:"target" yaml:"target"`
	Timeout       time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
}

// -- Scenario Schemas --

// Scenario is a complete declarative UI flow.
type Scenario struct {
	Name        string      `json:"name" yaml:"name"`
	Title       string      `json:"title,omitempty" yaml:"title,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	StartPath   string      `json:"start_path,omitempty" yaml:"start_path,omitempty"`
	Steps       []Step      `json:"steps" yaml:"steps"`
	Assertions  []Assertion `json:"assertions" yaml:"assertions"`

	// Source records where the scenario was loaded from.
	Source string `json:"source,omitempty" yaml:"-"`
}

// -- Outcome Schemas --

// Verdict is the terminal classification of an evaluated scenario.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// Outcome is produced exactly once per scenario run that reaches evaluation.
type Outcome struct {
	Verdict     Verdict `json:"verdict"`
	Reason      string  `json:"reason,omitempty"`
	AssertionID string  `json:"assertion_id,omitempty"`
}

// Pass returns a passing outcome.
func Pass() Outcome {
	return Outcome{Verdict: VerdictPass}
}

// Fail returns a failing outcome attributed to the given assertion.
func Fail(assertionID, reason string) Outcome {
	return Outcome{Verdict: VerdictFail, Reason: reason, AssertionID: assertionID}
}

// Passed reports whether the outcome is a pass.
func (o Outcome) Passed() bool {
	return o.Verdict == VerdictPass
}

func (o Outcome) String() string {
	if o.Passed() {
		return "PASS"
	}
	return fmt.Sprintf("FAIL [%s]: %s", o.AssertionID, o.Reason)
}
