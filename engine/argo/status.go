package argo

import "fmt"

// Phase is the workflow engine's authoritative lifecycle label.
type Phase string

const (
	PhaseUnknown   Phase = ""
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseSkipped   Phase = "Skipped"
	PhaseFailed    Phase = "Failed"
	PhaseError     Phase = "Error"
	PhaseOmitted   Phase = "Omitted"
)

// UnrecognizedPhaseError reports a phase literal outside the known set.
type UnrecognizedPhaseError struct {
	Raw string
}

func (e *UnrecognizedPhaseError) Error() string {
	return fmt.Sprintf("unrecognized workflow phase %q", e.Raw)
}

// ParsePhase validates a phase literal reported by the engine. Unknown literals
// are a hard failure, never silently mapped to an unknown phase.
func ParsePhase(raw string) (Phase, error) {
	switch p := Phase(raw); p {
	case PhasePending, PhaseRunning, PhaseSucceeded, PhaseSkipped, PhaseFailed, PhaseError, PhaseOmitted:
		return p, nil
	default:
		return PhaseUnknown, &UnrecognizedPhaseError{Raw: raw}
	}
}

// Status is an immutable classification of a workflow's lifecycle phase.
//
// When the engine returned no status block at all, NoStatus reports true and
// the Complete/Success/Error booleans are indeterminate; callers must check
// NoStatus before branching on them.
type Status struct {
	phase Phase
	known bool
}

// StatusOf builds a Status for a known phase.
func StatusOf(phase Phase) Status {
	return Status{phase: phase, known: true}
}

// NoStatusValue is the distinguished value for a workflow without any status block.
func NoStatusValue() Status {
	return Status{}
}

// Phase returns the classified phase. Only meaningful when NoStatus is false.
func (s Status) Phase() Phase {
	return s.phase
}

// NoStatus reports whether the engine returned no phase information at all.
func (s Status) NoStatus() bool {
	return !s.known
}

// Complete reports whether the workflow reached a terminal phase.
func (s Status) Complete() bool {
	switch s.phase {
	case PhaseSucceeded, PhaseFailed, PhaseError, PhaseSkipped, PhaseOmitted:
		return s.known
	default:
		return false
	}
}

// Success reports whether the workflow succeeded.
func (s Status) Success() bool {
	return s.known && s.phase == PhaseSucceeded
}

// Error reports whether the workflow failed or errored out.
func (s Status) Error() bool {
	return s.known && (s.phase == PhaseFailed || s.phase == PhaseError)
}

func (s Status) String() string {
	if !s.known {
		return "<no status>"
	}
	return string(s.phase)
}
