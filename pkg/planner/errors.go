package planner

import (
	"errors"
	"fmt"
)

var (
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrSaveInProgress     = errors.New("save already in progress")
	ErrInvalidColor       = errors.New("invalid color")
	ErrNoSession          = errors.New("no open session")
)

// Step names one write of the save sequence
type Step string

const (
	StepAssignments Step = "assignments"
	StepNote        Step = "note"
	StepColors      Step = "colors"
	StepAnnotations Step = "annotations"
	StepGroups      Step = "groups"
)

// PersistenceError reports the save step that failed. Earlier steps stay applied.
type PersistenceError struct {
	Step Step
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save failed at %s step: %v", e.Step, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailure }
