package model

import (
	"errors"
	"fmt"
)

// Error kinds, one per pipeline stage. Match them with errors.Is against a StageError.
var (
	ErrAuth           = errors.New("auth error")
	ErrWarehouseSetup = errors.New("warehouse setup error")
	ErrFetch          = errors.New("fetch error")
	ErrTransform      = errors.New("transform error")
	ErrValidation     = errors.New("validation error")
	ErrLoad           = errors.New("load error")
)

// StageError is the terminal error of a run: the failing stage kind, a human
// readable message for the notification channel and the underlying cause.
type StageError struct {
	Kind    error
	Message string
	Err     error
}

func NewStageError(kind error, message string, err error) *StageError {
	return &StageError{Kind: kind, Message: message, Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
