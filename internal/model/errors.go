package model

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable means capture could not start. Fatal to the run.
	ErrSourceUnavailable = errors.New("packet source unavailable")
	// ErrPartialCapture means the source stopped early. A summary is still produced.
	ErrPartialCapture = errors.New("partial capture")
	// ErrModuleSendFailure means one attack module could not emit its traffic.
	ErrModuleSendFailure = errors.New("attack module send failure")
	// ErrMissingPriorSummary means a comparison was requested without both summaries.
	ErrMissingPriorSummary = errors.New("missing prior summary")
)

// ModuleError attributes a failure to the attack module that produced it.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %s: %v", e.Module, e.Err)
}

// Unwrap exposes both the module failure class and the underlying cause.
func (e *ModuleError) Unwrap() []error {
	return []error{ErrModuleSendFailure, e.Err}
}
