package provisioning

import (
	"fmt"
	"strings"
)

// Severity levels of a ValidationError.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// ValidationError represents a lint error or warning about one resource.
type ValidationError struct {
	Field    string // Resource or field that failed validation
	Message  string // Human-readable error message
	Severity string // "error" or "warning"
	Err      error  // Underlying sentinel, if any
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// Unwrap returns the underlying sentinel.
func (ve ValidationError) Unwrap() error { return ve.Err }

// IsError returns true if this is an error (not a warning).
func (ve ValidationError) IsError() bool {
	return ve.Severity == SeverityError
}

// SplitValidation separates errors from warnings.
func SplitValidation(all []ValidationError) (errs, warnings []ValidationError) {
	for _, ve := range all {
		if ve.IsError() {
			errs = append(errs, ve)
		} else {
			warnings = append(warnings, ve)
		}
	}
	return errs, warnings
}

// ReportValidation logs warnings and returns an error listing every
// validation error, or nil when there are none.
func ReportValidation(observer Observer, phase string, all []ValidationError) error {
	errs, warnings := SplitValidation(all)
	for _, w := range warnings {
		LogWarning(observer, phase, w.Field, w.Message)
	}
	if len(errs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return &LintError{
		Errors:  errs,
		message: fmt.Sprintf("validation failed:\n  %s", strings.Join(msgs, "\n  ")),
	}
}

// LintError aggregates validation errors. errors.Is matches any of the
// underlying sentinels.
type LintError struct {
	Errors  []ValidationError
	message string
}

func (e *LintError) Error() string { return e.message }

// Unwrap exposes the individual errors.
func (e *LintError) Unwrap() []error {
	out := make([]error, len(e.Errors))
	for i, ve := range e.Errors {
		out[i] = ve
	}
	return out
}
