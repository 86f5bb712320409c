package analyzer

import "fmt"

// InitializationError reports that an analyzer could not be prepared for
// a run. The analyzer is excluded from its phase.
type InitializationError struct {
	Analyzer string
	Err      error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize %s: %v", e.Analyzer, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

// AnalysisError reports an expected failure to analyze one dependency.
// The run continues with the next dependency.
type AnalysisError struct {
	Analyzer string
	Path     string
	Err      error
}

func (e *AnalysisError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Analyzer, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Analyzer, e.Path, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// PanicError wraps a value recovered from a panicking analyzer.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Safe runs fn and converts a panic into a *PanicError.
func Safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
