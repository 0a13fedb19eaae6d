package main

import (
	"errors"
	"fmt"

	"github.com/danmuck/genctl/internal/generators"
)

const (
	exitGeneric   = 1
	exitGenerator = 2
	exitConfig    = 3
)

// ExitError carries the process exit code back to main.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{Code: code, Err: fmt.Errorf(format, args...)}
}

// classify maps launcher errors onto exit codes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, generators.ErrPreflight):
		return &ExitError{Code: exitConfig, Err: err}
	case errors.Is(err, generators.ErrGeneratorFailed):
		return &ExitError{Code: exitGenerator, Err: err}
	default:
		return &ExitError{Code: exitGeneric, Err: err}
	}
}
