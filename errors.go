package clndumpkeys

import (
	"errors"
	"fmt"
)

// Stage identifies the part of the dump that failed.
type Stage uint8

const (
	// StageUsage is a wrong command invocation.
	StageUsage Stage = iota

	// StageIO is a missing, unreadable or malformed hsm_secret file.
	StageIO

	// StageDerivation is a seed or child key that is not a valid scalar.
	StageDerivation

	// StageEncoding is a serialization or base58check failure.
	StageEncoding

	// StageConfig is an invalid version or output variant configuration.
	StageConfig
)

// String returns the name of the stage as shown in error messages.
func (s Stage) String() string {
	switch s {
	case StageUsage:
		return "usage"

	case StageIO:
		return "io"

	case StageDerivation:
		return "derivation"

	case StageEncoding:
		return "encoding"

	case StageConfig:
		return "config"

	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// StageError is a fatal error tagged with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%v error: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// UsageError returns a StageUsage error.
func UsageError(format string, args ...any) error {
	return stageErr(StageUsage, fmt.Errorf(format, args...))
}

// ErrorStage returns the stage an error chain is tagged with, if any.
func ErrorStage(err error) (Stage, bool) {
	var target *StageError
	if errors.As(err, &target) {
		return target.Stage, true
	}

	return 0, false
}
