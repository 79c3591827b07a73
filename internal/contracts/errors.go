package contracts

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is checks. Every fatal pipeline error unwraps to one of these.
var (
	ErrFormat    = errors.New("format error")
	ErrDateParse = errors.New("date parse error")
	ErrConfig    = errors.New("config error")
	ErrContract  = errors.New("contract violation")
)

// FormatError reports a malformed or empty raw table (fatal)
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// NewFormatError builds a FormatError from a format string
func NewFormatError(format string, args ...interface{}) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

// DateParseError reports a date column that cannot be interpreted at all (fatal).
// Individual unparseable cells are warnings, not DateParseErrors.
type DateParseError struct {
	Column string
	Layout string
	Reason string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date parse error: column %q (layout %q): %s", e.Column, e.Layout, e.Reason)
}

func (e *DateParseError) Unwrap() error { return ErrDateParse }

// ConfigError reports an invalid engine setting, raised before any computation
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ContractViolation signals a caller bug, e.g. trends requested on an uncleaned dataset
type ContractViolation struct {
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("contract violation: %s", e.Reason)
}

func (e *ContractViolation) Unwrap() error { return ErrContract }
