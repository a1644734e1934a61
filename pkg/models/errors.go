package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInputFormat marks an unsupported or malformed catalog file.
	ErrInputFormat = errors.New("unsupported or malformed catalog input")
	// ErrEmptyCatalog is returned when parsing yields no usable records.
	ErrEmptyCatalog = errors.New("catalog contains no usable products")
	// ErrAudienceEmpty is returned when simulation is asked to average over nobody.
	ErrAudienceEmpty = errors.New("audience is empty")
	// ErrInvalidArgument covers out-of-range sizes such as k <= 0 or n < 1.
	ErrInvalidArgument = errors.New("invalid argument")
)

// InputFormatError carries the file name that could not be read.
type InputFormatError struct {
	FileName string
	Reason   string
	Err      error
}

func (e *InputFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %q: %s: %v", e.FileName, e.Reason, e.Err)
	}
	return fmt.Sprintf("catalog %q: %s", e.FileName, e.Reason)
}

// Is lets errors.Is(err, ErrInputFormat) match.
func (e *InputFormatError) Is(target error) bool {
	return target == ErrInputFormat
}

func (e *InputFormatError) Unwrap() error {
	return e.Err
}
