package domain

import (
	"errors"
	"fmt"
)

var (
	// requested snapshot or log does not exist; callers skip it and continue
	ErrNotFound = errors.New("artifact not found")
	// fewer usable inputs than the configured minimum
	ErrInsufficientData = errors.New("insufficient data")
	// loaded artifact does not parse into the expected shape
	ErrMalformedInput = errors.New("malformed input")
	// persisting a computed result failed; the result itself is still usable
	ErrWriteFailure = errors.New("write failure")
)

// PeriodError describes which period a whole-input failure affected
type PeriodError struct {
	Op    string // build_daily|rollup|load|save
	Level string
	Key   string
	Err   error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Level, e.Key, e.Err)
}

func (e *PeriodError) Unwrap() error {
	return e.Err
}
