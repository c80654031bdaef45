// Package errors consolidates sentinel errors for the sectorq engine.
//
// This package provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Pool errors
	ErrPoolExhausted = errors.New("sector pool exhausted")
	ErrInvalidSector = errors.New("invalid sector id")

	// Read errors
	// ErrNoData is returned by ReadBulk/PeekBulk when the sensor has no
	// unread records. Like io.EOF it signals a normal condition, not a
	// failure.
	ErrNoData = errors.New("no data pending")

	// Corruption
	// ErrChainCorrupted indicates a chain traversal exceeded the sector
	// count bound. The affected sensor's chain has already been reset;
	// other sensors are unaffected.
	ErrChainCorrupted = errors.New("sector chain corrupted")

	// Disk spooling
	// ErrDiskIO indicates a spool write or read failed. On the write
	// side no RAM sectors were freed; the flush is retried on a later
	// orchestrator pass.
	ErrDiskIO = errors.New("spool disk I/O failed")

	// Registry errors
	ErrSensorNotFound      = errors.New("sensor not found")
	ErrSensorAlreadyExists = errors.New("sensor already exists")
	ErrInvalidSource       = errors.New("invalid upload source")

	// Record errors
	ErrKindMismatch = errors.New("record kind does not match sensor registration")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Lifecycle
	ErrEngineClosed = errors.New("engine is closed")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// IsNoData returns true if err is the normal empty-read result.
func IsNoData(err error) bool {
	return errors.Is(err, ErrNoData)
}

// IsRetriable returns true if the operation may succeed when retried
// later: the pool drains as uploads acknowledge, and spool I/O failures
// are retried on later orchestrator passes.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrPoolExhausted) ||
		errors.Is(err, ErrDiskIO)
}

// IsCorruption returns true if err reports a corrupted chain.
func IsCorruption(err error) bool {
	return errors.Is(err, ErrChainCorrupted)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidSource)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewSensorNotFound creates a not-found error naming the sensor.
func NewSensorNotFound(source fmt.Stringer, id string) error {
	return fmt.Errorf("%s/%s: %w", source, id, ErrSensorNotFound)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}
