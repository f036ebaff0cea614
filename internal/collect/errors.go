package collect

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound marks an expected absence: a dependent resource vanished
	// between the pass that discovered its parent and the follow-up call.
	// It is logged as a warning and never counts as a failure.
	ErrNotFound = errors.New("dependent resource not found")

	// ErrMissingField marks a raw record that lacks a field the model
	// requires. Only that record is dropped.
	ErrMissingField = errors.New("required field missing")

	// ErrUndecodable marks an optional field whose value could not be
	// decoded. The record is kept with the field unset.
	ErrUndecodable = errors.New("optional field undecodable")

	// ErrNoClient is returned by a cross-resource pass when no client is
	// configured for the region a resource was discovered in.
	ErrNoClient = errors.New("no client for region")

	errPanic = errors.New("collection unit panicked")
)

// NotFound wraps err with ErrNotFound when its API error code is one of
// codes. Any other error is returned unchanged.
func NotFound(err error, codes ...string) error {
	if err == nil {
		return nil
	}
	code := APIErrorCode(err)
	if code == "" {
		return err
	}
	for _, c := range codes {
		if c == code {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
	}
	return err
}

// IsNotFound reports whether err is an expected absence.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// APIErrorCode returns the service error code carried by err, or "".
func APIErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// MissingField reports a record of resourceType without field.
func MissingField(resourceType, field string) error {
	return fmt.Errorf("%w: %s record has no %s", ErrMissingField, resourceType, field)
}

func isMissingField(err error) bool {
	return errors.Is(err, ErrMissingField)
}

// Undecodable reports an optional field of resourceType that could not be
// decoded.
func Undecodable(resourceType, field string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrUndecodable, resourceType, field, err)
}
