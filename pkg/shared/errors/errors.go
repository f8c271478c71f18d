package errors

import (
	"errors"
	"fmt"
)

// OverflowError reports a query whose total result count exceeds what the server lets a client page through.
// It never leaves the search traversal: the traversal answers it by partitioning the filter.
type OverflowError struct {
	Total int
	Max   int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("%d results exceed the server maximum of %d", e.Total, e.Max)
}

// NewOverflowError creates an OverflowError.
func NewOverflowError(total, max int) error {
	return &OverflowError{Total: total, Max: max}
}

// TransportError wraps a failed request: network failure, authorization failure or a non-2xx status.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: unexpected status %d: %v", e.Method, e.Path, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a TransportError.
func NewTransportError(method, path string, status int, err error) error {
	return &TransportError{Method: method, Path: path, StatusCode: status, Err: err}
}

// DataShapeError reports a changelog diff record that does not map to any known event.
type DataShapeError struct {
	Finding string
	Diff    string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("finding %s: unrecognized changelog diff %s", e.Finding, e.Diff)
}

// NewDataShapeError creates a DataShapeError.
func NewDataShapeError(finding, diff string) error {
	return &DataShapeError{Finding: finding, Diff: diff}
}

// IsOverflow reports whether err is or wraps an OverflowError.
func IsOverflow(err error) bool {
	var oe *OverflowError
	return errors.As(err, &oe)
}

// AsOverflow returns the OverflowError err is or wraps.
func AsOverflow(err error) (*OverflowError, bool) {
	var oe *OverflowError
	ok := errors.As(err, &oe)
	return oe, ok
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// CommandError represents an error that occurred during command execution, storing relevant results.
type CommandError struct {
	ExitCode    int
	CommonError string
	Result      interface{}
}

// Error implements the error interface, returning the message from the common error.
func (e *CommandError) Error() string {
	return e.CommonError
}

// NewCommandError creates a new CommandError instance, encapsulating the partial result and the error message.
func NewCommandError(result interface{}, err error, code int) *CommandError {
	return &CommandError{
		ExitCode:    code,
		CommonError: err.Error(),
		Result:      result,
	}
}
