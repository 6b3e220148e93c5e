// errors.go
// ---------
// Error taxonomy for the SDK. Each kind is a small exported struct so callers
// can distinguish them with errors.As:
//
// - BindingError: a template placeholder or required parameter was not
//   supplied. A caller bug; never retried.
// - TransportError: the network round trip itself failed. Retryable reports
//   whether an external retry policy may reasonably try again.
// - DecodeError: the response body could not be converted to the domain type.
// - BatchPartError: one part of a batch response was missing or unparsable.
//   Isolated to that part's index; never fails the whole batch.
// - ConfigurationError: invalid batch/family setup, detected before any
//   network I/O.
package callbridge

import "fmt"

type BindingError struct {
	Param string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("binding error: parameter %q not supplied and has no default", e.Param)
}

type TransportError struct {
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error (retryable=%t): %v", e.Retryable, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type BatchPartError struct {
	Index  int
	Reason string
	Err    error
}

func (e *BatchPartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("batch part %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("batch part %d: %s", e.Index, e.Reason)
}

func (e *BatchPartError) Unwrap() error { return e.Err }

type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
