package ai

import "fmt"

// NetworkError wraps a transport-level failure talking to the
// generative service. Retryable at the batch level.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("gemini request failed: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError means the raw model response could not be turned into a
// top-level array. Retryable at the batch level.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse response: %s: %v", e.Reason, e.Err)
	}
	return "parse response: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError means the parsed array failed the batch contract
// (short batch or a bad item). The whole batch is rejected; validation
// is atomic per batch. Retryable at the batch level.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid batch: " + e.Reason
}
