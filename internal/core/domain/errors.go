package domain

import "fmt"

// ValidationError blocks a launch before any network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NetworkError means the request could not be sent or completed.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError means the backend answered with a non-success status.
type ServerError struct {
	Op     string
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
}
