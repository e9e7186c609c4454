package api

import "fmt"

// RemoteFetchError is returned when the backend answers with a non-2xx status.
type RemoteFetchError struct {
	Op     string
	Status int
}

func (e *RemoteFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %d", e.Op, e.Status)
}

// TransportError wraps network failures and undecodable bodies.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
