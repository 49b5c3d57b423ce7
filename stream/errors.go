package stream

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TransportError is a connection or mid-stream failure. The consumer moves
// to StateFaulted, reconnecting is up to the caller.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable is false only when the server rejected the request itself.
func (e *TransportError) Retryable() bool {
	switch status.Code(e.Err) {
	case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument:
		return false
	}

	return true
}

// StructuralError is a response event missing a sub-field it must carry.
// It is fatal to the stream instance.
type StructuralError struct {
	Event string
	Field string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed %s event: missing %s", e.Event, e.Field)
}

// RemoteFatalError is a terminal error reported by the server itself, for
// example a module failing deterministically.
type RemoteFatalError struct {
	Module string
	Reason string
}

func (e *RemoteFatalError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("remote fatal error: %s", e.Reason)
	}

	return fmt.Sprintf("remote fatal error in module %q: %s", e.Module, e.Reason)
}
