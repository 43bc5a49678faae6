/*
 * file: errors.go
 * package: apperrors
 * description:
 *     Sentinel error kinds shared across the ingestion pipeline, the
 *     game engine, and the store. Each wraps an underlying cause so
 *     callers can both errors.As() to the kind and still see the root
 *     error via errors.Unwrap().
 */

package apperrors

import "fmt"

// TransportError marks a retriable failure talking to the messaging
// platform (network error, timeout, 5xx).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport: %s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// ProtocolError marks a fatal failure of the current long-poll session
// (missing/invalid fields, expired key) that requires a re-handshake.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol: %s: %v", e.Op, e.Err) }
func (e *ProtocolError) Unwrap() error { return e.Err }

func NewProtocolError(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

// DBError marks an infrastructure failure from the Store.
type DBError struct {
	Op  string
	Err error
}

func (e *DBError) Error() string { return fmt.Sprintf("db: %s: %v", e.Op, e.Err) }
func (e *DBError) Unwrap() error { return e.Err }

func NewDBError(op string, err error) error {
	return &DBError{Op: op, Err: err}
}

// ValidationError marks a malformed inbound update, dropped by the
// Router without surfacing anything to the chat.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func NewValidationError(reason string) error {
	return &ValidationError{Reason: reason}
}
