package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a payment (or related record) does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConcurrentModification is returned when a state transition lost a race:
	// the payment changed between the validated read and the guarded update.
	// Callers must re-read before retrying.
	ErrConcurrentModification = errors.New("payment was modified concurrently")
)

// InvalidTransitionError reports a state change not permitted from the
// payment's current state.
type InvalidTransitionError struct {
	From ApprovalState
	To   ApprovalState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// PermissionDeniedError reports an actor lacking the approval group for a role.
type PermissionDeniedError struct {
	UserID int64
	Role   StageRole
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("user %d lacks the %q group", e.UserID, e.Role.Group())
}

// DuplicateActorError reports a dual-approval violation: the actor already
// holds an earlier stage role on the same payment.
type DuplicateActorError struct {
	UserID   int64
	Role     StageRole
	HeldRole StageRole
}

func (e *DuplicateActorError) Error() string {
	return fmt.Sprintf("user %d already acted as %s and cannot also act as %s", e.UserID, e.HeldRole, e.Role)
}

// ValidationError reports missing or malformed workflow input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ConfigError reports a missing required configuration value.
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration value %q is not set", e.Key)
}

// EncodingError reports a QR rendering failure. It is propagated, not
// swallowed: callers may store an empty asset but must log the cause.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("qr encoding failed: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// StorageError reports an unavailable backing store. Verification logging
// treats it as non-fatal; everything else surfaces it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
