package model

import (
	"errors"
	"fmt"
)

// Error kinds. Callers branch on them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrResourceUnavailable = errors.New("resource unavailable")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrStorage             = errors.New("storage error")
	ErrInvalidRequest      = errors.New("invalid request")
)

// InvalidTransitionError rejects a status change that is not the immediate
// successor of the current status.
type InvalidTransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// StorageError wraps an I/O failure of the resource store. It is retryable by
// the caller; no partial success may be assumed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err unless it is nil or already a kind the caller
// must see unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// UnavailableError reports a dock that cannot take a truck.
type UnavailableError struct {
	DockID string
	Reason string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("dock %s not available: %s", e.DockID, e.Reason)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrResourceUnavailable }

// TruckDocked reports that truckID already holds a dock, so dockID cannot
// take it.
func TruckDocked(dockID, truckID string) error {
	return &UnavailableError{DockID: dockID, Reason: fmt.Sprintf("truck %s already holds a dock", truckID)}
}

// NotFound builds an ErrNotFound for the given entity and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}
