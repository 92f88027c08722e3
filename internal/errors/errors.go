package errors

import "errors"

var ErrUnauthorized = errors.New("user is not authorized")
var ErrForbidden = errors.New("operation is forbidden for user")

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("entity not found")

// ErrInvalidState is returned for participation transitions the state machine
// does not allow, e.g. cancelling an already cancelled participation.
var ErrInvalidState = errors.New("invalid state transition")

// ErrInvalidArgument is returned for contract violations such as reserving a
// session that does not belong to the event. Expected business outcomes
// (waitlisted, capacity exceeded, already checked in) are never errors.
var ErrInvalidArgument = errors.New("invalid argument")
