// Package services defines the business logic for commitments, meetings, the
// org chart and reports. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrNotFound indicates that the referenced entity is absent from the
	// expected location (commitment, department, person, meeting...).
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation's preconditions are not
	// met, e.g. archiving a commitment that is not completed.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a lifecycle move lost a race against a
	// concurrent change of the same commitment.
	ErrConflict = errors.New("concurrent modification")

	// ErrResponsibleRemoval is returned when a referent update would drop the
	// principal responsible person.
	ErrResponsibleRemoval = errors.New("principal referent cannot be removed")

	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")

	// ErrPermission is returned when the actor lacks hierarchy or department
	// scope for the requested operation.
	ErrPermission = errors.New("permission denied")

	// ErrUnauthenticated is returned when the caller cannot be identified.
	ErrUnauthenticated = errors.New("unauthenticated")
)
