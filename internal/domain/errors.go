package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRegistrationNotFound is returned when no registration exists for the (student, quiz) pair.
	ErrRegistrationNotFound = errors.New("registration not found")
	// ErrResultNotFound is returned when no attempt result exists for the (student, quiz) pair.
	ErrResultNotFound = errors.New("attempt result not found")
	// ErrInvalidPassword is returned when the supplied quiz password does not match.
	ErrInvalidPassword = errors.New("invalid quiz password")
	// ErrRegistrationClosed is returned when a registration request arrives outside the registration window.
	ErrRegistrationClosed = errors.New("registration window closed")
	// ErrAttemptWindowClosed is returned when an attempt is opened outside the attempt window.
	ErrAttemptWindowClosed = errors.New("attempt window closed")
	// ErrAlreadyRegistered is returned when a registration already exists for the (student, quiz) pair.
	ErrAlreadyRegistered = errors.New("already registered")
	// ErrRegistrationNotApproved is returned when the registration is still pending or was rejected.
	ErrRegistrationNotApproved = errors.New("registration not approved")
	// ErrDuplicateSubmission signals the attempt was already recorded. Callers must not retry.
	ErrDuplicateSubmission = errors.New("attempt already submitted")
	// ErrQuizLocked is returned when questions are mutated after registrations exist.
	ErrQuizLocked = errors.New("quiz has registrations and is locked")
	// ErrNotQuizOwner is returned when a teacher operates on a quiz they do not own.
	ErrNotQuizOwner = errors.New("quiz owned by another teacher")
	// ErrResultsNotReleased is returned when a student reads a result the teacher has not released.
	ErrResultsNotReleased = errors.New("results not released")
)

// ValidationError reports a malformed quiz definition.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}
