package service

import "errors"

// Domain errors surfaced by the attempt engine. Handlers map them to
// response codes with errors.Is.
var (
	ErrExamNotFound        = errors.New("exam not found")
	ErrNotRegistered       = errors.New("no approved registration for this exam")
	ErrWindowClosed        = errors.New("exam is not accepting attempts")
	ErrAttemptsExhausted   = errors.New("maximum attempts reached")
	ErrRetakeLocked        = errors.New("retake not yet allowed")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrAttemptForbidden    = errors.New("attempt belongs to another user")
	ErrAttemptNotActive    = errors.New("attempt is not active")
	ErrItemNotInPaper      = errors.New("item does not belong to this exam's paper")
	ErrInvalidOption       = errors.New("selected option must be blank or one of A, B, C, D")
	ErrInvalidExamPassword = errors.New("invalid exam password")
	ErrRegistrationClosed  = errors.New("exam is not open for registration")
	ErrQuestionUnavailable = errors.New("question referenced by paper item is missing")
)
