package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrProctorAccessOnly ErrCode = "PROCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Registration ──────────────────────────────────────────────────
	ErrExamNotFound        ErrCode = "EXAM_NOT_FOUND"
	ErrRegistrationClosed  ErrCode = "REGISTRATION_CLOSED"
	ErrInvalidExamPassword ErrCode = "INVALID_EXAM_PASSWORD"
	ErrNotRegistered       ErrCode = "NOT_REGISTERED"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrWindowClosed        ErrCode = "WINDOW_CLOSED"
	ErrAttemptsExhausted   ErrCode = "ATTEMPTS_EXHAUSTED"
	ErrRetakeLocked        ErrCode = "RETAKE_LOCKED"
	ErrAttemptNotFound     ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAttemptForbidden    ErrCode = "ATTEMPT_FORBIDDEN"
	ErrAttemptNotActive    ErrCode = "ATTEMPT_NOT_ACTIVE"
	ErrItemNotInPaper      ErrCode = "ITEM_NOT_IN_PAPER"
	ErrInvalidOption       ErrCode = "INVALID_OPTION"
	ErrQuestionUnavailable ErrCode = "QUESTION_UNAVAILABLE"

	// ─── Leaderboard ───────────────────────────────────────────────────
	ErrNotRanked ErrCode = "NOT_RANKED"

	// ─── Proctoring ────────────────────────────────────────────────────
	ErrChannelUnavailable ErrCode = "CHANNEL_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrProctorAccessOnly:
		return "This resource is restricted to proctors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Registration ──────────────────────────────────────────────────
	case ErrExamNotFound:
		return "Exam not found."
	case ErrRegistrationClosed:
		return "This exam is not accepting registrations."
	case ErrInvalidExamPassword:
		return "The exam password is incorrect."
	case ErrNotRegistered:
		return "You do not have an approved registration for this exam."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrWindowClosed:
		return "The exam is not open for attempts right now."
	case ErrAttemptsExhausted:
		return "You have used all attempts for this exam."
	case ErrRetakeLocked:
		return "You must wait before retaking this exam."
	case ErrAttemptNotFound:
		return "Attempt not found."
	case ErrAttemptForbidden:
		return "This attempt belongs to another user."
	case ErrAttemptNotActive:
		return "This attempt is no longer accepting answers."
	case ErrItemNotInPaper:
		return "The question is not part of this exam."
	case ErrInvalidOption:
		return "The selected option is not valid."
	case ErrQuestionUnavailable:
		return "A question of this exam could not be loaded."

	// ─── Leaderboard ───────────────────────────────────────────────────
	case ErrNotRanked:
		return "You have no leaderboard entry for this exam."

	// ─── Proctoring ────────────────────────────────────────────────────
	case ErrChannelUnavailable:
		return "The proctoring channel is unavailable."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
