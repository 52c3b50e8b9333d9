package domain

// Error is a tagged business error carrying a stable machine-readable code
// (the wire "detail" value from spec.md §7) and an optional human message.
// Handlers map Code to an HTTP status via a small lookup table; nothing
// upstream of the handler boundary should need to know the status code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func NewError(code string) *Error {
	return &Error{Code: code}
}

// Error codes, grouped as in spec.md §7.
const (
	ErrInvalidCredentials = "invalid_credentials"
	ErrTokenExpired       = "token_expired"
	ErrTokenRevoked       = "token_revoked"
	ErrUsernameNotFound   = "username_not_found"

	ErrAlreadyInRound        = "already_in_round"
	ErrMaxOutstandingPrompts = "max_outstanding_prompts"
	ErrInsufficientBalance   = "insufficient_balance"
	ErrAlreadyClaimedToday   = "already_claimed_today"

	ErrNoPromptsAvailable   = "no_prompts_available"
	ErrNoWordsetsAvailable  = "no_wordsets_available"

	ErrInvalidPhrase   = "invalid_phrase"
	ErrDuplicatePhrase = "duplicate_phrase"

	ErrExpired          = "expired"
	ErrAlreadyVoted     = "already_voted"
	ErrNotAContributor  = "not_a_contributor"
	ErrNotFound         = "not_found"

	ErrRateLimited           = "rate_limited"
	ErrDependencyUnavailable = "dependency_unavailable"

	ErrUsernameTaken = "username_taken"
	ErrEmailTaken    = "email_taken"
)

// IsBusinessError reports whether err is a tagged domain.Error, so the
// handler boundary can recover it and return 4xx instead of 5xx.
func IsBusinessError(err error) (*Error, bool) {
	if e, ok := err.(*Error); ok {
		return e, true
	}
	return nil, false
}
