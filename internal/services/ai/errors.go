package ai

import (
	"errors"
)

// Failure classes the resolver distinguishes. Everything else coming out
// of a backend is treated as a generic failure.
var (
	// ErrQuotaExceeded means the active credential hit its rate limit;
	// the caller rotates to the next credential.
	ErrQuotaExceeded = errors.New("ai: quota exceeded")

	// ErrContentBlocked means the backend refused the prompt on policy
	// grounds. Never retried, never cached.
	ErrContentBlocked = errors.New("ai: content blocked")

	// ErrAllCredentialsExhausted means every configured credential was
	// either cooling down or returned a quota error.
	ErrAllCredentialsExhausted = errors.New("ai: all credentials exhausted")
)
