package service

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is not active")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotFound           = errors.New("account not found")
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
)

// AccountLockedError carries the lock expiry so callers can surface
// the remaining wait without revealing whether the password matched.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d minutes", e.RetryAfterMinutes())
}

func (e *AccountLockedError) RetryAfterMinutes() int {
	mins := int(math.Ceil(time.Until(e.Until).Minutes()))
	if mins < 1 {
		mins = 1
	}
	return mins
}
