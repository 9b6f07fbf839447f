package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wanderatlas/tourism_admin/internal/events"
	"github.com/wanderatlas/tourism_admin/internal/hash"
	"github.com/wanderatlas/tourism_admin/internal/logging"
	"github.com/wanderatlas/tourism_admin/internal/models"
	"github.com/wanderatlas/tourism_admin/internal/tokens"
)

const (
	lockThreshold = 5
	lockDuration  = 2 * time.Hour
	resetTokenTTL = time.Hour
)

// Mailer delivers password-reset links out of band. Email rendering
// and transport live outside this subsystem.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer is the default Mailer; it only records that a reset was
// requested.
type LogMailer struct{}

func (LogMailer) SendPasswordReset(ctx context.Context, email, _ string) error {
	logging.FromContext(ctx).Info("password_reset_mail", "email", email)
	return nil
}

type AuthService struct {
	DB     *gorm.DB
	Tokens *tokens.Service
	Events *events.Producer
	Mailer Mailer
}

type LoginResult struct {
	Account *models.Account
	Pair    *tokens.Pair
}

func (s *AuthService) mailer() Mailer {
	if s.Mailer == nil {
		return LogMailer{}
	}
	return s.Mailer
}

func (s *AuthService) publish(ctx context.Context, accountID uint, event map[string]any) {
	if err := s.Events.Publish(ctx, tokens.Subject(accountID), event); err != nil {
		logging.FromContext(ctx).Error("event_publish_failed", "error", err)
	}
}

// Login validates credentials under the lockout policy and issues a
// token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	var acc models.Account
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "status", 401, "reason", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := time.Now()

	// Locked and unexpired: reject before touching the password
	// verifier so the response does not leak whether it was correct.
	if acc.LockUntil != nil && now.Before(*acc.LockUntil) {
		l.Warn("login_failed", "status", 423, "reason", "account_locked")
		return nil, &AccountLockedError{Until: *acc.LockUntil}
	}

	if !hash.CheckPassword(acc.PasswordHash, password) {
		if err := s.registerFailure(ctx, &acc, now); err != nil {
			return nil, err
		}
		l.Warn("login_failed", "status", 401, "reason", "bad_password", "failed_count", acc.FailedLoginCount)
		return nil, ErrInvalidCredentials
	}

	if acc.Status != models.StatusActive {
		l.Warn("login_failed", "status", 401, "reason", "inactive_account")
		return nil, ErrAccountInactive
	}

	// Counter reset, lock clear and last-login stamp happen in one
	// update so a successful login can never leave stale failures.
	err := s.DB.WithContext(ctx).Model(&acc).Updates(map[string]any{
		"failed_login_count": 0,
		"lock_until":         nil,
		"last_login":         now,
	}).Error
	if err != nil {
		return nil, err
	}
	acc.FailedLoginCount = 0
	acc.LockUntil = nil
	acc.LastLogin = &now

	pair, err := s.Tokens.IssuePair(acc.ID, acc.Role)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, acc.ID, map[string]any{
		"type":       "user_logged_in",
		"account_id": acc.ID,
		"email":      acc.Email,
	})
	l.Info("login_success", "account_id", acc.ID)
	return &LoginResult{Account: &acc, Pair: pair}, nil
}

// registerFailure advances the lockout state machine after a failed
// password check. The read-modify-write on the counter is not
// linearizable under concurrent attempts from multiple processes;
// worst case the threshold trips one attempt early or late, which is
// acceptable for this threat model.
func (s *AuthService) registerFailure(ctx context.Context, acc *models.Account, now time.Time) error {
	if acc.LockUntil != nil && !now.Before(*acc.LockUntil) {
		// Lock elapsed: treat as a fresh account with this one failure.
		acc.FailedLoginCount = 1
		acc.LockUntil = nil
	} else {
		acc.FailedLoginCount++
	}

	if acc.FailedLoginCount >= lockThreshold {
		until := now.Add(lockDuration)
		acc.LockUntil = &until
		s.publish(ctx, acc.ID, map[string]any{
			"type":       "account_locked",
			"account_id": acc.ID,
			"until":      until.Unix(),
		})
	}

	return s.DB.WithContext(ctx).Model(acc).Updates(map[string]any{
		"failed_login_count": acc.FailedLoginCount,
		"lock_until":         acc.LockUntil,
	}).Error
}

// Refresh verifies a refresh token and mints a new access token. The
// refresh token is not rotated. Verification is stateless, so the
// account is re-fetched here to stop suspended subjects.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}
	id, err := tokens.ParseSubject(claims.Subject)
	if err != nil {
		return "", time.Time{}, err
	}

	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", time.Time{}, tokens.ErrTokenInvalid
		}
		return "", time.Time{}, err
	}
	if acc.Status != models.StatusActive {
		return "", time.Time{}, ErrAccountInactive
	}

	return s.Tokens.IssueAccess(acc.ID, acc.Role)
}

func (s *AuthService) GetAccount(ctx context.Context, id uint) (*models.Account, error) {
	var acc models.Account
	if err := s.DB.WithContext(ctx).First(&acc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

// CurrentAccount backs /auth/me: a live account fetch, so suspensions
// take effect without waiting for token expiry.
func (s *AuthService) CurrentAccount(ctx context.Context, id uint) (*models.Account, error) {
	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Status != models.StatusActive {
		return nil, ErrAccountInactive
	}
	return acc, nil
}

type ProfileUpdate struct {
	Name  *string
	Email *string
}

func (s *AuthService) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (*models.Account, error) {
	acc, err := s.CurrentAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if upd.Name != nil {
		changes["name"] = strings.TrimSpace(*upd.Name)
	}
	if upd.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*upd.Email))
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrValidation)
		}
		if email != acc.Email {
			if taken, err := s.emailTaken(ctx, email, acc.ID); err != nil {
				return nil, err
			} else if taken {
				return nil, ErrEmailTaken
			}
			changes["email"] = email
		}
	}
	if len(changes) == 0 {
		return acc, nil
	}
	if err := s.DB.WithContext(ctx).Model(acc).Updates(changes).Error; err != nil {
		return nil, err
	}
	return s.GetAccount(ctx, id)
}

func (s *AuthService) ChangePassword(ctx context.Context, id uint, current, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}
	acc, err := s.CurrentAccount(ctx, id)
	if err != nil {
		return err
	}
	if !hash.CheckPassword(acc.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	pwHash, err := hash.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.DB.WithContext(ctx).Model(acc).Update("password_hash", pwHash).Error; err != nil {
		return err
	}
	s.publish(ctx, acc.ID, map[string]any{
		"type":       "password_changed",
		"account_id": acc.ID,
	})
	return nil
}

// ForgotPassword issues a time-boxed single-use reset token. The
// response is identical whether the email exists or not.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	l := logging.FromContext(ctx).With("svc", "auth.forgot_password")

	email = strings.ToLower(strings.TrimSpace(email))
	var acc models.Account
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&acc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Info("forgot_password_unknown_email")
			return nil
		}
		return err
	}

	token := uuid.NewString()
	reset := models.PasswordReset{
		AccountID: acc.ID,
		TokenHash: sha256Hex(token),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", acc.ID).Delete(&models.PasswordReset{}).Error; err != nil {
			return err
		}
		return tx.Create(&reset).Error
	})
	if err != nil {
		return err
	}

	if err := s.mailer().SendPasswordReset(ctx, acc.Email, token); err != nil {
		l.Error("reset_mail_failed", "error", err)
	}
	return nil
}

// ResetPassword consumes a reset token. The lock state is cleared as
// well: proving control of the mailbox supersedes the failed-login
// counter.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" || newPassword == "" {
		return fmt.Errorf("%w: token and password are required", ErrValidation)
	}

	var reset models.PasswordReset
	err := s.DB.WithContext(ctx).Where("token_hash = ?", sha256Hex(token)).First(&reset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}
	if time.Now().After(reset.ExpiresAt) {
		s.DB.WithContext(ctx).Delete(&reset)
		return ErrResetTokenInvalid
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Account{}).Where("id = ?", reset.AccountID).Updates(map[string]any{
			"password_hash":      pwHash,
			"failed_login_count": 0,
			"lock_until":         nil,
		}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&reset).Error
	})
}

func (s *AuthService) emailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Account{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&count).Error
	return count > 0, err
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
