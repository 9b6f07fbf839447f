package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/wanderatlas/tourism_admin/internal/hash"
	"github.com/wanderatlas/tourism_admin/internal/logging"
	"github.com/wanderatlas/tourism_admin/internal/models"
	"github.com/wanderatlas/tourism_admin/internal/permission"
)

// AccountService is the administrative side of the credential store:
// account CRUD performed by operators holding users.view/users.manage.
type AccountService struct {
	DB *gorm.DB
}

type CreateAccountInput struct {
	Email    string
	Name     string
	Password string
	Role     models.Role
	Status   models.Status
}

func (s *AccountService) Create(ctx context.Context, in CreateAccountInput) (*models.Account, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}
	if in.Status == "" {
		in.Status = models.StatusActive
	}
	if !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	acc := models.Account{
		Email:        in.Email,
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: pwHash,
		Role:         in.Role,
		Permissions:  permission.TemplateFor(in.Role),
		Status:       in.Status,
	}

	tx := s.DB.WithContext(ctx).Where("email = ?", acc.Email).FirstOrCreate(&acc)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, ErrEmailTaken
	}
	return &acc, nil
}

func (s *AccountService) List(ctx context.Context, limit, offset int) ([]models.Account, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var accounts []models.Account
	err := s.DB.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&accounts).Error
	if err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (s *AccountService) Get(ctx context.Context, id uint) (*models.Account, error) {
	var acc models.Account
	if err := s.DB.WithContext(ctx).First(&acc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

type UpdateAccountInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *models.Role
	Status   *models.Status
	// Permissions replaces the stored set wholesale when provided.
	Permissions *models.PermissionSet
	// ResetPermissions re-applies the role template. A role change
	// alone preserves whatever the set currently holds, so manual
	// grants survive unless an operator asks for the template back.
	ResetPermissions bool
}

func (s *AccountService) Update(ctx context.Context, id uint, in UpdateAccountInput) (*models.Account, error) {
	acc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]any{}
	if in.Name != nil {
		changes["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, fmt.Errorf("%w: email cannot be empty", ErrValidation)
		}
		if email != acc.Email {
			var count int64
			err := s.DB.WithContext(ctx).Model(&models.Account{}).
				Where("email = ? AND id <> ?", email, id).
				Count(&count).Error
			if err != nil {
				return nil, err
			}
			if count > 0 {
				return nil, ErrEmailTaken
			}
			changes["email"] = email
		}
	}
	if in.Password != nil && *in.Password != "" {
		pwHash, err := hash.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		changes["password_hash"] = pwHash
	}

	role := acc.Role
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, *in.Role)
		}
		role = *in.Role
		changes["role"] = role
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *in.Status)
		}
		changes["status"] = *in.Status
	}

	switch {
	case in.Permissions != nil:
		changes["permissions"] = in.Permissions.Clone()
	case in.ResetPermissions:
		changes["permissions"] = permission.TemplateFor(role)
	}

	if len(changes) > 0 {
		if err := s.DB.WithContext(ctx).Model(acc).Updates(changes).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

func (s *AccountService) Delete(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.ResourceGrant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", id).Delete(&models.PasswordReset{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Account{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SeedAdmin creates the initial platform_admin when none exists yet.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	l := logging.FromContext(ctx)

	var count int64
	err := db.WithContext(ctx).Model(&models.Account{}).
		Where("role = ?", models.RolePlatformAdmin).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	svc := &AccountService{DB: db}
	acc, err := svc.Create(ctx, CreateAccountInput{
		Email:    email,
		Name:     "Platform Admin",
		Password: password,
		Role:     models.RolePlatformAdmin,
		Status:   models.StatusActive,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	l.Info("admin_seeded", "account_id", acc.ID, "email", acc.Email)
	return nil
}
