package httpserver

import (
	"time"

	"github.com/wanderatlas/tourism_admin/internal/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         *models.Account `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresIn    int64           `json:"expiresIn"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

type profileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type createUserRequest struct {
	Email    string        `json:"email"`
	Name     string        `json:"name"`
	Password string        `json:"password"`
	Role     models.Role   `json:"role"`
	Status   models.Status `json:"status"`
}

type updateUserRequest struct {
	Name             *string               `json:"name"`
	Email            *string               `json:"email"`
	Password         *string               `json:"password"`
	Role             *models.Role          `json:"role"`
	Status           *models.Status        `json:"status"`
	Permissions      *models.PermissionSet `json:"permissions"`
	ResetPermissions bool                  `json:"resetPermissions"`
}

type listUsersResponse struct {
	Users []models.Account `json:"users"`
	Total int64            `json:"total"`
}

func expiresIn(exp time.Time) int64 {
	return int64(time.Until(exp).Seconds())
}
