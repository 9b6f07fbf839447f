package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RolePOIOwner      Role = "poi_owner"
	RoleEditor        Role = "editor"
	RoleReviewer      Role = "reviewer"
)

func (r Role) Valid() bool {
	switch r {
	case RolePlatformAdmin, RolePOIOwner, RoleEditor, RoleReviewer:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusPending:
		return true
	}
	return false
}

// PermissionSet maps capability -> action -> allowed. It is stored
// per account as a JSON column, templated from the role at creation
// time and independently editable afterwards.
type PermissionSet map[string]map[string]bool

func (p PermissionSet) Value() (driver.Value, error) {
	if p == nil {
		p = PermissionSet{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal permission set: %w", err)
	}
	return string(data), nil
}

func (p *PermissionSet) Scan(src any) error {
	if src == nil {
		*p = PermissionSet{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("permission set: unsupported column type")
	}
	if len(data) == 0 {
		*p = PermissionSet{}
		return nil
	}
	return json.Unmarshal(data, p)
}

// Clone returns a deep copy so templates are never aliased between
// accounts.
func (p PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(p))
	for cap, actions := range p {
		inner := make(map[string]bool, len(actions))
		for action, allowed := range actions {
			inner[action] = allowed
		}
		out[cap] = inner
	}
	return out
}

type Account struct {
	ID               uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	Email            string        `gorm:"uniqueIndex;not null"     json:"email"`
	Name             string        `json:"name"`
	PasswordHash     string        `gorm:"not null"                 json:"-"`
	Role             Role          `gorm:"not null"                 json:"role"`
	Permissions      PermissionSet `gorm:"type:json"                json:"permissions"`
	Status           Status        `gorm:"not null;default:active"  json:"status"`
	FailedLoginCount int           `gorm:"not null;default:0"       json:"-"`
	LockUntil        *time.Time    `json:"-"`
	LastLogin        *time.Time    `json:"last_login,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ResourceGrant links a poi_owner account to a POI it may mutate.
// Consulted by ownership checks, never updated in place.
type ResourceGrant struct {
	ID         uint      `gorm:"primaryKey"                                  json:"id"`
	AccountID  uint      `gorm:"not null;uniqueIndex:idx_grant_acc_resource" json:"account_id"`
	ResourceID string    `gorm:"not null;uniqueIndex:idx_grant_acc_resource" json:"resource_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActivityLog struct {
	ID         uint      `gorm:"primaryKey"     json:"id"`
	ActorID    uint      `gorm:"index;not null" json:"actor_id"`
	Action     string    `gorm:"not null"       json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	CreatedAt  time.Time `gorm:"index"          json:"created_at"`
}

type PasswordReset struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	AccountID uint      `gorm:"index;not null"        json:"account_id"`
	TokenHash string    `gorm:"uniqueIndex;not null"  json:"-"`
	ExpiresAt time.Time `gorm:"not null"              json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
