// Package permission evaluates role-based permissions plus per-resource
// ownership grants. Capabilities and actions are enumerated types; an
// unknown capability or action always evaluates to false.
package permission

import (
	"context"

	"gorm.io/gorm"

	"github.com/wanderatlas/tourism_admin/internal/models"
)

type Capability string

const (
	CapPOIs      Capability = "pois"
	CapReviews   Capability = "reviews"
	CapUsers     Capability = "users"
	CapAnalytics Capability = "analytics"
	CapMedia     Capability = "media"
	CapSettings  Capability = "settings"
)

type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionExport Action = "export"
	ActionManage Action = "manage"
)

type Engine struct {
	DB *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{DB: db}
}

// Has walks the account's stored permission set. platform_admin
// short-circuits to true; any missing capability or action is a
// denial, never an error.
func (e *Engine) Has(acc *models.Account, cap Capability, action Action) bool {
	if acc == nil {
		return false
	}
	if acc.Role == models.RolePlatformAdmin {
		return true
	}
	actions, ok := acc.Permissions[string(cap)]
	if !ok {
		return false
	}
	return actions[string(action)]
}

// CanAccessResource is the conjunction of the RBAC check and the
// ownership grant. Only poi_owner is ownership-gated; editor and
// platform_admin mutate any resource their permission set allows.
func (e *Engine) CanAccessResource(ctx context.Context, acc *models.Account, cap Capability, action Action, resourceID string) (bool, error) {
	if !e.Has(acc, cap, action) {
		return false, nil
	}
	if acc.Role != models.RolePOIOwner {
		return true, nil
	}
	return e.HasGrant(ctx, acc.ID, resourceID)
}

func (e *Engine) HasGrant(ctx context.Context, accountID uint, resourceID string) (bool, error) {
	var count int64
	err := e.DB.WithContext(ctx).Model(&models.ResourceGrant{}).
		Where("account_id = ? AND resource_id = ?", accountID, resourceID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Grant records ownership of a resource. Called when an owner creates
// a POI; duplicate grants are ignored.
func (e *Engine) Grant(ctx context.Context, accountID uint, resourceID string) error {
	grant := models.ResourceGrant{AccountID: accountID, ResourceID: resourceID}
	tx := e.DB.WithContext(ctx).
		Where("account_id = ? AND resource_id = ?", accountID, resourceID).
		FirstOrCreate(&grant)
	return tx.Error
}
