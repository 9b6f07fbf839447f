package permission

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/wanderatlas/tourism_admin/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.ResourceGrant{}))
	return NewEngine(db)
}

func TestHas_PlatformAdminShortCircuits(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	admin := &models.Account{Role: models.RolePlatformAdmin, Permissions: models.PermissionSet{}}

	assert.True(t, e.Has(admin, CapUsers, ActionManage))
	assert.True(t, e.Has(admin, CapSettings, ActionDelete))
	assert.True(t, e.Has(admin, Capability("unknown"), Action("whatever")))
}

func TestHas_FailClosed(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	acc := &models.Account{
		Role: models.RoleEditor,
		Permissions: models.PermissionSet{
			"pois": {"update": true, "delete": false},
		},
	}

	tests := []struct {
		name   string
		cap    Capability
		action Action
		want   bool
	}{
		{"granted leaf", CapPOIs, ActionUpdate, true},
		{"explicit false leaf", CapPOIs, ActionDelete, false},
		{"missing action", CapPOIs, ActionExport, false},
		{"missing capability", CapUsers, ActionView, false},
		{"unknown capability", Capability("tours"), ActionView, false},
		{"unknown action", CapPOIs, Action("publish"), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, e.Has(acc, tt.cap, tt.action))
		})
	}
}

func TestHas_NilAccountAndEmptySet(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	assert.False(t, e.Has(nil, CapPOIs, ActionView))
	assert.False(t, e.Has(&models.Account{Role: models.RoleReviewer}, CapPOIs, ActionView))
}

func TestCanAccessResource_OwnershipConjunction(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	owner := &models.Account{
		ID:          11,
		Role:        models.RolePOIOwner,
		Permissions: TemplateFor(models.RolePOIOwner),
	}

	// Permission alone is not enough without a grant.
	ok, err := e.CanAccessResource(ctx, owner, CapPOIs, ActionUpdate, "poi-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.Grant(ctx, owner.ID, "poi-1"))

	ok, err = e.CanAccessResource(ctx, owner, CapPOIs, ActionUpdate, "poi-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// The grant is per resource.
	ok, err = e.CanAccessResource(ctx, owner, CapPOIs, ActionUpdate, "poi-2")
	require.NoError(t, err)
	assert.False(t, ok)

	// No RBAC permission means the grant never gets consulted.
	noPerm := &models.Account{ID: 11, Role: models.RolePOIOwner, Permissions: models.PermissionSet{}}
	ok, err = e.CanAccessResource(ctx, noPerm, CapPOIs, ActionUpdate, "poi-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCanAccessResource_EditorAndAdminBypassOwnership(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	editor := &models.Account{ID: 21, Role: models.RoleEditor, Permissions: TemplateFor(models.RoleEditor)}
	ok, err := e.CanAccessResource(ctx, editor, CapPOIs, ActionUpdate, "poi-ungranted")
	require.NoError(t, err)
	assert.True(t, ok)

	admin := &models.Account{ID: 22, Role: models.RolePlatformAdmin}
	ok, err = e.CanAccessResource(ctx, admin, CapPOIs, ActionDelete, "poi-ungranted")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGrant_Idempotent(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Grant(ctx, 5, "poi-9"))
	require.NoError(t, e.Grant(ctx, 5, "poi-9"))

	var count int64
	require.NoError(t, e.DB.Model(&models.ResourceGrant{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTemplateFor_RolesDiffer(t *testing.T) {
	t.Parallel()

	assert.True(t, TemplateFor(models.RoleEditor)["pois"]["delete"])
	assert.False(t, TemplateFor(models.RoleReviewer)["pois"]["update"])
	assert.True(t, TemplateFor(models.RoleReviewer)["reviews"]["delete"])
	assert.False(t, TemplateFor(models.RolePOIOwner)["users"]["view"])
	assert.Empty(t, TemplateFor(models.Role("bogus")))
}

func TestTemplateFor_ReturnsFreshCopies(t *testing.T) {
	t.Parallel()

	a := TemplateFor(models.RoleEditor)
	a["pois"]["delete"] = false

	b := TemplateFor(models.RoleEditor)
	assert.True(t, b["pois"]["delete"])
}
