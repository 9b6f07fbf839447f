package permission

import "github.com/wanderatlas/tourism_admin/internal/models"

// TemplateFor returns the default permission set for a role. The set
// is stored on the account at creation time and edited independently
// afterwards; changing an account's role does not re-apply the
// template unless explicitly requested.
func TemplateFor(role models.Role) models.PermissionSet {
	switch role {
	case models.RolePlatformAdmin:
		return models.PermissionSet{
			"pois":      {"view": true, "create": true, "update": true, "delete": true, "export": true},
			"reviews":   {"view": true, "create": true, "update": true, "delete": true},
			"users":     {"view": true, "create": true, "update": true, "delete": true, "manage": true},
			"analytics": {"view": true, "export": true},
			"media":     {"view": true, "create": true, "update": true, "delete": true},
			"settings":  {"view": true, "manage": true},
		}.Clone()
	case models.RoleEditor:
		return models.PermissionSet{
			"pois":      {"view": true, "create": true, "update": true, "delete": true, "export": true},
			"reviews":   {"view": true, "update": true, "delete": true},
			"analytics": {"view": true, "export": true},
			"media":     {"view": true, "create": true, "update": true, "delete": true},
		}.Clone()
	case models.RolePOIOwner:
		return models.PermissionSet{
			"pois":      {"view": true, "create": true, "update": true, "delete": true},
			"reviews":   {"view": true},
			"analytics": {"view": true},
			"media":     {"view": true, "create": true},
		}.Clone()
	case models.RoleReviewer:
		return models.PermissionSet{
			"pois":      {"view": true},
			"reviews":   {"view": true, "update": true, "delete": true},
			"analytics": {"view": true},
		}.Clone()
	default:
		return models.PermissionSet{}
	}
}
