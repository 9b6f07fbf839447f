// Package audit appends one activity record per privileged action and
// keeps a bounded window of recent entries per actor.
package audit

import (
	"context"

	"gorm.io/gorm"

	"github.com/wanderatlas/tourism_admin/internal/logging"
	"github.com/wanderatlas/tourism_admin/internal/models"
)

// MaxEntriesPerActor bounds per-actor retention; the oldest rows are
// pruned in the same transaction as the insert.
const MaxEntriesPerActor = 100

type Meta struct {
	IP        string
	UserAgent string
}

type Logger struct {
	DB *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{DB: db}
}

// Record appends an entry and prunes beyond the retention window.
// Append failures are logged and swallowed: the audit trail is
// observability, not a transactional guarantee, and must never fail
// the action it describes.
func (l *Logger) Record(ctx context.Context, actorID uint, action, resource, resourceID string, meta Meta) {
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := models.ActivityLog{
			ActorID:    actorID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			IP:         meta.IP,
			UserAgent:  meta.UserAgent,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		var keepIDs []uint
		if err := tx.Model(&models.ActivityLog{}).
			Where("actor_id = ?", actorID).
			Order("created_at DESC, id DESC").
			Limit(MaxEntriesPerActor).
			Pluck("id", &keepIDs).Error; err != nil {
			return err
		}
		if len(keepIDs) < MaxEntriesPerActor {
			return nil
		}
		return tx.Where("actor_id = ? AND id NOT IN ?", actorID, keepIDs).
			Delete(&models.ActivityLog{}).Error
	})
	if err != nil {
		logging.FromContext(ctx).Error("audit_record_failed",
			"actor_id", actorID, "action", action, "error", err)
	}
}

// List returns an actor's entries most-recent-first.
func (l *Logger) List(ctx context.Context, actorID uint, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 || limit > MaxEntriesPerActor {
		limit = MaxEntriesPerActor
	}
	var entries []models.ActivityLog
	err := l.DB.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
