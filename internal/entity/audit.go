package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records who did what to which resource. Writes are
// fire-and-forget from the caller's point of view; the audit worker
// drains a queue into this table.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"actor_id"`
	Action     string    `gorm:"size:50;not null" json:"action"`
	ResourceID string    `gorm:"size:64" json:"resource_id"`
	Details    string    `gorm:"size:255" json:"details"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (a *AuditLog) TableName() string {
	return "audit_logs"
}
