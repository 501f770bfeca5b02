package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a fee mutation.
type AuditLog struct {
	ID           snowflake.ID   `gorm:"primaryKey" json:"id"`
	SubscriberID *snowflake.ID  `gorm:"index" json:"subscriber_id,omitempty"`
	ActorType    string         `gorm:"type:varchar(32);not null" json:"actor_type"`
	ActorID      *string        `json:"actor_id,omitempty"`
	Action       string         `gorm:"type:varchar(64);not null;index" json:"action"`
	TargetType   string         `gorm:"type:varchar(32);not null" json:"target_type"`
	TargetID     *string        `gorm:"index" json:"target_id,omitempty"`
	OldValue     datatypes.JSON `json:"old_value,omitempty"`
	NewValue     datatypes.JSON `json:"new_value,omitempty"`
	RequestID    *string        `json:"request_id,omitempty"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
