package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem ActorType = "system"
	ActorTypeAdmin  ActorType = "admin"
)

const (
	ActionBookingDeleted     = "booking.deleted"
	ActionTransactionCreated = "transaction.created"
	ActionTransactionDeleted = "transaction.deleted"
	ActionBalanceCorrected   = "balance.corrected"
	ActionSettingsActivated  = "settings.activated"
)

// AuditLog is an append-only record of an administrative or financial action.
// SubjectID is the user the action concerns, when there is one.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id"`
	Action     string            `gorm:"type:text;not null;index:ix_audit_logs_action_subject,priority:1" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id"`
	SubjectID  *snowflake.ID     `gorm:"index:ix_audit_logs_action_subject,priority:2" json:"subject_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
