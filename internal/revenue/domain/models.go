package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type EntityType string

const (
	EntityBooking       EntityType = "booking"
	EntityRental        EntityType = "rental"
	EntityAccommodation EntityType = "accommodation"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityBooking, EntityRental, EntityAccommodation:
		return true
	default:
		return false
	}
}

// ParseEntityType accepts the entity type in any casing.
func ParseEntityType(raw string) (EntityType, bool) {
	t := EntityType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// EntityRef identifies the business entity a snapshot belongs to.
type EntityRef struct {
	Type EntityType   `json:"entity_type"`
	ID   snowflake.ID `json:"entity_id"`
}

// RevenueItem is the derived revenue decomposition of one entity. Every
// column except the identity and timestamps is rewritten on each snapshot.
type RevenueItem struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	EntityType        EntityType        `gorm:"type:text;not null;uniqueIndex:ux_revenue_items_entity,priority:1" json:"entity_type"`
	EntityID          snowflake.ID      `gorm:"not null;uniqueIndex:ux_revenue_items_entity,priority:2" json:"entity_id"`
	ServiceType       string            `gorm:"type:text;not null" json:"service_type"`
	PaymentMethod     string            `gorm:"type:text;not null" json:"payment_method"`
	Gross             decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"gross"`
	Commission        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"commission"`
	Tax               decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"tax"`
	Insurance         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"insurance"`
	Equipment         decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"equipment"`
	PaymentFee        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"payment_fee"`
	Net               decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"net"`
	SettingsVersionID *snowflake.ID     `json:"settings_version_id"`
	Components        datatypes.JSONMap `gorm:"type:json" json:"components"`
	RecognizedAt      time.Time         `gorm:"not null;index" json:"recognized_at"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (RevenueItem) TableName() string { return "revenue_items" }

// Ref returns the identity of the snapshotted entity.
func (i RevenueItem) Ref() EntityRef {
	return EntityRef{Type: i.EntityType, ID: i.EntityID}
}

type Outcome string

const (
	OutcomeWritten Outcome = "written"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

const (
	ReasonDisabled       = "disabled"
	ReasonCanary         = "canary"
	ReasonNotFound       = "entity_not_found"
	ReasonNotCompleted   = "not_completed"
	ReasonInvalidEntity  = "invalid_entity"
	ReasonStorage        = "storage_error"
	ReasonSettingsAbsent = "settings_absent"
)

// Result reports what a snapshot attempt did.
type Result struct {
	Outcome Outcome      `json:"outcome"`
	Reason  string       `json:"reason,omitempty"`
	Item    *RevenueItem `json:"item,omitempty"`
}

type RebuildResult struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
