package repository

import (
	"context"

	"github.com/plannivo/finance/internal/revenue/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert writes the snapshot keyed by (entity_type, entity_id). A conflicting
// row keeps its id and created_at; every derived column is replaced.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, item *domain.RevenueItem) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "entity_type"}, {Name: "entity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"service_type",
			"payment_method",
			"gross",
			"commission",
			"tax",
			"insurance",
			"equipment",
			"payment_fee",
			"net",
			"settings_version_id",
			"components",
			"recognized_at",
			"updated_at",
		}),
	}).Create(item).Error
}

func (r *repo) FindByEntity(ctx context.Context, db *gorm.DB, ref domain.EntityRef) (*domain.RevenueItem, error) {
	var item domain.RevenueItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, entity_type, entity_id, service_type, payment_method, gross, commission, tax, insurance,
		        equipment, payment_fee, net, settings_version_id, components, recognized_at, created_at, updated_at
		 FROM revenue_items
		 WHERE entity_type = ? AND entity_id = ?`,
		ref.Type,
		ref.ID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
