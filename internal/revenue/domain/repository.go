package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, item *RevenueItem) error
	FindByEntity(ctx context.Context, db *gorm.DB, ref EntityRef) (*RevenueItem, error)
}
