package domain

import (
	"context"
	"time"
)

type Service interface {
	WriteSnapshot(ctx context.Context, ref EntityRef) (Result, error)
	Submit(ctx context.Context, ref EntityRef) bool
	RebuildSnapshots(ctx context.Context, from, to time.Time) (RebuildResult, error)
	Get(ctx context.Context, ref EntityRef) (*RevenueItem, error)
}

// Sampler returns a uniform draw in [0, 100).
type Sampler func() int
