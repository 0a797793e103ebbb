package domain

import "context"

type Service interface {
	ComputeNetRevenue(ctx context.Context, req Request) (*NetRevenue, error)
}
