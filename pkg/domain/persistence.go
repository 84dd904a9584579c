package domain

import (
	"context"
	"errors"
)

// Persistence errors shared by all plan store backends.
var (
	ErrNotFound       = errors.New("plan not found")
	ErrDuplicateLabel = errors.New("plan label already in use")
)

// PlanStore is the persistence collaborator that accepts finished plans.
type PlanStore interface {
	Save(ctx context.Context, plan *Plan) (PlanRecord, error)
	Get(ctx context.Context, id string) (PlanRecord, error)
	List(ctx context.Context) ([]PlanRecord, error)
}
