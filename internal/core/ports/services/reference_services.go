package services

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// ReferenceSvc reads the routes and conductors maintained outside the ledger
type ReferenceSvc interface {
	GetRoute(ctx context.Context, routeID string) (*domain.Route, error)
	GetConductor(ctx context.Context, conductorID string) (*domain.Conductor, error)
}
