package repositories

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// ReferenceReader reads routes and conductors, which are maintained outside the ledger
type ReferenceReader interface {
	FindRouteByID(ctx context.Context, routeID string) (*domain.Route, error)
	FindConductorByID(ctx context.Context, conductorID string) (*domain.Conductor, error)
}
