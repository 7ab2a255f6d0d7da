package pgsql

import (
	"context"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgxReferenceRepository struct {
	BaseRepository
}

func newPgxReferenceRepository(pool *pgxpool.Pool) *PgxReferenceRepository {
	return &PgxReferenceRepository{BaseRepository: BaseRepository{Pool: pool}}
}

var _ portsrepo.ReferenceReader = (*PgxReferenceRepository)(nil)

// FindRouteByID retrieves a route by its ID.
func (r *PgxReferenceRepository) FindRouteByID(ctx context.Context, routeID string) (*domain.Route, error) {
	var route domain.Route
	err := r.Pool.QueryRow(ctx,
		`SELECT route_id, name, base_fare, is_active FROM routes WHERE route_id = $1`, routeID,
	).Scan(&route.RouteID, &route.Name, &route.BaseFare, &route.IsActive)
	if err != nil {
		return nil, translateError("failed to find route "+routeID, err)
	}
	return &route, nil
}

// FindConductorByID retrieves a conductor by its ID.
func (r *PgxReferenceRepository) FindConductorByID(ctx context.Context, conductorID string) (*domain.Conductor, error) {
	var conductor domain.Conductor
	err := r.Pool.QueryRow(ctx,
		`SELECT conductor_id, full_name, assigned_route_id, is_active FROM conductors WHERE conductor_id = $1`, conductorID,
	).Scan(&conductor.ConductorID, &conductor.FullName, &conductor.AssignedRouteID, &conductor.IsActive)
	if err != nil {
		return nil, translateError("failed to find conductor "+conductorID, err)
	}
	return &conductor, nil
}
