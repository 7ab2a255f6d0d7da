package repositories

import (
	"context"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// ReportingRepository defines operations for retrieving conductor report data
type ReportingRepository interface {
	// GetConductorAggregates buckets a conductor's entries recorded in [from, to) by day, hour and type,
	// with days and hours taken in loc
	GetConductorAggregates(ctx context.Context, conductorID string, from, to time.Time, loc *time.Location) ([]domain.LedgerAggregate, error)
}
