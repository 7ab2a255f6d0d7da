package pgsql

import (
	"context"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	"github.com/jackc/pgx/v5/pgxpool"
)

// reportingRepository implements the ReportingRepository interface
type reportingRepository struct {
	BaseRepository
}

// newReportingRepository creates a new reporting repository
func newReportingRepository(db *pgxpool.Pool) portsrepo.ReportingRepository {
	return &reportingRepository{
		BaseRepository: BaseRepository{Pool: db},
	}
}

// GetConductorAggregates buckets a conductor's entries by local day, hour and type.
// Offline entries are bucketed by when they were recorded on the device.
func (r *reportingRepository) GetConductorAggregates(ctx context.Context, conductorID string, from, to time.Time, loc *time.Location) ([]domain.LedgerAggregate, error) {
	query := `
		WITH entries AS (
			SELECT COALESCE(recorded_at, transaction_date) AT TIME ZONE $4 AS local_ts,
			       transaction_type, amount, is_offline
			FROM transactions
			WHERE conductor_id = $1
			  AND COALESCE(recorded_at, transaction_date) >= $2
			  AND COALESCE(recorded_at, transaction_date) < $3
		)
		SELECT
			date_trunc('day', local_ts)::date AS day,
			EXTRACT(HOUR FROM local_ts)::int AS hour,
			transaction_type,
			COUNT(*) AS entry_count,
			COALESCE(SUM(amount), 0) AS total,
			COUNT(*) FILTER (WHERE is_offline) AS offline_count
		FROM entries
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3
	`

	rows, err := r.Pool.Query(ctx, query, conductorID, from, to, zoneName(loc))
	if err != nil {
		return nil, translateError("error querying conductor aggregates", err)
	}
	defer rows.Close()

	var result []domain.LedgerAggregate
	for rows.Next() {
		var agg domain.LedgerAggregate
		var txnType string
		if err := rows.Scan(&agg.Day, &agg.Hour, &txnType, &agg.Count, &agg.Total, &agg.OfflineCount); err != nil {
			return nil, translateError("error scanning conductor aggregate", err)
		}
		agg.TransactionType = domain.TransactionType(txnType)
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("error iterating conductor aggregates", err)
	}
	return result, nil
}

// zoneName returns an IANA name Postgres understands.
func zoneName(loc *time.Location) string {
	if loc == nil || loc.String() == "Local" {
		return "UTC"
	}
	return loc.String()
}
