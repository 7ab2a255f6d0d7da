package services

import (
	"context"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/core/domain"
)

// ReportingService defines operations for generating conductor reports
type ReportingService interface {
	// GetDailySummary summarizes a conductor's day with an hourly breakdown
	GetDailySummary(ctx context.Context, conductorID string, date time.Time) (*domain.DailySummary, error)

	// GetDateRangeSummary summarizes an inclusive range of days with one row per day
	GetDateRangeSummary(ctx context.Context, conductorID string, start, end time.Time) (*domain.DateRangeSummary, error)

	// GetWeeklySummary summarizes the Monday-to-Sunday week containing day
	GetWeeklySummary(ctx context.Context, conductorID string, day time.Time) (*domain.DateRangeSummary, error)

	// GetMonthlySummary summarizes a calendar month
	GetMonthlySummary(ctx context.Context, conductorID string, year int, month time.Month) (*domain.DateRangeSummary, error)
}
