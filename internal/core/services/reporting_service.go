package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
)

// maxReportDays bounds a range report.
const maxReportDays = 366

// reportingService implements the ReportingService interface
type reportingService struct {
	BaseService
	reportingRepo portsrepo.ReportingRepository
	loc           *time.Location
}

// ReportingServiceOption is a functional option for configuring the reporting service
type ReportingServiceOption func(*reportingService)

// WithReportLocation sets the time zone that days and hours are taken in.
func WithReportLocation(loc *time.Location) ReportingServiceOption {
	return func(s *reportingService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewReportingService creates a new reporting service with the provided options
func NewReportingService(repo portsrepo.ReportingRepository, options ...ReportingServiceOption) portssvc.ReportingService {
	svc := &reportingService{
		reportingRepo: repo,
		loc:           time.UTC,
	}

	for _, option := range options {
		option(svc)
	}

	return svc
}

// Ensure reportingService implements the ReportingService interface
var _ portssvc.ReportingService = (*reportingService)(nil)

// GetDailySummary summarizes one day with 24 hourly buckets.
func (s *reportingService) GetDailySummary(ctx context.Context, conductorID string, date time.Time) (*domain.DailySummary, error) {
	if strings.TrimSpace(conductorID) == "" {
		return nil, apperrors.NewValidationError("conductorId", "is required")
	}

	day := s.startOfDay(date)
	aggs, err := s.reportingRepo.GetConductorAggregates(ctx, conductorID, day, day.AddDate(0, 0, 1), s.loc)
	if err != nil {
		s.LogError(ctx, err, "Failed to load daily aggregates", slog.String("conductor_id", conductorID))
		return nil, err
	}

	summary := &domain.DailySummary{
		ConductorID: conductorID,
		Date:        day,
		Hourly:      make([]domain.HourlyBucket, 24),
	}
	for h := range summary.Hourly {
		summary.Hourly[h].Hour = h
	}
	for _, agg := range aggs {
		summary.Totals.Add(agg)
		if agg.Hour >= 0 && agg.Hour < 24 {
			summary.Hourly[agg.Hour].Add(agg)
		}
	}
	return summary, nil
}

// GetDateRangeSummary summarizes the inclusive range [start, end] with one row per day.
func (s *reportingService) GetDateRangeSummary(ctx context.Context, conductorID string, start, end time.Time) (*domain.DateRangeSummary, error) {
	if strings.TrimSpace(conductorID) == "" {
		return nil, apperrors.NewValidationError("conductorId", "is required")
	}

	first, last := s.startOfDay(start), s.startOfDay(end)
	if last.Before(first) {
		return nil, apperrors.NewValidationError("endDate", "must not be before startDate")
	}
	days := int(last.Sub(first).Hours()/24+0.5) + 1
	if days > maxReportDays {
		return nil, apperrors.NewValidationError("endDate", fmt.Sprintf("range cannot exceed %d days", maxReportDays))
	}

	aggs, err := s.reportingRepo.GetConductorAggregates(ctx, conductorID, first, last.AddDate(0, 0, 1), s.loc)
	if err != nil {
		s.LogError(ctx, err, "Failed to load range aggregates", slog.String("conductor_id", conductorID))
		return nil, err
	}

	summary := &domain.DateRangeSummary{
		ConductorID: conductorID,
		StartDate:   first,
		EndDate:     last,
		Days:        make([]domain.DailyRow, 0, days),
	}
	rowByDay := make(map[string]int, days)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		rowByDay[d.Format(time.DateOnly)] = len(summary.Days)
		summary.Days = append(summary.Days, domain.DailyRow{Date: d})
	}

	for _, agg := range aggs {
		summary.Totals.Add(agg)
		if i, ok := rowByDay[agg.Day.Format(time.DateOnly)]; ok {
			summary.Days[i].Add(agg)
		}
	}
	return summary, nil
}

// GetWeeklySummary summarizes the Monday-to-Sunday week containing day.
func (s *reportingService) GetWeeklySummary(ctx context.Context, conductorID string, day time.Time) (*domain.DateRangeSummary, error) {
	d := s.startOfDay(day)
	offset := (int(d.Weekday()) + 6) % 7
	monday := d.AddDate(0, 0, -offset)
	return s.GetDateRangeSummary(ctx, conductorID, monday, monday.AddDate(0, 0, 6))
}

// GetMonthlySummary summarizes a calendar month.
func (s *reportingService) GetMonthlySummary(ctx context.Context, conductorID string, year int, month time.Month) (*domain.DateRangeSummary, error) {
	if month < time.January || month > time.December {
		return nil, apperrors.NewValidationError("month", "must be between 1 and 12")
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, s.loc)
	return s.GetDateRangeSummary(ctx, conductorID, first, first.AddDate(0, 1, -1))
}

// startOfDay takes the calendar date of t as written and returns its midnight in the report zone.
func (s *reportingService) startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}
