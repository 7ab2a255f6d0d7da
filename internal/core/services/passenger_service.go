package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/dto"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var (
	ErrPassengerNotFound = fmt.Errorf("passenger %w", apperrors.ErrNotFound)
)

type passengerService struct {
	BaseService
	ledgerRepo    portsrepo.LedgerRepositoryFacade
	referenceRepo portsrepo.ReferenceReader
	now           func() time.Time
}

// NewPassengerService creates a new passenger service.
func NewPassengerService(ledgerRepo portsrepo.LedgerRepositoryFacade, referenceRepo portsrepo.ReferenceReader) portssvc.PassengerSvcFacade {
	return &passengerService{
		ledgerRepo:    ledgerRepo,
		referenceRepo: referenceRepo,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

var _ portssvc.PassengerSvcFacade = (*passengerService)(nil)

func (s *passengerService) RegisterPassenger(ctx context.Context, req dto.RegisterPassengerRequest) (*domain.Passenger, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, apperrors.NewValidationError("fullName", "is required")
	}
	if req.OpeningBalance.IsNegative() {
		return nil, apperrors.NewValidationError("openingBalance", "cannot be negative")
	}
	if !domain.HasMoneyScale(req.OpeningBalance) {
		return nil, apperrors.NewValidationError("openingBalance", "must have at most 2 decimal places")
	}
	if req.LegacyID != nil && strings.TrimSpace(*req.LegacyID) == "" {
		req.LegacyID = nil
	}
	if req.RouteID != nil {
		route, err := s.referenceRepo.FindRouteByID(ctx, *req.RouteID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidationError("routeId", "unknown route")
		}
		if err != nil {
			return nil, err
		}
		if !route.IsActive {
			return nil, apperrors.NewValidationError("routeId", "route is not active")
		}
	}

	now := s.now()
	passenger := domain.Passenger{
		PassengerID:    uuid.NewString(),
		LegacyID:       req.LegacyID,
		FullName:       fullName,
		Ministry:       strings.TrimSpace(req.Ministry),
		BoardingArea:   strings.TrimSpace(req.BoardingArea),
		RouteID:        req.RouteID,
		OpeningBalance: req.OpeningBalance,
		CurrentBalance: req.OpeningBalance,
		IsActive:       true,
		Timestamps:     domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	if err := s.ledgerRepo.SavePassenger(ctx, passenger); err != nil {
		if errors.Is(err, apperrors.ErrDuplicate) {
			return nil, apperrors.NewValidationError("legacyId", "a passenger with this legacy id already exists")
		}
		s.LogError(ctx, err, "Failed to save passenger")
		return nil, err
	}

	s.LogInfo(ctx, "Passenger registered",
		slog.String("passenger_id", passenger.PassengerID),
		slog.String("opening_balance", passenger.OpeningBalance.StringFixed(2)))
	return &passenger, nil
}

func (s *passengerService) DeactivatePassenger(ctx context.Context, passengerID string) error {
	return s.setActive(ctx, passengerID, false)
}

func (s *passengerService) RestorePassenger(ctx context.Context, passengerID string) error {
	return s.setActive(ctx, passengerID, true)
}

// setActive never touches the ledger; history of a deactivated passenger stays readable.
func (s *passengerService) setActive(ctx context.Context, passengerID string, active bool) error {
	err := s.ledgerRepo.SetPassengerActive(ctx, passengerID, active, s.now())
	if errors.Is(err, apperrors.ErrNotFound) {
		return ErrPassengerNotFound
	}
	if err != nil {
		s.LogError(ctx, err, "Failed to update passenger status", slog.String("passenger_id", passengerID))
		return err
	}
	s.LogInfo(ctx, "Passenger status updated", slog.String("passenger_id", passengerID), slog.Bool("active", active))
	return nil
}

func (s *passengerService) GetPassenger(ctx context.Context, passengerID string) (*domain.Passenger, error) {
	passenger, err := s.ledgerRepo.FindPassengerByID(ctx, passengerID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrPassengerNotFound
	}
	return passenger, err
}

func (s *passengerService) FindPassengerByLegacyID(ctx context.Context, legacyID string) (*domain.Passenger, error) {
	if strings.TrimSpace(legacyID) == "" {
		return nil, apperrors.NewValidationError("legacyId", "is required")
	}
	passenger, err := s.ledgerRepo.FindPassengerByLegacyID(ctx, legacyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrPassengerNotFound
	}
	return passenger, err
}

func (s *passengerService) GetTransactionsByPassenger(ctx context.Context, passengerID string, limit int) ([]domain.Transaction, error) {
	if _, err := s.GetPassenger(ctx, passengerID); err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListTransactionsByPassenger(ctx, passengerID, clampLimit(limit))
}

func (s *passengerService) GetTransactionsByConductor(ctx context.Context, conductorID string, limit int) ([]domain.Transaction, error) {
	if strings.TrimSpace(conductorID) == "" {
		return nil, apperrors.NewValidationError("conductorId", "is required")
	}
	return s.ledgerRepo.ListTransactionsByConductor(ctx, conductorID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
