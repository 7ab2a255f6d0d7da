package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/SscSPs/fare_collection_app/internal/apperrors"
	"github.com/SscSPs/fare_collection_app/internal/core/domain"
	portsrepo "github.com/SscSPs/fare_collection_app/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
)

var (
	ErrRouteNotFound     = fmt.Errorf("route %w", apperrors.ErrNotFound)
	ErrConductorNotFound = fmt.Errorf("conductor %w", apperrors.ErrNotFound)
)

type referenceService struct {
	referenceRepo portsrepo.ReferenceReader
}

// NewReferenceService creates a read-only service over routes and conductors.
func NewReferenceService(referenceRepo portsrepo.ReferenceReader) portssvc.ReferenceSvc {
	return &referenceService{referenceRepo: referenceRepo}
}

var _ portssvc.ReferenceSvc = (*referenceService)(nil)

func (s *referenceService) GetRoute(ctx context.Context, routeID string) (*domain.Route, error) {
	route, err := s.referenceRepo.FindRouteByID(ctx, routeID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrRouteNotFound
	}
	return route, err
}

func (s *referenceService) GetConductor(ctx context.Context, conductorID string) (*domain.Conductor, error) {
	conductor, err := s.referenceRepo.FindConductorByID(ctx, conductorID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, ErrConductorNotFound
	}
	return conductor, err
}
