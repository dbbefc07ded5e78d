package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
	"parkingspace/internal/repository"
)

type PricingService struct {
	pricingRepo repository.PricingRepository
	logger      *logrus.Logger
}

func NewPricingService(pricingRepo repository.PricingRepository, logger *logrus.Logger) *PricingService {
	return &PricingService{pricingRepo: pricingRepo, logger: logger}
}

func (s *PricingService) GetCurrentPricing(ctx context.Context) (*domain.PricingTable, error) {
	return s.pricingRepo.Get(ctx)
}

// UpdatePricing overwrites both rates. The pricing row must already exist.
func (s *PricingService) UpdatePricing(ctx context.Context, actor domain.Actor, dto domain.UpdatePricingDTO) (*domain.PricingTable, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	table, err := s.pricingRepo.Update(ctx, *dto.Two, *dto.Four)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"two_wheeler_rate":  table.TwoWheelerRate,
		"four_wheeler_rate": table.FourWheelerRate,
		"updated_by":        actor.UserID,
	}).Info("Pricing updated")
	return table, nil
}
