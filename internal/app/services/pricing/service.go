package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

// ErrInvalidPrice is returned for a negative price.
var ErrInvalidPrice = errors.New("price cannot be negative")

// Service manages reference market prices.
type Service struct {
	store storage.PriceStore
	log   *logger.Logger
}

// New constructs a pricing service.
func New(store storage.PriceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("pricing")
	}
	return &Service{store: store, log: log}
}

// Upsert records reference prices for an item type.
func (s *Service) Upsert(ctx context.Context, p pricing.ItemPrice) (pricing.ItemPrice, error) {
	if p.ItemTypeID <= 0 {
		return pricing.ItemPrice{}, fmt.Errorf("item type is required")
	}
	if p.BuyPrice < 0 || p.SellPrice < 0 {
		return pricing.ItemPrice{}, ErrInvalidPrice
	}
	return s.store.UpsertPrice(ctx, p)
}

// Get fetches prices for one item type.
func (s *Service) Get(ctx context.Context, itemTypeID int64) (pricing.ItemPrice, error) {
	return s.store.GetPrice(ctx, itemTypeID)
}

// List fetches prices for the given item types, or all known prices when
// none are given.
func (s *Service) List(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error) {
	return s.store.ListPrices(ctx, itemTypeIDs)
}
