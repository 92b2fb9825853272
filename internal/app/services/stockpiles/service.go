package stockpiles

import (
	"context"
	"errors"
	"fmt"

	"github.com/hangarlink/market_layer/internal/app/domain/stockpile"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

// ErrInvalidQuantity is returned for a non-positive desired quantity.
var ErrInvalidQuantity = errors.New("desired quantity must be positive")

// Service tracks stockpile targets against asset snapshots.
type Service struct {
	store  storage.StockpileStore
	prices storage.PriceStore
	log    *logger.Logger
}

// New constructs a stockpile service.
func New(store storage.StockpileStore, prices storage.PriceStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("stockpiles")
	}
	return &Service{store: store, prices: prices, log: log}
}

// SetMarker creates or updates a target for an item type at a location.
func (s *Service) SetMarker(ctx context.Context, ownerID int64, m stockpile.Marker) (stockpile.Marker, error) {
	if m.DesiredQuantity <= 0 {
		return stockpile.Marker{}, ErrInvalidQuantity
	}
	if m.ItemTypeID <= 0 || m.LocationID <= 0 {
		return stockpile.Marker{}, fmt.Errorf("item type and location are required")
	}
	m.OwnerID = ownerID

	saved, err := s.store.UpsertMarker(ctx, m)
	if err != nil {
		return stockpile.Marker{}, err
	}
	s.log.WithField("marker_id", saved.ID).
		WithField("owner_id", ownerID).
		WithField("item_type_id", m.ItemTypeID).
		WithField("desired", m.DesiredQuantity).
		Info("stockpile marker set")
	return saved, nil
}

// DeleteMarker removes a target, owner only.
func (s *Service) DeleteMarker(ctx context.Context, ownerID int64, markerID string) error {
	return s.store.DeleteMarker(ctx, markerID, ownerID)
}

// ListMarkers returns the owner's targets.
func (s *Service) ListMarkers(ctx context.Context, ownerID int64) ([]stockpile.Marker, error) {
	return s.store.ListMarkers(ctx, ownerID)
}

// RecordAssets replaces the owner's asset snapshot.
func (s *Service) RecordAssets(ctx context.Context, ownerID int64, assets []stockpile.Asset) error {
	if err := s.store.ReplaceAssets(ctx, ownerID, assets); err != nil {
		return err
	}
	s.log.WithField("owner_id", ownerID).WithField("rows", len(assets)).Info("asset snapshot recorded")
	return nil
}

// Deficits reports markers whose on-hand quantity is below target. The
// shortfall is valued at the reference buy price; an unpriced item values
// its shortfall at zero and flags the row so the gap is still visible.
func (s *Service) Deficits(ctx context.Context, ownerID int64) ([]stockpile.Deficit, error) {
	markers, err := s.store.ListMarkers(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(markers) == 0 {
		return []stockpile.Deficit{}, nil
	}

	assets, err := s.store.ListAssets(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	itemTypeIDs := make([]int64, 0, len(markers))
	for _, m := range markers {
		itemTypeIDs = append(itemTypeIDs, m.ItemTypeID)
	}
	priceRows, err := s.prices.ListPrices(ctx, itemTypeIDs)
	if err != nil {
		return nil, err
	}
	buyPrices := make(map[int64]int64, len(priceRows))
	for _, p := range priceRows {
		buyPrices[p.ItemTypeID] = p.BuyPrice
	}

	out := make([]stockpile.Deficit, 0)
	for _, m := range markers {
		onHand := onHandFor(m, assets)
		delta := onHand - m.DesiredQuantity
		if delta >= 0 {
			continue
		}
		deficit := -delta
		buyPrice, priced := buyPrices[m.ItemTypeID]
		out = append(out, stockpile.Deficit{
			ItemTypeID:       m.ItemTypeID,
			ItemTypeName:     m.ItemTypeName,
			LocationID:       m.LocationID,
			Desired:          m.DesiredQuantity,
			OnHand:           onHand,
			Deficit:          deficit,
			DeficitValue:     deficit * buyPrice,
			PriceUnavailable: !priced,
		})
	}
	return out, nil
}

func onHandFor(m stockpile.Marker, assets []stockpile.Asset) int64 {
	var total int64
	for _, a := range assets {
		if a.LocationID != m.LocationID || a.ItemTypeID != m.ItemTypeID {
			continue
		}
		if m.ContainerID != nil && (a.ContainerID == nil || *a.ContainerID != *m.ContainerID) {
			continue
		}
		if m.DivisionNumber != nil && (a.DivisionNumber == nil || *a.DivisionNumber != *m.DivisionNumber) {
			continue
		}
		total += a.Quantity
	}
	return total
}
