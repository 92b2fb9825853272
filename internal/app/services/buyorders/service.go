package buyorders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hangarlink/market_layer/internal/app/domain/buyorder"
	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

var (
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice is returned for a non-positive max price.
	ErrInvalidPrice = errors.New("max price must be positive")
)

// Input carries the caller-supplied fields of a buy order upsert.
type Input struct {
	ItemTypeID      int64
	ItemTypeName    string
	LocationID      int64
	LocationName    string
	Quantity        int64
	MaxPricePerUnit int64
	Notes           *string
}

// Service manages standing buy orders and their demand aggregation.
type Service struct {
	store       storage.BuyOrderStore
	permissions storage.PermissionStore
	log         *logger.Logger
}

// New constructs a buy order service.
func New(store storage.BuyOrderStore, permissions storage.PermissionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("buyorders")
	}
	return &Service{store: store, permissions: permissions, log: log}
}

// Upsert creates or replaces the buyer's order for an item type at a
// location.
func (s *Service) Upsert(ctx context.Context, buyerID int64, buyerName string, in Input) (buyorder.BuyOrder, error) {
	if in.Quantity <= 0 {
		return buyorder.BuyOrder{}, ErrInvalidQuantity
	}
	if in.MaxPricePerUnit <= 0 {
		return buyorder.BuyOrder{}, ErrInvalidPrice
	}
	if in.ItemTypeID <= 0 || in.LocationID <= 0 {
		return buyorder.BuyOrder{}, fmt.Errorf("item type and location are required")
	}
	if in.Notes != nil && strings.TrimSpace(*in.Notes) == "" {
		in.Notes = nil
	}

	o, err := s.store.UpsertBuyOrder(ctx, buyorder.BuyOrder{
		BuyerID:         buyerID,
		BuyerName:       buyerName,
		ItemTypeID:      in.ItemTypeID,
		ItemTypeName:    in.ItemTypeName,
		LocationID:      in.LocationID,
		LocationName:    in.LocationName,
		Quantity:        in.Quantity,
		MaxPricePerUnit: in.MaxPricePerUnit,
		Notes:           in.Notes,
	})
	if err != nil {
		return buyorder.BuyOrder{}, err
	}
	s.log.WithField("order_id", o.ID).
		WithField("buyer_id", buyerID).
		WithField("item_type_id", o.ItemTypeID).
		Info("buy order upserted")
	return o, nil
}

// Delete soft-deletes an order, owner only.
func (s *Service) Delete(ctx context.Context, buyerID int64, orderID string) error {
	if err := s.store.DeactivateBuyOrder(ctx, orderID, buyerID); err != nil {
		return err
	}
	s.log.WithField("order_id", orderID).WithField("buyer_id", buyerID).Info("buy order removed")
	return nil
}

// ListForBuyer returns the buyer's active orders.
func (s *Service) ListForBuyer(ctx context.Context, buyerID int64) ([]buyorder.BuyOrder, error) {
	return s.store.ListBuyOrdersByBuyer(ctx, buyerID)
}

// Demand aggregates open orders of buyers who granted the seller buy
// order visibility, summed per item type and location and sorted by
// total quantity descending.
func (s *Service) Demand(ctx context.Context, sellerID int64) ([]buyorder.DemandEntry, error) {
	buyerIDs, err := s.permissions.ListGrantors(ctx, sellerID, contact.ServiceBuyOrders)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOpenBuyOrders(ctx, buyerIDs)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		itemTypeID int64
		locationID int64
	}
	groups := make(map[groupKey]*buyorder.DemandEntry)
	for _, o := range orders {
		key := groupKey{o.ItemTypeID, o.LocationID}
		entry, ok := groups[key]
		if !ok {
			entry = &buyorder.DemandEntry{
				ItemTypeID:   o.ItemTypeID,
				ItemTypeName: o.ItemTypeName,
				LocationID:   o.LocationID,
				LocationName: o.LocationName,
			}
			groups[key] = entry
		}
		entry.TotalQuantity += o.Quantity
		entry.OrderCount++
		if o.MaxPricePerUnit > entry.BestPricePerUnit {
			entry.BestPricePerUnit = o.MaxPricePerUnit
		}
	}

	out := make([]buyorder.DemandEntry, 0, len(groups))
	for _, entry := range groups {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalQuantity != out[j].TotalQuantity {
			return out[i].TotalQuantity > out[j].TotalQuantity
		}
		if out[i].ItemTypeID != out[j].ItemTypeID {
			return out[i].ItemTypeID < out[j].ItemTypeID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, nil
}
