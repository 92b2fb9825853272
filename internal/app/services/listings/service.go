package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/listing"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

var (
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidPrice is returned for a non-positive price.
	ErrInvalidPrice = errors.New("price must be positive")
	// ErrReservationConflict is returned when an owner's quantity rewrite
	// would drop below the quantity held by open purchases.
	ErrReservationConflict = errors.New("quantity conflicts with outstanding reservations")
)

// Input carries the caller-supplied fields of a listing upsert.
type Input struct {
	ItemTypeID   int64
	ItemTypeName string
	LocationID   int64
	LocationName string
	Quantity     int64
	PricePerUnit int64
	Notes        *string
}

// Service manages sale listings and their reservable quantity.
type Service struct {
	store       storage.ListingStore
	permissions storage.PermissionStore
	purchases   storage.PurchaseStore
	log         *logger.Logger
}

// New constructs a listing service.
func New(store storage.ListingStore, permissions storage.PermissionStore, purchases storage.PurchaseStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("listings")
	}
	return &Service{store: store, permissions: permissions, purchases: purchases, log: log}
}

// Upsert creates or replaces the seller's listing for an item type at a
// location. A soft-deleted row is reactivated. Rewriting the quantity of an
// existing row may not take it below what open purchases already hold.
func (s *Service) Upsert(ctx context.Context, sellerID int64, sellerName string, in Input) (listing.Listing, error) {
	if in.Quantity <= 0 {
		return listing.Listing{}, ErrInvalidQuantity
	}
	if in.PricePerUnit <= 0 {
		return listing.Listing{}, ErrInvalidPrice
	}
	if in.ItemTypeID <= 0 || in.LocationID <= 0 {
		return listing.Listing{}, fmt.Errorf("item type and location are required")
	}
	if in.Notes != nil && strings.TrimSpace(*in.Notes) == "" {
		in.Notes = nil
	}

	existing, err := s.store.FindListingByKey(ctx, sellerID, in.ItemTypeID, in.LocationID)
	switch {
	case err == nil:
		outstanding, err := s.purchases.SumOpenPurchaseQuantity(ctx, existing.ID)
		if err != nil {
			return listing.Listing{}, err
		}
		if in.Quantity < outstanding {
			return listing.Listing{}, fmt.Errorf("%w: %d reserved, %d offered", ErrReservationConflict, outstanding, in.Quantity)
		}
	case !errors.Is(err, storage.ErrNotFound):
		return listing.Listing{}, err
	}

	l, err := s.store.UpsertListing(ctx, listing.Listing{
		SellerID:          sellerID,
		SellerName:        sellerName,
		ItemTypeID:        in.ItemTypeID,
		ItemTypeName:      in.ItemTypeName,
		LocationID:        in.LocationID,
		LocationName:      in.LocationName,
		QuantityAvailable: in.Quantity,
		PricePerUnit:      in.PricePerUnit,
		Notes:             in.Notes,
	})
	if err != nil {
		return listing.Listing{}, err
	}
	s.log.WithField("listing_id", l.ID).
		WithField("seller_id", sellerID).
		WithField("item_type_id", l.ItemTypeID).
		WithField("quantity", l.QuantityAvailable).
		Info("listing upserted")
	return l, nil
}

// Delete soft-deletes a listing, owner only.
func (s *Service) Delete(ctx context.Context, sellerID int64, listingID string) error {
	if err := s.store.DeactivateListing(ctx, listingID, sellerID); err != nil {
		return err
	}
	s.log.WithField("listing_id", listingID).WithField("seller_id", sellerID).Info("listing removed")
	return nil
}

// ListForSeller returns the seller's active listings.
func (s *Service) ListForSeller(ctx context.Context, sellerID int64) ([]listing.Listing, error) {
	return s.store.ListListingsBySeller(ctx, sellerID)
}

// Browse returns active listings of sellers who granted the buyer access,
// excluding the buyer's own rows and exhausted rows.
func (s *Service) Browse(ctx context.Context, buyerID int64) ([]listing.Listing, error) {
	sellerIDs, err := s.permissions.ListGrantors(ctx, buyerID, contact.ServiceListings)
	if err != nil {
		return nil, err
	}
	return s.store.ListBrowsableListings(ctx, buyerID, sellerIDs)
}

// Get fetches one listing by id.
func (s *Service) Get(ctx context.Context, listingID string) (listing.Listing, error) {
	return s.store.GetListing(ctx, listingID)
}

// Reserve atomically takes quantity from a listing. Concurrent reserves
// against the same listing never take more than is available.
func (s *Service) Reserve(ctx context.Context, listingID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return s.store.AdjustListingQuantity(ctx, listingID, -qty)
}

// Release returns previously reserved quantity. A listing the seller
// deleted in the meantime is tolerated.
func (s *Service) Release(ctx context.Context, listingID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	err := s.store.AdjustListingQuantity(ctx, listingID, qty)
	if err != nil && errors.Is(err, storage.ErrNotFound) {
		s.log.WithField("listing_id", listingID).Warn("released quantity for missing listing")
		return nil
	}
	return err
}
