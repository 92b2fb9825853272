package purchases

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

var (
	// ErrSelfPurchase is returned when a buyer targets their own listing.
	ErrSelfPurchase = errors.New("cannot purchase your own listing")
	// ErrPermissionRequired is returned when the seller has not granted
	// the buyer listing access.
	ErrPermissionRequired = errors.New("seller has not granted access")
	// ErrInvalidQuantity is returned for a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidTransition is returned for a state change the machine
	// does not allow.
	ErrInvalidTransition = errors.New("invalid purchase state transition")
	// ErrNotSeller is returned when someone other than the seller drives
	// a seller-only transition.
	ErrNotSeller = errors.New("only the seller can perform this action")
	// ErrNotBuyer is returned when someone other than the buyer drives a
	// buyer-only transition.
	ErrNotBuyer = errors.New("only the buyer can perform this action")
	// ErrNotParticipant is returned when the actor is neither buyer nor
	// seller.
	ErrNotParticipant = errors.New("not a participant of this purchase")
)

// Service drives the purchase state machine over reserved listing quantity.
type Service struct {
	listings    storage.ListingStore
	store       storage.PurchaseStore
	permissions storage.PermissionStore
	log         *logger.Logger

	now func() time.Time

	// keyMu serializes contract-key lookup and purchase insertion so two
	// concurrent creates for one (buyer, location) group never mint two keys.
	keyMu sync.Mutex
}

// New constructs a purchase service.
func New(listings storage.ListingStore, store storage.PurchaseStore, permissions storage.PermissionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("purchases")
	}
	return &Service{listings: listings, store: store, permissions: permissions, log: log, now: time.Now}
}

// Create reserves quantity from a listing and records a pending purchase.
// Open purchases by the same buyer at the same location share one contract
// key; the first purchase of a group mints it.
func (s *Service) Create(ctx context.Context, buyerID int64, buyerName, listingID string, qty int64) (purchase.Purchase, error) {
	if qty <= 0 {
		return purchase.Purchase{}, ErrInvalidQuantity
	}

	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return purchase.Purchase{}, err
	}
	if !l.IsActive {
		return purchase.Purchase{}, fmt.Errorf("listing %s: %w", listingID, storage.ErrNotFound)
	}
	if l.SellerID == buyerID {
		return purchase.Purchase{}, ErrSelfPurchase
	}

	perm, err := s.permissions.GetPermission(ctx, l.SellerID, buyerID, contact.ServiceListings)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return purchase.Purchase{}, err
	}
	if err != nil || !perm.CanAccess {
		return purchase.Purchase{}, ErrPermissionRequired
	}

	if err := s.listings.AdjustListingQuantity(ctx, listingID, -qty); err != nil {
		return purchase.Purchase{}, err
	}

	s.keyMu.Lock()
	defer s.keyMu.Unlock()

	key, err := s.store.FindOpenContractKey(ctx, buyerID, l.LocationID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.release(ctx, listingID, qty)
			return purchase.Purchase{}, err
		}
		key = fmt.Sprintf("PT-%d-%d-%d", buyerID, l.LocationID, s.now().Unix())
	}

	created, err := s.store.CreatePurchase(ctx, purchase.Purchase{
		ListingID:    l.ID,
		BuyerID:      buyerID,
		BuyerName:    buyerName,
		SellerID:     l.SellerID,
		SellerName:   l.SellerName,
		ItemTypeID:   l.ItemTypeID,
		ItemTypeName: l.ItemTypeName,
		LocationID:   l.LocationID,
		LocationName: l.LocationName,
		Quantity:     qty,
		PricePerUnit: l.PricePerUnit,
		TotalPrice:   qty * l.PricePerUnit,
		ContractKey:  &key,
		Status:       purchase.StatusPending,
	})
	if err != nil {
		s.release(ctx, listingID, qty)
		return purchase.Purchase{}, err
	}
	s.log.WithField("purchase_id", created.ID).
		WithField("buyer_id", buyerID).
		WithField("listing_id", l.ID).
		WithField("quantity", qty).
		WithField("contract_key", key).
		Info("purchase created")
	return created, nil
}

// MarkContractCreated advances a pending purchase once the seller has
// issued the in-game contract. Every pending purchase of the same seller
// sharing the contract key advances with it. When the seller supplies the
// real in-game contract identifier it replaces the minted key across the
// group.
func (s *Service) MarkContractCreated(ctx context.Context, purchaseID string, actorID int64, contractKey *string) (purchase.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return purchase.Purchase{}, err
	}
	if p.SellerID != actorID {
		return purchase.Purchase{}, ErrNotSeller
	}
	if p.Status != purchase.StatusPending {
		return purchase.Purchase{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, purchase.StatusContractCreated)
	}

	group := []purchase.Purchase{p}
	if p.ContractKey != nil {
		all, err := s.store.ListPurchasesByContractKey(ctx, *p.ContractKey)
		if err != nil {
			return purchase.Purchase{}, err
		}
		group = all
	}
	for _, member := range group {
		if member.SellerID != actorID || member.Status != purchase.StatusPending {
			continue
		}
		member.Status = purchase.StatusContractCreated
		if contractKey != nil && *contractKey != "" {
			k := *contractKey
			member.ContractKey = &k
		}
		if _, err := s.store.UpdatePurchase(ctx, member); err != nil {
			return purchase.Purchase{}, err
		}
	}

	updated, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return purchase.Purchase{}, err
	}
	s.log.WithField("purchase_id", purchaseID).WithField("seller_id", actorID).Info("contract created")
	return updated, nil
}

// Complete marks a contract_created purchase done, buyer only.
func (s *Service) Complete(ctx context.Context, purchaseID string, actorID int64) (purchase.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return purchase.Purchase{}, err
	}
	if p.BuyerID != actorID {
		return purchase.Purchase{}, ErrNotBuyer
	}
	if p.Status != purchase.StatusContractCreated {
		return purchase.Purchase{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, purchase.StatusCompleted)
	}
	p.Status = purchase.StatusCompleted
	updated, err := s.store.UpdatePurchase(ctx, p)
	if err != nil {
		return purchase.Purchase{}, err
	}
	s.log.WithField("purchase_id", purchaseID).WithField("buyer_id", actorID).Info("purchase completed")
	return updated, nil
}

// Cancel aborts a non-terminal purchase and returns the reserved quantity
// to the listing. Either party may cancel. The quantity goes back first so
// a failed release leaves the purchase live instead of stranding the units.
func (s *Service) Cancel(ctx context.Context, purchaseID string, actorID int64) (purchase.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return purchase.Purchase{}, err
	}
	if p.BuyerID != actorID && p.SellerID != actorID {
		return purchase.Purchase{}, ErrNotParticipant
	}
	if p.Terminal() {
		return purchase.Purchase{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.Status, purchase.StatusCancelled)
	}

	if err := s.listings.AdjustListingQuantity(ctx, p.ListingID, p.Quantity); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return purchase.Purchase{}, fmt.Errorf("release reserved quantity: %w", err)
		}
		s.log.WithField("listing_id", p.ListingID).Warn("released quantity for missing listing")
	}

	p.Status = purchase.StatusCancelled
	updated, err := s.store.UpdatePurchase(ctx, p)
	if err != nil {
		return purchase.Purchase{}, err
	}
	s.log.WithField("purchase_id", purchaseID).WithField("actor_id", actorID).Info("purchase cancelled")
	return updated, nil
}

// ListForBuyer returns the buyer's purchases, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID int64) ([]purchase.Purchase, error) {
	return s.store.ListPurchasesByBuyer(ctx, buyerID)
}

// ListForSeller returns the seller's sales, newest first.
func (s *Service) ListForSeller(ctx context.Context, sellerID int64) ([]purchase.Purchase, error) {
	return s.store.ListPurchasesBySeller(ctx, sellerID)
}

// ListPendingForSeller returns the seller's open purchase requests ordered
// so requests sharing a contract key sit together.
func (s *Service) ListPendingForSeller(ctx context.Context, sellerID int64) ([]purchase.Purchase, error) {
	return s.store.ListPendingPurchasesBySeller(ctx, sellerID)
}

// SalesMetrics aggregates the seller's completed sales. A positive
// periodDays restricts the window; zero or negative covers all time.
func (s *Service) SalesMetrics(ctx context.Context, sellerID int64, periodDays int) (purchase.SalesMetrics, error) {
	all, err := s.store.ListPurchasesBySeller(ctx, sellerID)
	if err != nil {
		return purchase.SalesMetrics{}, err
	}

	var cutoff time.Time
	if periodDays > 0 {
		cutoff = s.now().AddDate(0, 0, -periodDays)
	}

	metrics := purchase.SalesMetrics{TopItems: []purchase.ItemSales{}}
	buyers := make(map[int64]bool)
	perItem := make(map[int64]*purchase.ItemSales)
	for _, p := range all {
		if p.Status != purchase.StatusCompleted {
			continue
		}
		if periodDays > 0 && p.PurchasedAt.Before(cutoff) {
			continue
		}
		metrics.TotalRevenue += p.TotalPrice
		metrics.TotalTransactions++
		metrics.TotalQuantitySold += p.Quantity
		buyers[p.BuyerID] = true

		item, ok := perItem[p.ItemTypeID]
		if !ok {
			item = &purchase.ItemSales{ItemTypeID: p.ItemTypeID, ItemTypeName: p.ItemTypeName}
			perItem[p.ItemTypeID] = item
		}
		item.QuantitySold += p.Quantity
		item.Revenue += p.TotalPrice
		item.TransactionCount++
	}
	metrics.UniqueItemTypes = len(perItem)
	metrics.UniqueBuyers = len(buyers)

	for _, item := range perItem {
		metrics.TopItems = append(metrics.TopItems, *item)
	}
	sort.Slice(metrics.TopItems, func(i, j int) bool {
		if metrics.TopItems[i].Revenue != metrics.TopItems[j].Revenue {
			return metrics.TopItems[i].Revenue > metrics.TopItems[j].Revenue
		}
		return metrics.TopItems[i].ItemTypeID < metrics.TopItems[j].ItemTypeID
	})
	if len(metrics.TopItems) > 10 {
		metrics.TopItems = metrics.TopItems[:10]
	}
	return metrics, nil
}

func (s *Service) release(ctx context.Context, listingID string, qty int64) {
	if err := s.listings.AdjustListingQuantity(ctx, listingID, qty); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.log.WithField("listing_id", listingID).Warn("released quantity for missing listing")
			return
		}
		s.log.WithError(err).WithField("listing_id", listingID).Error("failed to release reserved quantity")
	}
}
