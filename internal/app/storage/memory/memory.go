package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hangarlink/market_layer/internal/app/domain/buyorder"
	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/listing"
	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/domain/stockpile"
	"github.com/hangarlink/market_layer/internal/app/domain/user"
	"github.com/hangarlink/market_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local development.
type Store struct {
	mu               sync.RWMutex
	nextID           int64
	users            map[int64]user.User
	usersByName      map[string]int64
	contacts         map[string]contact.Contact
	permissions      map[string]contact.Permission
	permissionsByKey map[string]string
	listings         map[string]listing.Listing
	listingsByKey    map[string]string
	purchases        map[string]purchase.Purchase
	buyOrders        map[string]buyorder.BuyOrder
	buyOrdersByKey   map[string]string
	markers          map[string]stockpile.Marker
	assets           map[int64][]stockpile.Asset
	prices           map[int64]pricing.ItemPrice
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.ContactStore = (*Store)(nil)
var _ storage.PermissionStore = (*Store)(nil)
var _ storage.ListingStore = (*Store)(nil)
var _ storage.PurchaseStore = (*Store)(nil)
var _ storage.BuyOrderStore = (*Store)(nil)
var _ storage.StockpileStore = (*Store)(nil)
var _ storage.PriceStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:           1,
		users:            make(map[int64]user.User),
		usersByName:      make(map[string]int64),
		contacts:         make(map[string]contact.Contact),
		permissions:      make(map[string]contact.Permission),
		permissionsByKey: make(map[string]string),
		listings:         make(map[string]listing.Listing),
		listingsByKey:    make(map[string]string),
		purchases:        make(map[string]purchase.Purchase),
		buyOrders:        make(map[string]buyorder.BuyOrder),
		buyOrdersByKey:   make(map[string]string),
		markers:          make(map[string]stockpile.Marker),
		assets:           make(map[int64][]stockpile.Asset),
		prices:           make(map[int64]pricing.ItemPrice),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func permKey(grantorID, granteeID int64, serviceType string) string {
	return fmt.Sprintf("%d:%d:%s", grantorID, granteeID, serviceType)
}

func listingKey(sellerID, itemTypeID, locationID int64) string {
	return fmt.Sprintf("%d:%d:%d", sellerID, itemTypeID, locationID)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) UpsertUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[u.ID]; ok {
		delete(s.usersByName, strings.ToLower(existing.Name))
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = u
	s.usersByName[strings.ToLower(u.Name)] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id int64) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) GetUserByName(_ context.Context, name string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(name)]
	if !ok {
		return user.User{}, fmt.Errorf("user %q: %w", name, storage.ErrNotFound)
	}
	return s.users[id], nil
}

// ContactStore implementation -------------------------------------------------

func (s *Store) CreateContact(_ context.Context, c contact.Contact) (contact.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = s.nextIDLocked()
	} else if _, exists := s.contacts[c.ID]; exists {
		return contact.Contact{}, fmt.Errorf("contact %s already exists", c.ID)
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = time.Now().UTC()
	}
	s.contacts[c.ID] = cloneContact(c)
	return c, nil
}

func (s *Store) UpdateContact(_ context.Context, c contact.Contact) (contact.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.contacts[c.ID]
	if !ok {
		return contact.Contact{}, fmt.Errorf("contact %s: %w", c.ID, storage.ErrNotFound)
	}
	c.RequestedAt = existing.RequestedAt
	if c.Status == contact.StatusPending && existing.Status != contact.StatusPending {
		c.RequestedAt = time.Now().UTC()
	}
	s.contacts[c.ID] = cloneContact(c)
	return c, nil
}

func (s *Store) GetContact(_ context.Context, id string) (contact.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contacts[id]
	if !ok {
		return contact.Contact{}, fmt.Errorf("contact %s: %w", id, storage.ErrNotFound)
	}
	return cloneContact(c), nil
}

func (s *Store) FindContactBetween(_ context.Context, a, b int64) (contact.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.contacts {
		if (c.RequesterID == a && c.RecipientID == b) || (c.RequesterID == b && c.RecipientID == a) {
			return cloneContact(c), nil
		}
	}
	return contact.Contact{}, fmt.Errorf("contact between %d and %d: %w", a, b, storage.ErrNotFound)
}

func (s *Store) ListContactsForUser(_ context.Context, userID int64) ([]contact.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contact.Contact, 0)
	for _, c := range s.contacts {
		if c.Involves(userID) {
			out = append(out, cloneContact(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) DeleteContact(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.contacts[id]; !ok {
		return fmt.Errorf("contact %s: %w", id, storage.ErrNotFound)
	}
	delete(s.contacts, id)
	return nil
}

// PermissionStore implementation ----------------------------------------------

func (s *Store) UpsertPermission(_ context.Context, p contact.Permission) (contact.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := permKey(p.GrantorID, p.GranteeID, p.ServiceType)
	if id, ok := s.permissionsByKey[key]; ok {
		p.ID = id
	} else if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	s.permissions[p.ID] = p
	s.permissionsByKey[key] = p.ID
	return p, nil
}

func (s *Store) InitContactPermissions(_ context.Context, c contact.Contact, serviceTypes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs := [][2]int64{
		{c.RequesterID, c.RecipientID},
		{c.RecipientID, c.RequesterID},
	}
	for _, pair := range pairs {
		for _, svc := range serviceTypes {
			key := permKey(pair[0], pair[1], svc)
			if _, ok := s.permissionsByKey[key]; ok {
				continue
			}
			p := contact.Permission{
				ID:          s.nextIDLocked(),
				ContactID:   c.ID,
				GrantorID:   pair[0],
				GranteeID:   pair[1],
				ServiceType: svc,
				CanAccess:   false,
			}
			s.permissions[p.ID] = p
			s.permissionsByKey[key] = p.ID
		}
	}
	return nil
}

func (s *Store) GetPermission(_ context.Context, grantorID, granteeID int64, serviceType string) (contact.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.permissionsByKey[permKey(grantorID, granteeID, serviceType)]
	if !ok {
		return contact.Permission{}, fmt.Errorf("permission %d->%d %s: %w", grantorID, granteeID, serviceType, storage.ErrNotFound)
	}
	return s.permissions[id], nil
}

func (s *Store) ListPermissionsForContact(_ context.Context, contactID string) ([]contact.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contact.Permission, 0)
	for _, p := range s.permissions {
		if p.ContactID == contactID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GrantorID != out[j].GrantorID {
			return out[i].GrantorID < out[j].GrantorID
		}
		return out[i].ServiceType < out[j].ServiceType
	})
	return out, nil
}

func (s *Store) ListGrantors(_ context.Context, granteeID int64, serviceType string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]int64, 0)
	for _, p := range s.permissions {
		if p.GranteeID == granteeID && p.ServiceType == serviceType && p.CanAccess {
			out = append(out, p.GrantorID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) DeletePermissionsForContact(_ context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, p := range s.permissions {
		if p.ContactID != contactID {
			continue
		}
		delete(s.permissions, id)
		delete(s.permissionsByKey, permKey(p.GrantorID, p.GranteeID, p.ServiceType))
	}
	return nil
}

// ListingStore implementation -------------------------------------------------

func (s *Store) UpsertListing(_ context.Context, l listing.Listing) (listing.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := listingKey(l.SellerID, l.ItemTypeID, l.LocationID)
	if id, ok := s.listingsByKey[key]; ok {
		existing := s.listings[id]
		l.ID = id
		l.CreatedAt = existing.CreatedAt
	} else {
		if l.ID == "" {
			l.ID = s.nextIDLocked()
		}
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	l.IsActive = true
	s.listings[l.ID] = cloneListing(l)
	s.listingsByKey[key] = l.ID
	return l, nil
}

func (s *Store) GetListing(_ context.Context, id string) (listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.listings[id]
	if !ok {
		return listing.Listing{}, fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	return cloneListing(l), nil
}

func (s *Store) FindListingByKey(_ context.Context, sellerID, itemTypeID, locationID int64) (listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.listingsByKey[listingKey(sellerID, itemTypeID, locationID)]
	if !ok {
		return listing.Listing{}, fmt.Errorf("listing for seller %d type %d at %d: %w", sellerID, itemTypeID, locationID, storage.ErrNotFound)
	}
	return cloneListing(s.listings[id]), nil
}

func (s *Store) DeactivateListing(_ context.Context, id string, sellerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok || l.SellerID != sellerID {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	l.IsActive = false
	l.UpdatedAt = time.Now().UTC()
	s.listings[id] = l
	return nil
}

func (s *Store) ListListingsBySeller(_ context.Context, sellerID int64) ([]listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]listing.Listing, 0)
	for _, l := range s.listings {
		if l.SellerID == sellerID && l.IsActive {
			out = append(out, cloneListing(l))
		}
	}
	sortListings(out)
	return out, nil
}

func (s *Store) ListBrowsableListings(_ context.Context, buyerID int64, sellerIDs []int64) ([]listing.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[int64]bool, len(sellerIDs))
	for _, id := range sellerIDs {
		allowed[id] = true
	}
	out := make([]listing.Listing, 0)
	for _, l := range s.listings {
		if !l.IsActive || l.QuantityAvailable <= 0 {
			continue
		}
		if l.SellerID == buyerID || !allowed[l.SellerID] {
			continue
		}
		out = append(out, cloneListing(l))
	}
	sortListings(out)
	return out, nil
}

func (s *Store) AdjustListingQuantity(_ context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.listings[id]
	if !ok {
		return fmt.Errorf("listing %s: %w", id, storage.ErrNotFound)
	}
	next := l.QuantityAvailable + delta
	if next < 0 {
		return fmt.Errorf("listing %s has %d available: %w", id, l.QuantityAvailable, storage.ErrInsufficientQuantity)
	}
	l.QuantityAvailable = next
	l.UpdatedAt = time.Now().UTC()
	s.listings[id] = l
	return nil
}

// PurchaseStore implementation ------------------------------------------------

func (s *Store) CreatePurchase(_ context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.purchases[p.ID]; exists {
		return purchase.Purchase{}, fmt.Errorf("purchase %s already exists", p.ID)
	}
	now := time.Now().UTC()
	if p.PurchasedAt.IsZero() {
		p.PurchasedAt = now
	}
	p.UpdatedAt = now
	s.purchases[p.ID] = clonePurchase(p)
	return p, nil
}

func (s *Store) UpdatePurchase(_ context.Context, p purchase.Purchase) (purchase.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.purchases[p.ID]
	if !ok {
		return purchase.Purchase{}, fmt.Errorf("purchase %s: %w", p.ID, storage.ErrNotFound)
	}
	p.PurchasedAt = existing.PurchasedAt
	p.UpdatedAt = time.Now().UTC()
	s.purchases[p.ID] = clonePurchase(p)
	return p, nil
}

func (s *Store) GetPurchase(_ context.Context, id string) (purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.purchases[id]
	if !ok {
		return purchase.Purchase{}, fmt.Errorf("purchase %s: %w", id, storage.ErrNotFound)
	}
	return clonePurchase(p), nil
}

func (s *Store) ListPurchasesByBuyer(_ context.Context, buyerID int64) ([]purchase.Purchase, error) {
	return s.listPurchases(func(p purchase.Purchase) bool { return p.BuyerID == buyerID })
}

func (s *Store) ListPurchasesBySeller(_ context.Context, sellerID int64) ([]purchase.Purchase, error) {
	return s.listPurchases(func(p purchase.Purchase) bool { return p.SellerID == sellerID })
}

func (s *Store) listPurchases(match func(purchase.Purchase) bool) ([]purchase.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]purchase.Purchase, 0)
	for _, p := range s.purchases {
		if match(p) {
			out = append(out, clonePurchase(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (s *Store) ListPendingPurchasesBySeller(_ context.Context, sellerID int64) ([]purchase.Purchase, error) {
	out, err := s.listPurchases(func(p purchase.Purchase) bool {
		return p.SellerID == sellerID && p.Status == purchase.StatusPending
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := "", ""
		if out[i].ContractKey != nil {
			ki = *out[i].ContractKey
		}
		if out[j].ContractKey != nil {
			kj = *out[j].ContractKey
		}
		if ki != kj {
			return ki < kj
		}
		return out[i].PurchasedAt.After(out[j].PurchasedAt)
	})
	return out, nil
}

func (s *Store) SumOpenPurchaseQuantity(_ context.Context, listingID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, p := range s.purchases {
		if p.ListingID == listingID && !p.Terminal() {
			total += p.Quantity
		}
	}
	return total, nil
}

func (s *Store) FindOpenContractKey(_ context.Context, buyerID, locationID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.purchases {
		if p.BuyerID != buyerID || p.LocationID != locationID || p.Terminal() {
			continue
		}
		if p.ContractKey != nil && *p.ContractKey != "" {
			return *p.ContractKey, nil
		}
	}
	return "", fmt.Errorf("open contract for buyer %d at %d: %w", buyerID, locationID, storage.ErrNotFound)
}

func (s *Store) ListPurchasesByContractKey(_ context.Context, key string) ([]purchase.Purchase, error) {
	return s.listPurchases(func(p purchase.Purchase) bool {
		return p.ContractKey != nil && *p.ContractKey == key
	})
}

// BuyOrderStore implementation ------------------------------------------------

func (s *Store) UpsertBuyOrder(_ context.Context, o buyorder.BuyOrder) (buyorder.BuyOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := listingKey(o.BuyerID, o.ItemTypeID, o.LocationID)
	if id, ok := s.buyOrdersByKey[key]; ok {
		existing := s.buyOrders[id]
		o.ID = id
		o.CreatedAt = existing.CreatedAt
	} else {
		if o.ID == "" {
			o.ID = s.nextIDLocked()
		}
		o.CreatedAt = now
	}
	o.UpdatedAt = now
	o.IsActive = true
	s.buyOrders[o.ID] = cloneBuyOrder(o)
	s.buyOrdersByKey[key] = o.ID
	return o, nil
}

func (s *Store) GetBuyOrder(_ context.Context, id string) (buyorder.BuyOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.buyOrders[id]
	if !ok {
		return buyorder.BuyOrder{}, fmt.Errorf("buy order %s: %w", id, storage.ErrNotFound)
	}
	return cloneBuyOrder(o), nil
}

func (s *Store) DeactivateBuyOrder(_ context.Context, id string, buyerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.buyOrders[id]
	if !ok || o.BuyerID != buyerID {
		return fmt.Errorf("buy order %s: %w", id, storage.ErrNotFound)
	}
	o.IsActive = false
	o.UpdatedAt = time.Now().UTC()
	s.buyOrders[id] = o
	return nil
}

func (s *Store) ListBuyOrdersByBuyer(_ context.Context, buyerID int64) ([]buyorder.BuyOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]buyorder.BuyOrder, 0)
	for _, o := range s.buyOrders {
		if o.BuyerID == buyerID && o.IsActive {
			out = append(out, cloneBuyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) ListOpenBuyOrders(_ context.Context, buyerIDs []int64) ([]buyorder.BuyOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	allowed := make(map[int64]bool, len(buyerIDs))
	for _, id := range buyerIDs {
		allowed[id] = true
	}
	out := make([]buyorder.BuyOrder, 0)
	for _, o := range s.buyOrders {
		if o.IsActive && o.Quantity > 0 && allowed[o.BuyerID] {
			out = append(out, cloneBuyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// StockpileStore implementation -----------------------------------------------

func (s *Store) UpsertMarker(_ context.Context, m stockpile.Marker) (stockpile.Marker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		for id, existing := range s.markers {
			if existing.OwnerID == m.OwnerID && sameMarkerScope(existing, m) {
				m.ID = id
				break
			}
		}
	}
	if m.ID == "" {
		m.ID = s.nextIDLocked()
	}
	s.markers[m.ID] = cloneMarker(m)
	return m, nil
}

func (s *Store) DeleteMarker(_ context.Context, id string, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markers[id]
	if !ok || m.OwnerID != ownerID {
		return fmt.Errorf("stockpile marker %s: %w", id, storage.ErrNotFound)
	}
	delete(s.markers, id)
	return nil
}

func (s *Store) ListMarkers(_ context.Context, ownerID int64) ([]stockpile.Marker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]stockpile.Marker, 0)
	for _, m := range s.markers {
		if m.OwnerID == ownerID {
			out = append(out, cloneMarker(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LocationID != out[j].LocationID {
			return out[i].LocationID < out[j].LocationID
		}
		return out[i].ItemTypeID < out[j].ItemTypeID
	})
	return out, nil
}

func (s *Store) ReplaceAssets(_ context.Context, ownerID int64, assets []stockpile.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]stockpile.Asset, 0, len(assets))
	for _, a := range assets {
		a.OwnerID = ownerID
		next = append(next, cloneAsset(a))
	}
	s.assets[ownerID] = next
	return nil
}

func (s *Store) ListAssets(_ context.Context, ownerID int64) ([]stockpile.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.assets[ownerID]
	out := make([]stockpile.Asset, 0, len(src))
	for _, a := range src {
		out = append(out, cloneAsset(a))
	}
	return out, nil
}

// PriceStore implementation ---------------------------------------------------

func (s *Store) UpsertPrice(_ context.Context, p pricing.ItemPrice) (pricing.ItemPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	s.prices[p.ItemTypeID] = p
	return p, nil
}

func (s *Store) GetPrice(_ context.Context, itemTypeID int64) (pricing.ItemPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.prices[itemTypeID]
	if !ok {
		return pricing.ItemPrice{}, fmt.Errorf("price for type %d: %w", itemTypeID, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPrices(_ context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]pricing.ItemPrice, 0, len(itemTypeIDs))
	if len(itemTypeIDs) == 0 {
		for _, p := range s.prices {
			out = append(out, p)
		}
	} else {
		for _, id := range itemTypeIDs {
			if p, ok := s.prices[id]; ok {
				out = append(out, p)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemTypeID < out[j].ItemTypeID })
	return out, nil
}

// Clone helpers ---------------------------------------------------------------

func cloneContact(c contact.Contact) contact.Contact {
	c.RespondedAt = cloneTimePtr(c.RespondedAt)
	return c
}

func cloneListing(l listing.Listing) listing.Listing {
	l.Notes = cloneStringPtr(l.Notes)
	return l
}

func clonePurchase(p purchase.Purchase) purchase.Purchase {
	p.ContractKey = cloneStringPtr(p.ContractKey)
	return p
}

func cloneBuyOrder(o buyorder.BuyOrder) buyorder.BuyOrder {
	o.Notes = cloneStringPtr(o.Notes)
	return o
}

func cloneMarker(m stockpile.Marker) stockpile.Marker {
	m.ContainerID = cloneInt64Ptr(m.ContainerID)
	m.DivisionNumber = cloneIntPtr(m.DivisionNumber)
	return m
}

func cloneAsset(a stockpile.Asset) stockpile.Asset {
	a.ContainerID = cloneInt64Ptr(a.ContainerID)
	a.DivisionNumber = cloneIntPtr(a.DivisionNumber)
	return a
}

func cloneStringPtr(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTimePtr(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt64Ptr(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func sameMarkerScope(a, b stockpile.Marker) bool {
	return a.LocationID == b.LocationID &&
		a.ItemTypeID == b.ItemTypeID &&
		int64PtrEqual(a.ContainerID, b.ContainerID) &&
		intPtrEqual(a.DivisionNumber, b.DivisionNumber)
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortListings(out []listing.Listing) {
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
}
