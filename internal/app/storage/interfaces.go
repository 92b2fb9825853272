package storage

import (
	"context"
	"errors"

	"github.com/hangarlink/market_layer/internal/app/domain/buyorder"
	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/listing"
	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/domain/stockpile"
	"github.com/hangarlink/market_layer/internal/app/domain/user"
)

// Sentinel errors shared by every store implementation. Callers match
// with errors.Is; implementations may wrap them with contextual detail.
var (
	ErrNotFound             = errors.New("not found")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

// UserStore persists the local mirror of externally issued identities.
type UserStore interface {
	UpsertUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByName(ctx context.Context, name string) (user.User, error)
}

// ContactStore persists trust-graph edges.
type ContactStore interface {
	CreateContact(ctx context.Context, c contact.Contact) (contact.Contact, error)
	UpdateContact(ctx context.Context, c contact.Contact) (contact.Contact, error)
	GetContact(ctx context.Context, id string) (contact.Contact, error)
	// FindContactBetween returns the edge between two users regardless of
	// direction or status, or ErrNotFound when the pair has no edge.
	FindContactBetween(ctx context.Context, a, b int64) (contact.Contact, error)
	ListContactsForUser(ctx context.Context, userID int64) ([]contact.Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

// PermissionStore persists directional access grants.
type PermissionStore interface {
	UpsertPermission(ctx context.Context, p contact.Permission) (contact.Permission, error)
	// InitContactPermissions seeds both directions of an edge with
	// CanAccess=false for the given service types. Existing rows are
	// left untouched.
	InitContactPermissions(ctx context.Context, c contact.Contact, serviceTypes []string) error
	GetPermission(ctx context.Context, grantorID, granteeID int64, serviceType string) (contact.Permission, error)
	ListPermissionsForContact(ctx context.Context, contactID string) ([]contact.Permission, error)
	// ListGrantors returns the ids of users who granted the grantee access
	// to the given service type.
	ListGrantors(ctx context.Context, granteeID int64, serviceType string) ([]int64, error)
	DeletePermissionsForContact(ctx context.Context, contactID string) error
}

// ListingStore persists sale listings and their reservable quantity.
type ListingStore interface {
	UpsertListing(ctx context.Context, l listing.Listing) (listing.Listing, error)
	GetListing(ctx context.Context, id string) (listing.Listing, error)
	// FindListingByKey returns the row for the upsert key regardless of
	// active state, or ErrNotFound.
	FindListingByKey(ctx context.Context, sellerID, itemTypeID, locationID int64) (listing.Listing, error)
	DeactivateListing(ctx context.Context, id string, sellerID int64) error
	ListListingsBySeller(ctx context.Context, sellerID int64) ([]listing.Listing, error)
	ListBrowsableListings(ctx context.Context, buyerID int64, sellerIDs []int64) ([]listing.Listing, error)
	// AdjustListingQuantity atomically applies delta to the available
	// quantity. A negative delta that would take the quantity below zero
	// fails with ErrInsufficientQuantity and leaves the row unchanged.
	AdjustListingQuantity(ctx context.Context, id string, delta int64) error
}

// PurchaseStore persists purchase records.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error)
	UpdatePurchase(ctx context.Context, p purchase.Purchase) (purchase.Purchase, error)
	GetPurchase(ctx context.Context, id string) (purchase.Purchase, error)
	ListPurchasesByBuyer(ctx context.Context, buyerID int64) ([]purchase.Purchase, error)
	ListPurchasesBySeller(ctx context.Context, sellerID int64) ([]purchase.Purchase, error)
	// ListPendingPurchasesBySeller returns the seller's pending purchases
	// ordered by contract key so one contract's requests sit together.
	ListPendingPurchasesBySeller(ctx context.Context, sellerID int64) ([]purchase.Purchase, error)
	// SumOpenPurchaseQuantity totals the quantity held by non-terminal
	// purchases against a listing.
	SumOpenPurchaseQuantity(ctx context.Context, listingID string) (int64, error)
	// FindOpenContractKey returns the contract key shared by the buyer's
	// open purchases at a location, or ErrNotFound when no open group
	// carries a key yet.
	FindOpenContractKey(ctx context.Context, buyerID, locationID int64) (string, error)
	ListPurchasesByContractKey(ctx context.Context, key string) ([]purchase.Purchase, error)
}

// BuyOrderStore persists standing buy orders.
type BuyOrderStore interface {
	UpsertBuyOrder(ctx context.Context, o buyorder.BuyOrder) (buyorder.BuyOrder, error)
	GetBuyOrder(ctx context.Context, id string) (buyorder.BuyOrder, error)
	DeactivateBuyOrder(ctx context.Context, id string, buyerID int64) error
	ListBuyOrdersByBuyer(ctx context.Context, buyerID int64) ([]buyorder.BuyOrder, error)
	ListOpenBuyOrders(ctx context.Context, buyerIDs []int64) ([]buyorder.BuyOrder, error)
}

// StockpileStore persists stockpile markers and asset snapshots.
type StockpileStore interface {
	UpsertMarker(ctx context.Context, m stockpile.Marker) (stockpile.Marker, error)
	DeleteMarker(ctx context.Context, id string, ownerID int64) error
	ListMarkers(ctx context.Context, ownerID int64) ([]stockpile.Marker, error)
	ReplaceAssets(ctx context.Context, ownerID int64, assets []stockpile.Asset) error
	ListAssets(ctx context.Context, ownerID int64) ([]stockpile.Asset, error)
}

// PriceStore persists reference market prices.
type PriceStore interface {
	UpsertPrice(ctx context.Context, p pricing.ItemPrice) (pricing.ItemPrice, error)
	GetPrice(ctx context.Context, itemTypeID int64) (pricing.ItemPrice, error)
	ListPrices(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error)
}
