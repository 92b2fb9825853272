package listings

import (
	"context"
	"errors"
	"testing"

	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/internal/app/storage/memory"
)

func TestService_UpsertValidation(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	base := Input{ItemTypeID: 34, ItemTypeName: "Tritanium", LocationID: 60003760, LocationName: "Jita IV-4", Quantity: 100, PricePerUnit: 550}

	bad := base
	bad.Quantity = 0
	if _, err := svc.Upsert(ctx, 1, "Alice", bad); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}

	bad = base
	bad.PricePerUnit = -1
	if _, err := svc.Upsert(ctx, 1, "Alice", bad); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}

	bad = base
	bad.ItemTypeID = 0
	if _, err := svc.Upsert(ctx, 1, "Alice", bad); err == nil {
		t.Fatalf("expected error for missing item type")
	}

	blank := "   "
	withNotes := base
	withNotes.Notes = &blank
	l, err := svc.Upsert(ctx, 1, "Alice", withNotes)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if l.Notes != nil {
		t.Fatalf("blank notes must be dropped, got %q", *l.Notes)
	}
	if !l.IsActive || l.QuantityAvailable != 100 {
		t.Fatalf("unexpected listing: %#v", l)
	}
}

func TestService_UpsertReplacesExisting(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	in := Input{ItemTypeID: 34, ItemTypeName: "Tritanium", LocationID: 60003760, LocationName: "Jita IV-4", Quantity: 100, PricePerUnit: 550}
	first, err := svc.Upsert(ctx, 1, "Alice", in)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	in.Quantity = 250
	in.PricePerUnit = 500
	second, err := svc.Upsert(ctx, 1, "Alice", in)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("same (seller,item,location) must reuse the row")
	}
	if second.QuantityAvailable != 250 || second.PricePerUnit != 500 {
		t.Fatalf("unexpected listing after upsert: %#v", second)
	}

	mine, err := svc.ListForSeller(ctx, 1)
	if err != nil {
		t.Fatalf("list for seller: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(mine))
	}
}

func TestService_UpsertRejectsQuantityBelowReservations(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	in := Input{ItemTypeID: 34, ItemTypeName: "Tritanium", LocationID: 60003760, LocationName: "Jita IV-4", Quantity: 100, PricePerUnit: 550}
	l, err := svc.Upsert(ctx, 1, "Alice", in)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// 40 units are held by an open purchase against the same listing.
	if _, err := store.CreatePurchase(ctx, purchase.Purchase{
		ListingID:    l.ID,
		BuyerID:      2,
		BuyerName:    "Bob",
		SellerID:     1,
		SellerName:   "Alice",
		ItemTypeID:   34,
		ItemTypeName: "Tritanium",
		LocationID:   60003760,
		LocationName: "Jita IV-4",
		Quantity:     40,
		PricePerUnit: 550,
		TotalPrice:   22000,
		Status:       purchase.StatusPending,
	}); err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	in.Quantity = 3
	if _, err := svc.Upsert(ctx, 1, "Alice", in); !errors.Is(err, ErrReservationConflict) {
		t.Fatalf("expected ErrReservationConflict, got %v", err)
	}

	// Exactly matching the outstanding holds is allowed.
	in.Quantity = 40
	updated, err := svc.Upsert(ctx, 1, "Alice", in)
	if err != nil {
		t.Fatalf("upsert at reserved quantity: %v", err)
	}
	if updated.QuantityAvailable != 40 {
		t.Fatalf("expected quantity 40, got %d", updated.QuantityAvailable)
	}
}

func TestService_BrowseVisibility(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	in := Input{ItemTypeID: 34, ItemTypeName: "Tritanium", LocationID: 60003760, LocationName: "Jita IV-4", Quantity: 100, PricePerUnit: 550}
	if _, err := svc.Upsert(ctx, 2, "Bob", in); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// No grant, nothing visible.
	visible, err := svc.Browse(ctx, 1)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("expected no visible listings, got %d", len(visible))
	}

	if _, err := store.UpsertPermission(ctx, contact.Permission{
		ContactID:   "c1",
		GrantorID:   2,
		GranteeID:   1,
		ServiceType: contact.ServiceListings,
		CanAccess:   true,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}

	visible, err = svc.Browse(ctx, 1)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(visible) != 1 || visible[0].SellerID != 2 {
		t.Fatalf("unexpected browse result: %#v", visible)
	}

	// The seller never sees their own rows through browse.
	visible, err = svc.Browse(ctx, 2)
	if err != nil {
		t.Fatalf("browse as seller: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("seller must not browse own listings, got %d", len(visible))
	}
}

func TestService_ReserveAndRelease(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil)
	ctx := context.Background()

	l, err := svc.Upsert(ctx, 1, "Alice", Input{ItemTypeID: 34, ItemTypeName: "Tritanium", LocationID: 60003760, LocationName: "Jita IV-4", Quantity: 10, PricePerUnit: 550})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.Reserve(ctx, l.ID, 4); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Reserve(ctx, l.ID, 7); !errors.Is(err, storage.ErrInsufficientQuantity) {
		t.Fatalf("expected ErrInsufficientQuantity, got %v", err)
	}
	if err := svc.Release(ctx, l.ID, 4); err != nil {
		t.Fatalf("release: %v", err)
	}

	got, err := svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuantityAvailable != 10 {
		t.Fatalf("expected quantity restored to 10, got %d", got.QuantityAvailable)
	}

	// Releasing against a listing the seller deleted is not an error.
	if err := svc.Release(ctx, "missing", 1); err != nil {
		t.Fatalf("release for missing listing: %v", err)
	}
}
