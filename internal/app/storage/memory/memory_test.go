package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/listing"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/storage"
)

func TestContactLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	c, err := store.CreateContact(ctx, contact.Contact{RequesterID: 1, RecipientID: 2, Status: contact.StatusPending})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.ID == "" || c.RequestedAt.IsZero() {
		t.Fatalf("expected id and timestamp: %#v", c)
	}

	// Lookup works in both orientations.
	found, err := store.FindContactBetween(ctx, 2, 1)
	if err != nil {
		t.Fatalf("find between: %v", err)
	}
	if found.ID != c.ID {
		t.Fatalf("unexpected edge %s", found.ID)
	}

	c.Status = contact.StatusAccepted
	if _, err := store.UpdateContact(ctx, c); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := store.DeleteContact(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetContact(ctx, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListingKeyedUpsert(t *testing.T) {
	store := New()
	ctx := context.Background()

	l, err := store.UpsertListing(ctx, listing.Listing{SellerID: 1, ItemTypeID: 34, LocationID: 100, QuantityAvailable: 10, PricePerUnit: 5})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.DeactivateListing(ctx, l.ID, 1); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	// Re-upserting the same scope revives the soft-deleted row.
	again, err := store.UpsertListing(ctx, listing.Listing{SellerID: 1, ItemTypeID: 34, LocationID: 100, QuantityAvailable: 20, PricePerUnit: 6})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if again.ID != l.ID {
		t.Fatalf("expected row reuse, got %s vs %s", again.ID, l.ID)
	}
	if !again.IsActive || again.QuantityAvailable != 20 {
		t.Fatalf("unexpected state: %#v", again)
	}
	if !again.CreatedAt.Equal(l.CreatedAt) {
		t.Fatalf("created_at must survive upsert")
	}
}

func TestAdjustListingQuantityConcurrent(t *testing.T) {
	store := New()
	ctx := context.Background()

	l, err := store.UpsertListing(ctx, listing.Listing{SellerID: 1, ItemTypeID: 34, LocationID: 100, QuantityAvailable: 100, PricePerUnit: 5})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// 50 workers each try to take 3 units; only 33 can succeed.
	var wg sync.WaitGroup
	var succeeded int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.AdjustListingQuantity(ctx, l.ID, -3); err == nil {
				atomic.AddInt64(&succeeded, 1)
			}
		}()
	}
	wg.Wait()

	got, err := store.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.QuantityAvailable < 0 {
		t.Fatalf("oversold: %d", got.QuantityAvailable)
	}
	if want := 100 - succeeded*3; got.QuantityAvailable != want {
		t.Fatalf("expected %d remaining after %d reserves, got %d", want, succeeded, got.QuantityAvailable)
	}
	if succeeded != 33 {
		t.Fatalf("expected exactly 33 successful reserves, got %d", succeeded)
	}
}

func TestFindOpenContractKey(t *testing.T) {
	store := New()
	ctx := context.Background()

	key := "PT-1-100-1700000000"
	p, err := store.CreatePurchase(ctx, purchase.Purchase{
		BuyerID:     1,
		SellerID:    2,
		LocationID:  100,
		Quantity:    1,
		ContractKey: &key,
		Status:      purchase.StatusPending,
	})
	if err != nil {
		t.Fatalf("create purchase: %v", err)
	}

	got, err := store.FindOpenContractKey(ctx, 1, 100)
	if err != nil {
		t.Fatalf("find key: %v", err)
	}
	if got != key {
		t.Fatalf("expected %q, got %q", key, got)
	}

	// A different buyer or location has no open group.
	if _, err := store.FindOpenContractKey(ctx, 2, 100); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other buyer, got %v", err)
	}
	if _, err := store.FindOpenContractKey(ctx, 1, 999); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other location, got %v", err)
	}

	// Terminal purchases stop carrying the key.
	p.Status = purchase.StatusCancelled
	if _, err := store.UpdatePurchase(ctx, p); err != nil {
		t.Fatalf("update purchase: %v", err)
	}
	if _, err := store.FindOpenContractKey(ctx, 1, 100); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after cancellation, got %v", err)
	}
}

func TestListBrowsableListings(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.UpsertListing(ctx, listing.Listing{SellerID: 2, ItemTypeID: 34, LocationID: 100, QuantityAvailable: 10, PricePerUnit: 5}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	exhausted, err := store.UpsertListing(ctx, listing.Listing{SellerID: 2, ItemTypeID: 35, LocationID: 100, QuantityAvailable: 1, PricePerUnit: 5})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.AdjustListingQuantity(ctx, exhausted.ID, -1); err != nil {
		t.Fatalf("adjust: %v", err)
	}

	out, err := store.ListBrowsableListings(ctx, 1, []int64{2})
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(out) != 1 || out[0].ItemTypeID != 34 {
		t.Fatalf("exhausted rows must be hidden: %#v", out)
	}

	out, err = store.ListBrowsableListings(ctx, 1, nil)
	if err != nil {
		t.Fatalf("browse: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("no grantors means nothing visible, got %d", len(out))
	}
}

func TestSumOpenPurchaseQuantity(t *testing.T) {
	store := New()
	ctx := context.Background()

	seed := func(listingID string, qty int64, status string) {
		t.Helper()
		if _, err := store.CreatePurchase(ctx, purchase.Purchase{
			ListingID: listingID,
			BuyerID:   1,
			SellerID:  2,
			Quantity:  qty,
			Status:    status,
		}); err != nil {
			t.Fatalf("create purchase: %v", err)
		}
	}

	seed("l1", 10, purchase.StatusPending)
	seed("l1", 5, purchase.StatusContractCreated)
	seed("l1", 100, purchase.StatusCancelled)
	seed("l1", 100, purchase.StatusCompleted)
	seed("l2", 7, purchase.StatusPending)

	sum, err := store.SumOpenPurchaseQuantity(ctx, "l1")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 15 {
		t.Fatalf("expected 15 units held, got %d", sum)
	}

	sum, err = store.SumOpenPurchaseQuantity(ctx, "empty")
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != 0 {
		t.Fatalf("expected 0 for unknown listing, got %d", sum)
	}
}

func TestListPendingPurchasesBySeller(t *testing.T) {
	store := New()
	ctx := context.Background()

	keyB := "PT-1-200-1700000000"
	keyA := "PT-1-100-1700000000"
	for _, p := range []purchase.Purchase{
		{SellerID: 2, BuyerID: 1, Quantity: 1, ContractKey: &keyB, Status: purchase.StatusPending},
		{SellerID: 2, BuyerID: 1, Quantity: 2, ContractKey: &keyA, Status: purchase.StatusPending},
		{SellerID: 2, BuyerID: 1, Quantity: 3, ContractKey: &keyA, Status: purchase.StatusCompleted},
		{SellerID: 3, BuyerID: 1, Quantity: 4, ContractKey: &keyA, Status: purchase.StatusPending},
	} {
		if _, err := store.CreatePurchase(ctx, p); err != nil {
			t.Fatalf("create purchase: %v", err)
		}
	}

	got, err := store.ListPendingPurchasesBySeller(ctx, 2)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pending rows, got %d", len(got))
	}
	// Grouped by key: the lower key leads regardless of insertion order.
	if got[0].ContractKey == nil || *got[0].ContractKey != keyA {
		t.Fatalf("expected key %q first, got %v", keyA, got[0].ContractKey)
	}
	if got[1].ContractKey == nil || *got[1].ContractKey != keyB {
		t.Fatalf("expected key %q second, got %v", keyB, got[1].ContractKey)
	}
}
