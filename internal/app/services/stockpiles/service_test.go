package stockpiles

import (
	"context"
	"errors"
	"testing"

	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
	"github.com/hangarlink/market_layer/internal/app/domain/stockpile"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/internal/app/storage/memory"
)

func TestService_Markers(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if _, err := svc.SetMarker(ctx, 1, stockpile.Marker{LocationID: 100, ItemTypeID: 34, DesiredQuantity: 0}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := svc.SetMarker(ctx, 1, stockpile.Marker{LocationID: 0, ItemTypeID: 34, DesiredQuantity: 10}); err == nil {
		t.Fatalf("expected error for missing location")
	}

	m, err := svc.SetMarker(ctx, 1, stockpile.Marker{LocationID: 100, ItemTypeID: 34, ItemTypeName: "Tritanium", DesiredQuantity: 5000})
	if err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if m.OwnerID != 1 {
		t.Fatalf("owner not stamped: %#v", m)
	}

	// Same scope updates in place.
	again, err := svc.SetMarker(ctx, 1, stockpile.Marker{LocationID: 100, ItemTypeID: 34, ItemTypeName: "Tritanium", DesiredQuantity: 8000})
	if err != nil {
		t.Fatalf("update marker: %v", err)
	}
	if again.ID != m.ID || again.DesiredQuantity != 8000 {
		t.Fatalf("expected in-place update: %#v", again)
	}

	markers, err := svc.ListMarkers(ctx, 1)
	if err != nil {
		t.Fatalf("list markers: %v", err)
	}
	if len(markers) != 1 {
		t.Fatalf("expected 1 marker, got %d", len(markers))
	}

	if err := svc.DeleteMarker(ctx, 2, m.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign delete, got %v", err)
	}
	if err := svc.DeleteMarker(ctx, 1, m.ID); err != nil {
		t.Fatalf("delete marker: %v", err)
	}
}

func TestService_Deficits(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	if _, err := svc.SetMarker(ctx, 1, stockpile.Marker{LocationID: 100, ItemTypeID: 34, ItemTypeName: "Tritanium", DesiredQuantity: 10000}); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if _, err := svc.SetMarker(ctx, 1, stockpile.Marker{LocationID: 100, ItemTypeID: 35, ItemTypeName: "Pyerite", DesiredQuantity: 200}); err != nil {
		t.Fatalf("set marker: %v", err)
	}
	if _, err := store.UpsertPrice(ctx, pricing.ItemPrice{ItemTypeID: 34, BuyPrice: 545, SellPrice: 560}); err != nil {
		t.Fatalf("seed price: %v", err)
	}

	if err := svc.RecordAssets(ctx, 1, []stockpile.Asset{
		{LocationID: 100, ItemTypeID: 34, Quantity: 3000},
		{LocationID: 100, ItemTypeID: 34, Quantity: 2000},
		{LocationID: 100, ItemTypeID: 35, Quantity: 500},
		{LocationID: 999, ItemTypeID: 34, Quantity: 100000},
	}); err != nil {
		t.Fatalf("record assets: %v", err)
	}

	deficits, err := svc.Deficits(ctx, 1)
	if err != nil {
		t.Fatalf("deficits: %v", err)
	}
	// Pyerite is over target and must not appear.
	if len(deficits) != 1 {
		t.Fatalf("expected 1 deficit, got %d", len(deficits))
	}
	d := deficits[0]
	if d.ItemTypeID != 34 || d.OnHand != 5000 || d.Deficit != 5000 {
		t.Fatalf("unexpected deficit: %#v", d)
	}
	if d.DeficitValue != 5000*545 {
		t.Fatalf("expected value %d, got %d", 5000*545, d.DeficitValue)
	}
	if d.PriceUnavailable {
		t.Fatalf("priced item must not be flagged unpriced: %#v", d)
	}
}

func TestService_DeficitsScoped(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	ctx := context.Background()

	container := int64(7)
	division := 3
	if _, err := svc.SetMarker(ctx, 1, stockpile.Marker{
		LocationID:      100,
		ContainerID:     &container,
		DivisionNumber:  &division,
		ItemTypeID:      34,
		ItemTypeName:    "Tritanium",
		DesiredQuantity: 100,
	}); err != nil {
		t.Fatalf("set marker: %v", err)
	}

	otherContainer := int64(8)
	if err := svc.RecordAssets(ctx, 1, []stockpile.Asset{
		// Matching container and division counts.
		{LocationID: 100, ContainerID: &container, DivisionNumber: &division, ItemTypeID: 34, Quantity: 30},
		// Wrong container is outside the marker's scope.
		{LocationID: 100, ContainerID: &otherContainer, DivisionNumber: &division, ItemTypeID: 34, Quantity: 500},
		// Loose items don't satisfy a container-scoped marker.
		{LocationID: 100, ItemTypeID: 34, Quantity: 500},
	}); err != nil {
		t.Fatalf("record assets: %v", err)
	}

	deficits, err := svc.Deficits(ctx, 1)
	if err != nil {
		t.Fatalf("deficits: %v", err)
	}
	if len(deficits) != 1 {
		t.Fatalf("expected 1 deficit, got %d", len(deficits))
	}
	if deficits[0].OnHand != 30 || deficits[0].Deficit != 70 {
		t.Fatalf("unexpected scoped deficit: %#v", deficits[0])
	}
	// No reference price recorded; the shortfall carries no value and the
	// row says so instead of passing off zero as a real valuation.
	if deficits[0].DeficitValue != 0 {
		t.Fatalf("expected zero value without price, got %d", deficits[0].DeficitValue)
	}
	if !deficits[0].PriceUnavailable {
		t.Fatalf("unpriced shortfall must be flagged: %#v", deficits[0])
	}
}

func TestService_DeficitsNoMarkers(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	deficits, err := svc.Deficits(context.Background(), 1)
	if err != nil {
		t.Fatalf("deficits: %v", err)
	}
	if len(deficits) != 0 {
		t.Fatalf("expected no deficits, got %d", len(deficits))
	}
}
