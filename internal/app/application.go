package app

import (
	"context"
	"fmt"

	buyordersvc "github.com/hangarlink/market_layer/internal/app/services/buyorders"
	contactsvc "github.com/hangarlink/market_layer/internal/app/services/contacts"
	listingsvc "github.com/hangarlink/market_layer/internal/app/services/listings"
	permissionsvc "github.com/hangarlink/market_layer/internal/app/services/permissions"
	pricingsvc "github.com/hangarlink/market_layer/internal/app/services/pricing"
	purchasesvc "github.com/hangarlink/market_layer/internal/app/services/purchases"
	stockpilesvc "github.com/hangarlink/market_layer/internal/app/services/stockpiles"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/internal/app/storage/memory"
	"github.com/hangarlink/market_layer/internal/app/system"
	"github.com/hangarlink/market_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users       storage.UserStore
	Contacts    storage.ContactStore
	Permissions storage.PermissionStore
	Listings    storage.ListingStore
	Purchases   storage.PurchaseStore
	BuyOrders   storage.BuyOrderStore
	Stockpiles  storage.StockpileStore
	Prices      storage.PriceStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Contacts    *contactsvc.Service
	Permissions *permissionsvc.Service
	Listings    *listingsvc.Service
	Purchases   *purchasesvc.Service
	BuyOrders   *buyordersvc.Service
	Stockpiles  *stockpilesvc.Service
	Pricing     *pricingsvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Contacts == nil {
		stores.Contacts = mem
	}
	if stores.Permissions == nil {
		stores.Permissions = mem
	}
	if stores.Listings == nil {
		stores.Listings = mem
	}
	if stores.Purchases == nil {
		stores.Purchases = mem
	}
	if stores.BuyOrders == nil {
		stores.BuyOrders = mem
	}
	if stores.Stockpiles == nil {
		stores.Stockpiles = mem
	}
	if stores.Prices == nil {
		stores.Prices = mem
	}

	manager := system.NewManager()

	contactService := contactsvc.New(stores.Users, stores.Contacts, stores.Permissions, log)
	permissionService := permissionsvc.New(stores.Contacts, stores.Permissions, log)
	listingService := listingsvc.New(stores.Listings, stores.Permissions, stores.Purchases, log)
	purchaseService := purchasesvc.New(stores.Listings, stores.Purchases, stores.Permissions, log)
	buyOrderService := buyordersvc.New(stores.BuyOrders, stores.Permissions, log)
	stockpileService := stockpilesvc.New(stores.Stockpiles, stores.Prices, log)
	pricingService := pricingsvc.New(stores.Prices, log)

	for _, name := range []string{"contacts", "permissions", "listings", "purchases", "buyorders", "stockpiles"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	return &Application{
		manager:     manager,
		log:         log,
		Contacts:    contactService,
		Permissions: permissionService,
		Listings:    listingService,
		Purchases:   purchaseService,
		BuyOrders:   buyOrderService,
		Stockpiles:  stockpileService,
		Pricing:     pricingService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
