// Package app composes the market layer into a running application.
//
// # Architecture Role
//
// The app package sits above the domain services and is responsible for
// wiring them together with storage. It is NOT a business logic layer -
// business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Main application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── contact/        # Contact graph and service permissions
//	│   ├── listing/        # Sell listings
//	│   ├── purchase/       # Purchase records and state machine
//	│   ├── buyorder/       # Buy orders and demand aggregation
//	│   ├── stockpile/      # Stockpile markers, assets, deficits
//	│   └── pricing/        # Reference item prices
//	├── storage/            # Storage interfaces and implementations
//	│   ├── interfaces.go   # Store interfaces (ContactStore, ListingStore, ...)
//	│   ├── memory/         # In-memory implementation for testing
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic services
//	├── httpapi/            # HTTP API handlers, identity, rate limiting, audit
//	├── system/             # Service lifecycle management
//	└── metrics/            # Prometheus metrics
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing services from internal/app/services/ with their dependencies
//   - Defining storage interfaces that services depend on
//   - Providing domain models shared across services
//   - Managing application-level lifecycle through the system manager
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "courier contracts"):
//
//  1. Create domain models in internal/app/domain/courier/
//  2. Add a storage interface to internal/app/storage/interfaces.go
//  3. Implement storage in internal/app/storage/postgres/ and memory/
//  4. Create a service in internal/app/services/courier/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/handler.go
package app
