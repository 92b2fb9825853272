package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/hangarlink/market_layer/internal/app"
	"github.com/hangarlink/market_layer/internal/app/domain/contact"
	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
	"github.com/hangarlink/market_layer/internal/app/domain/purchase"
	"github.com/hangarlink/market_layer/internal/app/domain/stockpile"
	"github.com/hangarlink/market_layer/internal/app/metrics"
	buyordersvc "github.com/hangarlink/market_layer/internal/app/services/buyorders"
	contactsvc "github.com/hangarlink/market_layer/internal/app/services/contacts"
	listingsvc "github.com/hangarlink/market_layer/internal/app/services/listings"
	permissionsvc "github.com/hangarlink/market_layer/internal/app/services/permissions"
	pricingsvc "github.com/hangarlink/market_layer/internal/app/services/pricing"
	purchasesvc "github.com/hangarlink/market_layer/internal/app/services/purchases"
	stockpilesvc "github.com/hangarlink/market_layer/internal/app/services/stockpiles"
	"github.com/hangarlink/market_layer/internal/app/storage"
	"github.com/hangarlink/market_layer/pkg/logger"
)

// Options configures the optional edges of the HTTP surface.
type Options struct {
	// AuthSecret verifies bearer tokens. Empty disables verification and
	// identity falls back to the X-User-ID / X-User-Name headers.
	AuthSecret []byte
	// AuditLimit bounds the in-memory audit ring.
	AuditLimit int
	// AuditFile, when set, appends audit entries as JSONL.
	AuditFile string
	// RateLimit throttles per-user requests per second; zero disables.
	RateLimit int
	RateBurst int
	Log       *logger.Logger
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
	log   *logger.Logger
}

// NewHandler returns a router exposing the core REST API.
func NewHandler(application *app.Application, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}

	var sink auditSink
	if opts.AuditFile != "" {
		fileSink, err := newFileAuditSink(opts.AuditFile)
		if err != nil {
			log.WithError(err).Warn("audit file sink unavailable")
		} else {
			sink = fileSink
		}
	}
	h := &handler{app: application, audit: newAuditLog(opts.AuditLimit, sink), log: log}

	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(identityMiddleware(opts.AuthSecret, log))
	if opts.RateLimit > 0 {
		api.Use(newRateLimiter(opts.RateLimit, opts.RateBurst, log).middleware)
	}
	api.Use(h.auditMiddleware)

	api.HandleFunc("/contacts", h.requestContact).Methods(http.MethodPost)
	api.HandleFunc("/contacts", h.listContacts).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{id}/accept", h.acceptContact).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{id}/decline", h.declineContact).Methods(http.MethodPost)
	api.HandleFunc("/contacts/{id}", h.removeContact).Methods(http.MethodDelete)
	api.HandleFunc("/contacts/{id}/permissions", h.listContactPermissions).Methods(http.MethodGet)
	api.HandleFunc("/contacts/{id}/permissions", h.setContactPermission).Methods(http.MethodPut)

	api.HandleFunc("/listings", h.listListings).Methods(http.MethodGet)
	api.HandleFunc("/listings", h.upsertListing).Methods(http.MethodPut)
	api.HandleFunc("/listings/browse", h.browseListings).Methods(http.MethodGet)
	api.HandleFunc("/listings/{id}", h.deleteListing).Methods(http.MethodDelete)

	api.HandleFunc("/purchases", h.listPurchases).Methods(http.MethodGet)
	api.HandleFunc("/purchases", h.createPurchase).Methods(http.MethodPost)
	api.HandleFunc("/purchases/pending", h.listPendingSales).Methods(http.MethodGet)
	api.HandleFunc("/purchases/metrics", h.salesMetrics).Methods(http.MethodGet)
	api.HandleFunc("/purchases/{id}/contract", h.markContractCreated).Methods(http.MethodPost)
	api.HandleFunc("/purchases/{id}/complete", h.completePurchase).Methods(http.MethodPost)
	api.HandleFunc("/purchases/{id}/cancel", h.cancelPurchase).Methods(http.MethodPost)

	api.HandleFunc("/buy-orders", h.listBuyOrders).Methods(http.MethodGet)
	api.HandleFunc("/buy-orders", h.upsertBuyOrder).Methods(http.MethodPut)
	api.HandleFunc("/buy-orders/demand", h.buyOrderDemand).Methods(http.MethodGet)
	api.HandleFunc("/buy-orders/{id}", h.deleteBuyOrder).Methods(http.MethodDelete)

	api.HandleFunc("/stockpiles/markers", h.listMarkers).Methods(http.MethodGet)
	api.HandleFunc("/stockpiles/markers", h.setMarker).Methods(http.MethodPut)
	api.HandleFunc("/stockpiles/markers/{id}", h.deleteMarker).Methods(http.MethodDelete)
	api.HandleFunc("/stockpiles/deficits", h.stockpileDeficits).Methods(http.MethodGet)
	api.HandleFunc("/stockpiles/assets", h.recordAssets).Methods(http.MethodPut)

	api.HandleFunc("/prices", h.listPrices).Methods(http.MethodGet)
	api.HandleFunc("/prices", h.upsertPrice).Methods(http.MethodPut)

	api.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	return r
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) auditMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		userID, _, _ := identityFrom(r)
		h.audit.add(auditEntry{
			Time:       timeNow(),
			UserID:     userID,
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
			UserAgent:  r.UserAgent(),
		})
	})
}

// --- contacts ---------------------------------------------------------------

func (h *handler) requestContact(w http.ResponseWriter, r *http.Request) {
	userID, userName, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		RecipientName string `json:"recipient_name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := h.app.Contacts.Request(r.Context(), userID, userName, payload.RecipientName)
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) listContacts(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Contacts.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) acceptContact(w http.ResponseWriter, r *http.Request) {
	h.respondContact(w, r, h.app.Contacts.Accept)
}

func (h *handler) declineContact(w http.ResponseWriter, r *http.Request) {
	h.respondContact(w, r, h.app.Contacts.Decline)
}

func (h *handler) respondContact(w http.ResponseWriter, r *http.Request, respond func(ctx context.Context, contactID string, actorID int64) (contact.Contact, error)) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	c, err := respond(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *handler) removeContact(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := h.app.Contacts.Remove(r.Context(), mux.Vars(r)["id"], userID); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listContactPermissions(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Permissions.ListForContact(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) setContactPermission(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		ServiceType string `json:"service_type"`
		CanAccess   bool   `json:"can_access"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Permissions.Set(r.Context(), mux.Vars(r)["id"], userID, payload.ServiceType, payload.CanAccess)
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- listings ---------------------------------------------------------------

func (h *handler) listListings(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Listings.ListForSeller(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) upsertListing(w http.ResponseWriter, r *http.Request) {
	userID, userName, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		ItemTypeID   int64   `json:"item_type_id"`
		ItemTypeName string  `json:"item_type_name"`
		LocationID   int64   `json:"location_id"`
		LocationName string  `json:"location_name"`
		Quantity     int64   `json:"quantity"`
		PricePerUnit int64   `json:"price_per_unit"`
		Notes        *string `json:"notes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	l, err := h.app.Listings.Upsert(r.Context(), userID, userName, listingsvc.Input{
		ItemTypeID:   payload.ItemTypeID,
		ItemTypeName: payload.ItemTypeName,
		LocationID:   payload.LocationID,
		LocationName: payload.LocationName,
		Quantity:     payload.Quantity,
		PricePerUnit: payload.PricePerUnit,
		Notes:        payload.Notes,
	})
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *handler) browseListings(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Listings.Browse(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) deleteListing(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := h.app.Listings.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- purchases --------------------------------------------------------------

func (h *handler) listPurchases(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var out interface{}
	if r.URL.Query().Get("role") == "seller" {
		out, err = h.app.Purchases.ListForSeller(r.Context(), userID)
	} else {
		out, err = h.app.Purchases.ListForBuyer(r.Context(), userID)
	}
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) createPurchase(w http.ResponseWriter, r *http.Request) {
	userID, userName, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		ListingID string `json:"listing_id"`
		Quantity  int64  `json:"quantity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Purchases.Create(r.Context(), userID, userName, payload.ListingID, payload.Quantity)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientQuantity) {
			metrics.RecordReservationFailure()
		}
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	metrics.RecordPurchaseTransition(p.Status)
	writeJSON(w, http.StatusCreated, p)
}

func (h *handler) listPendingSales(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Purchases.ListPendingForSeller(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) salesMetrics(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid days parameter"))
			return
		}
	}
	out, err := h.app.Purchases.SalesMetrics(r.Context(), userID, days)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) markContractCreated(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	// The body is optional; sellers may attach the real in-game contract id.
	var payload struct {
		ContractKey *string `json:"contract_key"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Purchases.MarkContractCreated(r.Context(), mux.Vars(r)["id"], userID, payload.ContractKey)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	metrics.RecordPurchaseTransition(p.Status)
	writeJSON(w, http.StatusOK, p)
}

func (h *handler) completePurchase(w http.ResponseWriter, r *http.Request) {
	h.transitionPurchase(w, r, h.app.Purchases.Complete)
}

func (h *handler) cancelPurchase(w http.ResponseWriter, r *http.Request) {
	h.transitionPurchase(w, r, h.app.Purchases.Cancel)
}

func (h *handler) transitionPurchase(w http.ResponseWriter, r *http.Request, transition func(ctx context.Context, purchaseID string, actorID int64) (purchase.Purchase, error)) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	p, err := transition(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	metrics.RecordPurchaseTransition(p.Status)
	writeJSON(w, http.StatusOK, p)
}

// --- buy orders -------------------------------------------------------------

func (h *handler) listBuyOrders(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.BuyOrders.ListForBuyer(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) upsertBuyOrder(w http.ResponseWriter, r *http.Request) {
	userID, userName, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		ItemTypeID      int64   `json:"item_type_id"`
		ItemTypeName    string  `json:"item_type_name"`
		LocationID      int64   `json:"location_id"`
		LocationName    string  `json:"location_name"`
		Quantity        int64   `json:"quantity"`
		MaxPricePerUnit int64   `json:"max_price_per_unit"`
		Notes           *string `json:"notes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	o, err := h.app.BuyOrders.Upsert(r.Context(), userID, userName, buyordersvc.Input{
		ItemTypeID:      payload.ItemTypeID,
		ItemTypeName:    payload.ItemTypeName,
		LocationID:      payload.LocationID,
		LocationName:    payload.LocationName,
		Quantity:        payload.Quantity,
		MaxPricePerUnit: payload.MaxPricePerUnit,
		Notes:           payload.Notes,
	})
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *handler) buyOrderDemand(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.BuyOrders.Demand(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) deleteBuyOrder(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := h.app.BuyOrders.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- stockpiles -------------------------------------------------------------

func (h *handler) listMarkers(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Stockpiles.ListMarkers(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) setMarker(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		LocationID      int64  `json:"location_id"`
		ContainerID     *int64 `json:"container_id"`
		DivisionNumber  *int   `json:"division_number"`
		ItemTypeID      int64  `json:"item_type_id"`
		ItemTypeName    string `json:"item_type_name"`
		DesiredQuantity int64  `json:"desired_quantity"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	m, err := h.app.Stockpiles.SetMarker(r.Context(), userID, stockpile.Marker{
		LocationID:      payload.LocationID,
		ContainerID:     payload.ContainerID,
		DivisionNumber:  payload.DivisionNumber,
		ItemTypeID:      payload.ItemTypeID,
		ItemTypeName:    payload.ItemTypeName,
		DesiredQuantity: payload.DesiredQuantity,
	})
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *handler) deleteMarker(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	if err := h.app.Stockpiles.DeleteMarker(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) stockpileDeficits(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	out, err := h.app.Stockpiles.Deficits(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) recordAssets(w http.ResponseWriter, r *http.Request) {
	userID, _, err := identityFrom(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		Assets []struct {
			LocationID     int64  `json:"location_id"`
			ContainerID    *int64 `json:"container_id"`
			DivisionNumber *int   `json:"division_number"`
			ItemTypeID     int64  `json:"item_type_id"`
			Quantity       int64  `json:"quantity"`
		} `json:"assets"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	assets := make([]stockpile.Asset, 0, len(payload.Assets))
	for _, a := range payload.Assets {
		assets = append(assets, stockpile.Asset{
			LocationID:     a.LocationID,
			ContainerID:    a.ContainerID,
			DivisionNumber: a.DivisionNumber,
			ItemTypeID:     a.ItemTypeID,
			Quantity:       a.Quantity,
		})
	}
	if err := h.app.Stockpiles.RecordAssets(r.Context(), userID, assets); err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- prices -----------------------------------------------------------------

func (h *handler) listPrices(w http.ResponseWriter, r *http.Request) {
	if _, _, err := identityFrom(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var ids []int64
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			ids = append(ids, id)
		}
	}
	out, err := h.app.Pricing.List(r.Context(), ids)
	if err != nil {
		writeServiceError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handler) upsertPrice(w http.ResponseWriter, r *http.Request) {
	if _, _, err := identityFrom(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	var payload struct {
		ItemTypeID int64 `json:"item_type_id"`
		BuyPrice   int64 `json:"buy_price"`
		SellPrice  int64 `json:"sell_price"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := h.app.Pricing.Upsert(r.Context(), pricing.ItemPrice{
		ItemTypeID: payload.ItemTypeID,
		BuyPrice:   payload.BuyPrice,
		SellPrice:  payload.SellPrice,
	})
	if err != nil {
		writeServiceError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- audit ------------------------------------------------------------------

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if _, _, err := identityFrom(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

// --- helpers ----------------------------------------------------------------

func writeServiceError(w http.ResponseWriter, err error, fallback int) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrInsufficientQuantity),
		errors.Is(err, contactsvc.ErrDuplicateContact),
		errors.Is(err, contactsvc.ErrNotPending),
		errors.Is(err, permissionsvc.ErrContactNotAccepted),
		errors.Is(err, listingsvc.ErrReservationConflict),
		errors.Is(err, purchasesvc.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, contactsvc.ErrNotRecipient),
		errors.Is(err, contactsvc.ErrNotParticipant),
		errors.Is(err, permissionsvc.ErrNotParticipant),
		errors.Is(err, purchasesvc.ErrNotSeller),
		errors.Is(err, purchasesvc.ErrNotBuyer),
		errors.Is(err, purchasesvc.ErrNotParticipant),
		errors.Is(err, purchasesvc.ErrPermissionRequired):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, contactsvc.ErrSelfContact),
		errors.Is(err, purchasesvc.ErrSelfPurchase),
		errors.Is(err, purchasesvc.ErrInvalidQuantity),
		errors.Is(err, listingsvc.ErrInvalidQuantity),
		errors.Is(err, listingsvc.ErrInvalidPrice),
		errors.Is(err, buyordersvc.ErrInvalidQuantity),
		errors.Is(err, buyordersvc.ErrInvalidPrice),
		errors.Is(err, stockpilesvc.ErrInvalidQuantity),
		errors.Is(err, pricingsvc.ErrInvalidPrice),
		errors.Is(err, permissionsvc.ErrUnknownService):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, fallback, err)
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
