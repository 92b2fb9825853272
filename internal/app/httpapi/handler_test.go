package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	app "github.com/hangarlink/market_layer/internal/app"
	"github.com/hangarlink/market_layer/internal/app/domain/user"
	"github.com/hangarlink/market_layer/internal/app/storage/memory"
)

func newTestHandler(t *testing.T, opts Options) (http.Handler, *memory.Store) {
	t.Helper()
	mem := memory.New()
	application, err := app.New(app.Stores{
		Users:       mem,
		Contacts:    mem,
		Permissions: mem,
		Listings:    mem,
		Purchases:   mem,
		BuyOrders:   mem,
		Stockpiles:  mem,
		Prices:      mem,
	}, nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	for _, u := range []user.User{{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}} {
		if _, err := mem.UpsertUser(context.Background(), u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return NewHandler(application, opts), mem
}

func doJSON(t *testing.T, h http.Handler, method, path string, userID int64, userName string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID > 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
		req.Header.Set("X-User-Name", userName)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func TestHandler_Health(t *testing.T) {
	h, _ := newTestHandler(t, Options{})
	rec := doJSON(t, h, http.MethodGet, "/health", 0, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_RequiresIdentity(t *testing.T) {
	h, _ := newTestHandler(t, Options{})
	rec := doJSON(t, h, http.MethodGet, "/v1/contacts", 0, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandler_ContactFlow(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/v1/contacts", 1, "Alice", map[string]string{"recipient_name": "Bob"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &created)
	if created.Status != "pending" {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	// Duplicate request conflicts.
	rec = doJSON(t, h, http.MethodPost, "/v1/contacts", 1, "Alice", map[string]string{"recipient_name": "Bob"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	// Only the recipient can accept.
	rec = doJSON(t, h, http.MethodPost, "/v1/contacts/"+created.ID+"/accept", 1, "Alice", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/contacts/"+created.ID+"/accept", 2, "Bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Grant listing access toward Alice.
	rec = doJSON(t, h, http.MethodPut, "/v1/contacts/"+created.ID+"/permissions", 2, "Bob", map[string]interface{}{
		"service_type": "listings",
		"can_access":   true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/contacts/"+created.ID+"/permissions", 1, "Alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_PurchaseFlow(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	// Establish the trust edge and grant.
	rec := doJSON(t, h, http.MethodPost, "/v1/contacts", 2, "Bob", map[string]string{"recipient_name": "Alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("contact request: %d", rec.Code)
	}
	var edge struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &edge)
	if rec := doJSON(t, h, http.MethodPost, "/v1/contacts/"+edge.ID+"/accept", 1, "Alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("accept: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, "/v1/contacts/"+edge.ID+"/permissions", 2, "Bob", map[string]interface{}{
		"service_type": "listings",
		"can_access":   true,
	}); rec.Code != http.StatusOK {
		t.Fatalf("grant: %d", rec.Code)
	}

	// Bob lists 10 units.
	rec = doJSON(t, h, http.MethodPut, "/v1/listings", 2, "Bob", map[string]interface{}{
		"item_type_id":   34,
		"item_type_name": "Tritanium",
		"location_id":    60003760,
		"location_name":  "Jita IV-4",
		"quantity":       10,
		"price_per_unit": 550,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("listing upsert: %d: %s", rec.Code, rec.Body.String())
	}
	var listed struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &listed)

	// Alice sees it and buys 4.
	rec = doJSON(t, h, http.MethodGet, "/v1/listings/browse", 1, "Alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("browse: %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/purchases", 1, "Alice", map[string]interface{}{
		"listing_id": listed.ID,
		"quantity":   4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase: %d: %s", rec.Code, rec.Body.String())
	}
	var bought struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &bought)

	// Oversell conflicts.
	rec = doJSON(t, h, http.MethodPost, "/v1/purchases", 1, "Alice", map[string]interface{}{
		"listing_id": listed.ID,
		"quantity":   100,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for oversell, got %d", rec.Code)
	}

	// Seller marks the contract, buyer completes.
	if rec := doJSON(t, h, http.MethodPost, "/v1/purchases/"+bought.ID+"/contract", 2, "Bob", nil); rec.Code != http.StatusOK {
		t.Fatalf("contract: %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/purchases/"+bought.ID+"/complete", 2, "Bob", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller completing, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/purchases/"+bought.ID+"/complete", 1, "Alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("complete: %d: %s", rec.Code, rec.Body.String())
	}
	if rec := doJSON(t, h, http.MethodPost, "/v1/purchases/"+bought.ID+"/cancel", 1, "Alice", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 cancelling a completed purchase, got %d", rec.Code)
	}
}

func TestHandler_RejectsUnknownFields(t *testing.T) {
	h, _ := newTestHandler(t, Options{})
	rec := doJSON(t, h, http.MethodPost, "/v1/contacts", 1, "Alice", map[string]string{"recipient": "Bob"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestHandler_StockpileDeficits(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	if rec := doJSON(t, h, http.MethodPut, "/v1/prices", 1, "Alice", map[string]interface{}{
		"item_type_id": 34,
		"buy_price":    545,
		"sell_price":   560,
	}); rec.Code != http.StatusOK {
		t.Fatalf("price upsert: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, "/v1/stockpiles/markers", 1, "Alice", map[string]interface{}{
		"location_id":      100,
		"item_type_id":     34,
		"item_type_name":   "Tritanium",
		"desired_quantity": 10000,
	}); rec.Code != http.StatusOK {
		t.Fatalf("marker upsert: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, "/v1/stockpiles/assets", 1, "Alice", map[string]interface{}{
		"assets": []map[string]interface{}{
			{"location_id": 100, "item_type_id": 34, "quantity": 5000},
		},
	}); rec.Code != http.StatusNoContent {
		t.Fatalf("assets: %d", rec.Code)
	}

	rec := doJSON(t, h, http.MethodGet, "/v1/stockpiles/deficits", 1, "Alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("deficits: %d", rec.Code)
	}
	var deficits []struct {
		Deficit      int64 `json:"deficit"`
		DeficitValue int64 `json:"deficit_value"`
	}
	decodeBody(t, rec, &deficits)
	if len(deficits) != 1 || deficits[0].Deficit != 5000 || deficits[0].DeficitValue != 5000*545 {
		t.Fatalf("unexpected deficits: %+v", deficits)
	}
}

func TestHandler_AuditTrail(t *testing.T) {
	h, _ := newTestHandler(t, Options{AuditLimit: 10})

	doJSON(t, h, http.MethodPost, "/v1/contacts", 1, "Alice", map[string]string{"recipient_name": "Bob"})

	rec := doJSON(t, h, http.MethodGet, "/v1/audit", 1, "Alice", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit: %d", rec.Code)
	}
	var entries []auditEntry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(entries))
	}
	if entries[0].Method != http.MethodPost || entries[0].UserID != 1 {
		t.Fatalf("unexpected entry: %#v", entries[0])
	}
}

func TestHandler_BearerAuth(t *testing.T) {
	secret := []byte("test-secret")
	h, _ := newTestHandler(t, Options{AuthSecret: secret})

	// Header identity is ignored once a secret is configured.
	rec := doJSON(t, h, http.MethodGet, "/v1/contacts", 1, "Alice", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, identityClaims{
		Name:             "Alice",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1"},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/contacts", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/contacts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", w.Code)
	}
}

func TestHandler_RateLimit(t *testing.T) {
	h, _ := newTestHandler(t, Options{RateLimit: 1, RateBurst: 1})

	first := doJSON(t, h, http.MethodGet, "/v1/contacts", 1, "Alice", nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.Code)
	}
	second := doJSON(t, h, http.MethodGet, "/v1/contacts", 1, "Alice", nil)
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", second.Code)
	}

	// Another caller has their own budget.
	other := doJSON(t, h, http.MethodGet, "/v1/contacts", 2, "Bob", nil)
	if other.Code != http.StatusOK {
		t.Fatalf("expected 200 for other user, got %d", other.Code)
	}
}

func TestHandler_SellerSalesLifecycle(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	rec := doJSON(t, h, http.MethodPost, "/v1/contacts", 2, "Bob", map[string]string{"recipient_name": "Alice"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("contact request: %d", rec.Code)
	}
	var edge struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &edge)
	if rec := doJSON(t, h, http.MethodPost, "/v1/contacts/"+edge.ID+"/accept", 1, "Alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("accept: %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, "/v1/contacts/"+edge.ID+"/permissions", 2, "Bob", map[string]interface{}{
		"service_type": "listings",
		"can_access":   true,
	}); rec.Code != http.StatusOK {
		t.Fatalf("grant: %d", rec.Code)
	}

	listingBody := map[string]interface{}{
		"item_type_id":   34,
		"item_type_name": "Tritanium",
		"location_id":    60003760,
		"location_name":  "Jita IV-4",
		"quantity":       10,
		"price_per_unit": 550,
	}
	rec = doJSON(t, h, http.MethodPut, "/v1/listings", 2, "Bob", listingBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("listing upsert: %d: %s", rec.Code, rec.Body.String())
	}
	var listed struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &listed)

	rec = doJSON(t, h, http.MethodPost, "/v1/purchases", 1, "Alice", map[string]interface{}{
		"listing_id": listed.ID,
		"quantity":   4,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("purchase: %d: %s", rec.Code, rec.Body.String())
	}
	var bought struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &bought)

	// Rewriting the listing below the 4 reserved units conflicts.
	listingBody["quantity"] = 1
	if rec := doJSON(t, h, http.MethodPut, "/v1/listings", 2, "Bob", listingBody); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 rewriting under reservations, got %d: %s", rec.Code, rec.Body.String())
	}
	listingBody["quantity"] = 5
	if rec := doJSON(t, h, http.MethodPut, "/v1/listings", 2, "Bob", listingBody); rec.Code != http.StatusOK {
		t.Fatalf("listing rewrite: %d: %s", rec.Code, rec.Body.String())
	}

	// The open request shows up on the seller's pending queue.
	rec = doJSON(t, h, http.MethodGet, "/v1/purchases/pending", 2, "Bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending: %d", rec.Code)
	}
	var pending []struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &pending)
	if len(pending) != 1 || pending[0].ID != bought.ID {
		t.Fatalf("unexpected pending queue: %+v", pending)
	}

	// Seller attaches the real contract identifier while advancing.
	rec = doJSON(t, h, http.MethodPost, "/v1/purchases/"+bought.ID+"/contract", 2, "Bob", map[string]string{
		"contract_key": "CONTRACT-77",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("contract: %d: %s", rec.Code, rec.Body.String())
	}
	var advanced struct {
		ContractKey string `json:"contract_key"`
		Status      string `json:"status"`
	}
	decodeBody(t, rec, &advanced)
	if advanced.ContractKey != "CONTRACT-77" || advanced.Status != "contract_created" {
		t.Fatalf("unexpected advance: %+v", advanced)
	}

	if rec := doJSON(t, h, http.MethodPost, "/v1/purchases/"+bought.ID+"/complete", 1, "Alice", nil); rec.Code != http.StatusOK {
		t.Fatalf("complete: %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/purchases/metrics?days=30", 2, "Bob", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: %d: %s", rec.Code, rec.Body.String())
	}
	var metrics struct {
		TotalRevenue      int64 `json:"total_revenue"`
		TotalTransactions int   `json:"total_transactions"`
		UniqueBuyers      int   `json:"unique_buyers"`
	}
	decodeBody(t, rec, &metrics)
	if metrics.TotalRevenue != 4*550 || metrics.TotalTransactions != 1 || metrics.UniqueBuyers != 1 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}

	if rec := doJSON(t, h, http.MethodGet, "/v1/purchases/metrics?days=soon", 2, "Bob", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad days, got %d", rec.Code)
	}
}
