package pricing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids"); got != "34,35" {
			t.Fatalf("unexpected ids %q", got)
		}
		w.Write([]byte(`[{"item_type_id":34,"buy_price":545,"sell_price":560},{"item_type_id":35,"buy_price":900,"sell_price":950}]`))
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL, server.Client())
	prices, err := fetcher.Fetch(context.Background(), []int64{34, 35})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	if prices[0].ItemTypeID != 34 || prices[0].BuyPrice != 545 {
		t.Fatalf("unexpected price: %#v", prices[0])
	}
	if prices[1].UpdatedAt.IsZero() {
		t.Fatalf("expected fetch timestamp")
	}
}

func TestHTTPFetcher_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := NewHTTPFetcher(server.URL, server.Client())
	if _, err := fetcher.Fetch(context.Background(), []int64{34}); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}
