package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hangarlink/market_layer/internal/app/domain/pricing"
)

// Fetcher retrieves reference prices for a set of item types.
type Fetcher interface {
	Fetch(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error)

func (f FetcherFunc) Fetch(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error) {
	if f == nil {
		return nil, nil
	}
	return f(ctx, itemTypeIDs)
}

// HTTPFetcher pulls prices from an external market-data endpoint that
// returns a JSON array of per-type buy and sell prices.
type HTTPFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPFetcher creates a fetcher against the given base URL.
func NewHTTPFetcher(baseURL string, client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPFetcher{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, itemTypeIDs []int64) ([]pricing.ItemPrice, error) {
	ids := make([]string, 0, len(itemTypeIDs))
	for _, id := range itemTypeIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	endpoint := fmt.Sprintf("%s/prices?ids=%s", f.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price endpoint returned %d", resp.StatusCode)
	}

	var payload []struct {
		ItemTypeID int64 `json:"item_type_id"`
		BuyPrice   int64 `json:"buy_price"`
		SellPrice  int64 `json:"sell_price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode price payload: %w", err)
	}

	now := time.Now().UTC()
	out := make([]pricing.ItemPrice, 0, len(payload))
	for _, row := range payload {
		out = append(out, pricing.ItemPrice{
			ItemTypeID: row.ItemTypeID,
			BuyPrice:   row.BuyPrice,
			SellPrice:  row.SellPrice,
			UpdatedAt:  now,
		})
	}
	return out, nil
}
