package purchase

import "time"

// Status values for a purchase. A purchase only ever moves forward:
// pending -> contract_created -> completed, with cancellation possible
// from the two non-terminal states.
const (
	StatusPending         = "pending"
	StatusContractCreated = "contract_created"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

// Purchase records a buyer taking quantity from a listing. Fields copied
// from the listing are frozen at purchase time so later listing edits do
// not rewrite history.
type Purchase struct {
	ID           string    `json:"id"`
	ListingID    string    `json:"listing_id"`
	BuyerID      int64     `json:"buyer_id"`
	BuyerName    string    `json:"buyer_name"`
	SellerID     int64     `json:"seller_id"`
	SellerName   string    `json:"seller_name"`
	ItemTypeID   int64     `json:"item_type_id"`
	ItemTypeName string    `json:"item_type_name"`
	LocationID   int64     `json:"location_id"`
	LocationName string    `json:"location_name"`
	Quantity     int64     `json:"quantity"`
	PricePerUnit int64     `json:"price_per_unit"`
	TotalPrice   int64     `json:"total_price"`
	ContractKey  *string   `json:"contract_key"`
	Status       string    `json:"status"`
	PurchasedAt  time.Time `json:"purchased_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Terminal reports whether the purchase can no longer change state.
func (p Purchase) Terminal() bool {
	return p.Status == StatusCompleted || p.Status == StatusCancelled
}

// ItemSales aggregates a seller's completed sales of one item type.
type ItemSales struct {
	ItemTypeID       int64  `json:"item_type_id"`
	ItemTypeName     string `json:"item_type_name"`
	QuantitySold     int64  `json:"quantity_sold"`
	Revenue          int64  `json:"revenue"`
	TransactionCount int    `json:"transaction_count"`
}

// SalesMetrics summarizes a seller's completed sales over a period.
type SalesMetrics struct {
	TotalRevenue      int64       `json:"total_revenue"`
	TotalTransactions int         `json:"total_transactions"`
	TotalQuantitySold int64       `json:"total_quantity_sold"`
	UniqueItemTypes   int         `json:"unique_item_types"`
	UniqueBuyers      int         `json:"unique_buyers"`
	TopItems          []ItemSales `json:"top_items"`
}
