package buyorder

import "time"

// BuyOrder is a standing request to buy an item type at a location.
type BuyOrder struct {
	ID              string    `json:"id"`
	BuyerID         int64     `json:"buyer_id"`
	BuyerName       string    `json:"buyer_name"`
	ItemTypeID      int64     `json:"item_type_id"`
	ItemTypeName    string    `json:"item_type_name"`
	LocationID      int64     `json:"location_id"`
	LocationName    string    `json:"location_name"`
	Quantity        int64     `json:"quantity"`
	MaxPricePerUnit int64     `json:"max_price_per_unit"`
	Notes           *string   `json:"notes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DemandEntry aggregates open buy orders for one item type at one location.
type DemandEntry struct {
	ItemTypeID       int64  `json:"item_type_id"`
	ItemTypeName     string `json:"item_type_name"`
	LocationID       int64  `json:"location_id"`
	LocationName     string `json:"location_name"`
	TotalQuantity    int64  `json:"total_quantity"`
	BestPricePerUnit int64  `json:"best_price_per_unit"`
	OrderCount       int    `json:"order_count"`
}
