package listing

import "time"

// Listing is a seller's offer of an item type at a location. Prices are
// integer ISK-cents; money never touches floating point.
type Listing struct {
	ID                string    `json:"id"`
	SellerID          int64     `json:"seller_id"`
	SellerName        string    `json:"seller_name"`
	ItemTypeID        int64     `json:"item_type_id"`
	ItemTypeName      string    `json:"item_type_name"`
	LocationID        int64     `json:"location_id"`
	LocationName      string    `json:"location_name"`
	QuantityAvailable int64     `json:"quantity_available"`
	PricePerUnit      int64     `json:"price_per_unit"`
	Notes             *string   `json:"notes"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
