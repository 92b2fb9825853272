package stockpile

// Marker declares a desired on-hand quantity for an item type at a
// location, optionally narrowed to a container or hangar division.
type Marker struct {
	ID              string `json:"id"`
	OwnerID         int64  `json:"owner_id"`
	LocationID      int64  `json:"location_id"`
	ContainerID     *int64 `json:"container_id"`
	DivisionNumber  *int   `json:"division_number"`
	ItemTypeID      int64  `json:"item_type_id"`
	ItemTypeName    string `json:"item_type_name"`
	DesiredQuantity int64  `json:"desired_quantity"`
}

// Asset is one row of an owner's inventory snapshot.
type Asset struct {
	OwnerID        int64  `json:"owner_id"`
	LocationID     int64  `json:"location_id"`
	ContainerID    *int64 `json:"container_id"`
	DivisionNumber *int   `json:"division_number"`
	ItemTypeID     int64  `json:"item_type_id"`
	Quantity       int64  `json:"quantity"`
}

// Deficit reports a marker whose on-hand quantity is below target.
// DeficitValue is the shortfall priced at the reference buy price; when no
// price is on record the value is zero and PriceUnavailable is set so
// consumers can tell a free item from a stale price catalog.
type Deficit struct {
	ItemTypeID       int64  `json:"item_type_id"`
	ItemTypeName     string `json:"item_type_name"`
	LocationID       int64  `json:"location_id"`
	Desired          int64  `json:"desired"`
	OnHand           int64  `json:"on_hand"`
	Deficit          int64  `json:"deficit"`
	DeficitValue     int64  `json:"deficit_value"`
	PriceUnavailable bool   `json:"price_unavailable"`
}
