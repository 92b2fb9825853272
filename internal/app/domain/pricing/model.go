package pricing

import "time"

// ItemPrice holds reference market prices for one item type, in ISK-cents.
type ItemPrice struct {
	ItemTypeID int64     `json:"item_type_id"`
	BuyPrice   int64     `json:"buy_price"`
	SellPrice  int64     `json:"sell_price"`
	UpdatedAt  time.Time `json:"updated_at"`
}
