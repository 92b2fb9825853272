package user

import "time"

// User mirrors an externally issued identity. IDs come from the identity
// provider; only the display name is stored locally for lookups.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
