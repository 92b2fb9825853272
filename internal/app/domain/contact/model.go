package contact

import "time"

// Status values for a contact edge.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
)

// Service types a contact permission can cover.
const (
	ServiceListings  = "listings"
	ServiceBuyOrders = "buy_orders"
)

// ServiceTypes lists every known permission service type.
var ServiceTypes = []string{ServiceListings, ServiceBuyOrders}

// Contact represents one edge of the trust graph between two users.
type Contact struct {
	ID            string     `json:"id"`
	RequesterID   int64      `json:"requester_id"`
	RecipientID   int64      `json:"recipient_id"`
	RequesterName string     `json:"requester_name"`
	RecipientName string     `json:"recipient_name"`
	Status        string     `json:"status"`
	RequestedAt   time.Time  `json:"requested_at"`
	RespondedAt   *time.Time `json:"responded_at"`
}

// Involves reports whether the given user is an endpoint of the edge.
func (c Contact) Involves(userID int64) bool {
	return c.RequesterID == userID || c.RecipientID == userID
}

// Other returns the opposite endpoint for a user on the edge.
func (c Contact) Other(userID int64) int64 {
	if c.RequesterID == userID {
		return c.RecipientID
	}
	return c.RequesterID
}

// Permission is a directional access grant scoped to one contact edge.
type Permission struct {
	ID          string `json:"id"`
	ContactID   string `json:"contact_id"`
	GrantorID   int64  `json:"grantor_id"`
	GranteeID   int64  `json:"grantee_id"`
	ServiceType string `json:"service_type"`
	CanAccess   bool   `json:"can_access"`
}
