/*
Package presence contains the core logic for the real-time presence registry and the
point-to-point signaling relay.

This file defines the Identity token and the UserRecord struct, the mutable state the
registry keeps for every joined connection until it disconnects.
*/
package presence

// Identity is the server-assigned opaque token identifying one connection's session.
// It is generated once per connection, never reused, and never chosen by the client.
type Identity string

// Role describes which side of the marketplace a participant is on.
type Role string

const (
	// RoleBuyer identifies a participant looking to buy.
	RoleBuyer Role = "Buyer"

	// RoleSeller identifies a participant offering goods for sale.
	RoleSeller Role = "Seller"
)

// Valid reports whether the role is one of the known role values.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSeller
}

// UserRecord is the joined-state payload associated with an Identity. It only exists
// between a validated join and the connection's removal; nothing about it survives
// the process. JSON field names match the wire protocol consumed by the frontend.
type UserRecord struct {
	// ID is the server-assigned Identity, equal to the registry map key.
	ID Identity `json:"id"`

	// Role is either RoleBuyer or RoleSeller.
	Role Role `json:"type"`

	// Name is the display name. Unique among all active records at join time
	// (case-sensitive exact match); never re-validated afterwards.
	Name string `json:"name"`

	// Latitude and Longitude hold the participant's last reported position.
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`

	// Delivers is only meaningful for sellers and may be absent.
	Delivers *bool `json:"delivers,omitempty"`

	// Price is the seller's asking price, if any.
	Price *float64 `json:"price,omitempty"`

	// Avatar is an opaque display reference (typically an image URL).
	Avatar string `json:"img,omitempty"`

	// peer is a weak back-reference to the transport connection, used by the
	// relay for targeted delivery only. Never serialized.
	peer Peer

	// seq is the join order, used to keep Snapshot ordering stable.
	seq uint64
}
