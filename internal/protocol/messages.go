// Package protocol defines the typed, room-scoped messages exchanged between
// the authoritative server tree and client mirrors, along with the schema
// validation and snapshot codec applied at the wire boundary.
package protocol

import "encoding/json"

// Client -> Server message types.
const (
	MsgPlaceOrder              = "place-order"
	MsgReady                   = "ready"
	MsgSelectRegions           = "select-regions"
	MsgLaunchCancelGameVote    = "launch-cancel-game-vote"
	MsgLaunchReplacePlayerVote = "launch-replace-player-vote"
	MsgVote                    = "vote"
)

// Server -> Client message types.
const (
	MsgOrderPlaced       = "order-placed"
	MsgRemovePlacedOrder = "remove-placed-order"
	MsgPlayerReady       = "player-ready"
	MsgOrdersRevealed    = "orders-revealed"
	MsgVoteStarted       = "vote-started"
	MsgVoteCast          = "vote-cast"
	MsgVoteResolved      = "vote-resolved"
	MsgGameStateChange   = "game-state-change"
	MsgFullSnapshot      = "full-snapshot"
)

// ClientMessage is the union of all player-originated messages, discriminated
// by Type. Unused fields stay at their zero value.
type ClientMessage struct {
	Type string `json:"type"`

	// place-order
	House    string `json:"house,omitempty"`
	RegionID string `json:"region_id,omitempty"`
	OrderID  *int   `json:"order_id,omitempty"` // nil clears the region's order

	// select-regions
	RegionIDs []string `json:"region_ids,omitempty"`

	// vote lifecycle
	VoteID            string `json:"vote_id,omitempty"`
	Choice            *bool  `json:"choice,omitempty"`
	ReplacedUserID    string `json:"replaced_user_id,omitempty"`
	ForHouse          string `json:"for_house,omitempty"`
	ReplacementUserID string `json:"replacement_user_id,omitempty"`
}

// ServerMessage is the union of all server-originated messages, discriminated
// by Type. Clients apply these to their local mirror without re-validating
// business rules.
type ServerMessage struct {
	Type string `json:"type"`

	RegionID string `json:"region_id,omitempty"`
	// OrderID is nil on order-placed when the recipient is not entitled to
	// see the order's identity, only that the region holds one.
	OrderID *int   `json:"order_id,omitempty"`
	UserID  string `json:"user_id,omitempty"`

	PlacedOrders []PlacedOrderEntry `json:"placed_orders,omitempty"`

	VoteID string          `json:"vote_id,omitempty"`
	Choice *bool           `json:"choice,omitempty"`
	Vote   *SerializedVote `json:"vote,omitempty"`
	Result string          `json:"result,omitempty"`

	// game-state-change: install State as the new child of the node at Depth
	// (0 is the tree root).
	Depth int             `json:"depth,omitempty"`
	State *SerializedNode `json:"state,omitempty"`
}

// PlacedOrderEntry is one region/order pair in a placement listing. A nil
// OrderID marks an order whose identity is withheld from the viewer.
type PlacedOrderEntry struct {
	RegionID string `json:"region_id"`
	OrderID  *int   `json:"order_id"`
}

// SerializedNode is the wire form of a state-tree node: a phase type
// discriminator and the phase's own payload. Payloads contain only primitive
// identifiers, never live references.
type SerializedNode struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SerializedVote is the wire form of a pending vote.
type SerializedVote struct {
	ID              string             `json:"id"`
	InitiatorUserID string             `json:"initiator_user_id"`
	Type            SerializedVoteType `json:"vote_type"`
	Participants    []string           `json:"participants"`
	Ballots         []BallotEntry      `json:"ballots"`
	Threshold       int                `json:"threshold"`
	State           string             `json:"state"`
}

// SerializedVoteType is the tagged wire form of a vote's effect variant.
type SerializedVoteType struct {
	Kind              string `json:"kind"`
	ReplacedUserID    string `json:"replaced_user_id,omitempty"`
	ForHouse          string `json:"for_house,omitempty"`
	ReplacementUserID string `json:"replacement_user_id,omitempty"`
}

// BallotEntry is one participant's recorded choice.
type BallotEntry struct {
	UserID string `json:"user_id"`
	Choice bool   `json:"choice"`
}

// IntPtr is a convenience for building optional order ids.
func IntPtr(v int) *int { return &v }

// BoolPtr is a convenience for building optional ballot choices.
func BoolPtr(v bool) *bool { return &v }
