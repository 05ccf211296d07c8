// Package gamestate implements the hierarchical state machine at the heart of
// a game room. The tree has exactly one path from the Ingame root to the
// currently active leaf; only the leaf consumes player messages, and only a
// node's parent may replace its child. The same node types run on the server
// (authoritative, via OnPlayerMessage) and on client mirrors (via
// OnServerMessage), so both sides perform identical transitions.
package gamestate

import (
	"encoding/json"
	"fmt"

	"agot/internal/domain"
	"agot/internal/protocol"
)

// Phase type discriminators used in serialized views.
const (
	PhaseIngame        = "ingame"
	PhasePlanning      = "planning"
	PhasePlaceOrders   = "place-orders"
	PhaseSelectRegions = "select-regions"
	PhaseCancelled     = "cancelled"
)

// Node is the contract every concrete phase satisfies.
type Node interface {
	// PhaseName is a stable label for logging and UIs.
	PhaseName() string

	// Child returns the active child node, nil for a leaf.
	Child() Node

	// setChild installs a new child, discarding the old one. Only the
	// node's parent-side transition code may call it.
	setChild(n Node)

	// OnPlayerMessage validates and applies a player message on the
	// authoritative tree. Invalid messages are dropped silently.
	OnPlayerMessage(actor *domain.Player, msg protocol.ClientMessage)

	// OnServerMessage applies a server-originated message to a client
	// mirror without re-validating business rules.
	OnServerMessage(msg protocol.ServerMessage)

	// SerializeToClient produces the per-viewer projection of this node
	// and its subtree. Fields the viewer is not entitled to see are
	// replaced with opaque markers.
	SerializeToClient(admin bool, viewer *domain.Player) protocol.SerializedNode
}

// EventSink receives phase-transition audit entries. The room adapter
// supplies one backed by its logger; tests use a recording sink.
type EventSink interface {
	Record(event string, fields map[string]any)
}

type noopSink struct{}

func (noopSink) Record(string, map[string]any) {}

// Outbound is a server message queued for delivery. An empty recipient list
// means broadcast to the whole room.
type Outbound struct {
	Message    protocol.ServerMessage
	Recipients []string
}

// activeLeaf walks from n to the currently active leaf.
func activeLeaf(n Node) Node {
	for n.Child() != nil {
		n = n.Child()
	}
	return n
}

func marshalNode(phaseType string, payload any) protocol.SerializedNode {
	raw, err := json.Marshal(payload)
	if err != nil {
		// Serialized payloads are plain data structs; a marshal failure is
		// a programming error.
		panic("serialize " + phaseType + ": " + err.Error())
	}
	return protocol.SerializedNode{Type: phaseType, Data: raw}
}

// DeserializeNode reconstructs a non-root node from its serialized view
// against a freshly supplied parent. The switch is the single closed point
// where phase discriminators map to concrete types.
func DeserializeNode(parent Node, env protocol.SerializedNode) (Node, error) {
	switch env.Type {
	case PhasePlanning:
		ig, ok := parent.(*Ingame)
		if !ok {
			return nil, fmt.Errorf("planning node requires ingame parent, got %T", parent)
		}
		return deserializePlanning(ig, env.Data)
	case PhasePlaceOrders:
		pl, ok := parent.(*Planning)
		if !ok {
			return nil, fmt.Errorf("place-orders node requires planning parent, got %T", parent)
		}
		return deserializePlaceOrders(pl, env.Data)
	case PhaseSelectRegions:
		sp, ok := parent.(selectRegionsParent)
		if !ok {
			return nil, fmt.Errorf("select-regions node requires a hosting parent, got %T", parent)
		}
		return deserializeSelectRegions(sp, env.Data)
	case PhaseCancelled:
		ig, ok := parent.(*Ingame)
		if !ok {
			return nil, fmt.Errorf("cancelled node requires ingame parent, got %T", parent)
		}
		return &Cancelled{ingame: ig}, nil
	default:
		return nil, fmt.Errorf("unknown phase type %q", env.Type)
	}
}
