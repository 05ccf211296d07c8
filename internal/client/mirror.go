// Package client maintains a view-restricted local mirror of the
// authoritative state tree. A mirror mutates only by applying
// server-originated messages, plus the explicitly provisional Select-Regions
// accumulator kept here until the server commits a confirmation.
package client

import (
	"agot/internal/gamestate"
	"agot/internal/protocol"
)

// Mirror is one client's replica of a room.
type Mirror struct {
	ingame   *gamestate.Ingame
	selected []string
}

// Hydrate builds a mirror from a full snapshot, as received on join or
// resynchronization.
func Hydrate(state protocol.SerializedNode) (*Mirror, error) {
	ig, err := gamestate.DeserializeIngame(state, nil)
	if err != nil {
		return nil, err
	}
	return &Mirror{ingame: ig}, nil
}

// Ingame exposes the mirrored tree.
func (m *Mirror) Ingame() *gamestate.Ingame { return m.ingame }

// Apply replays a server message onto the mirror. A phase transition
// discards any provisional selection; the node it belonged to is gone.
func (m *Mirror) Apply(msg protocol.ServerMessage) {
	if msg.Type == protocol.MsgGameStateChange {
		m.selected = nil
	}
	m.ingame.OnServerMessage(msg)
}

func (m *Mirror) leaf() gamestate.Node {
	var n gamestate.Node = m.ingame
	for n.Child() != nil {
		n = n.Child()
	}
	return n
}

// activeSelect returns the Select-Regions leaf, nil when another phase is
// active.
func (m *Mirror) activeSelect() *gamestate.SelectRegions {
	sr, _ := m.leaf().(*gamestate.SelectRegions)
	return sr
}

// Selection returns the provisional region picks.
func (m *Mirror) Selection() []string {
	return append([]string(nil), m.selected...)
}

// ToggleRegion adds or removes a region from the provisional selection.
// Adding is possible only while the selection is below the required count
// and the region is eligible.
func (m *Mirror) ToggleRegion(regionID string) bool {
	sr := m.activeSelect()
	if sr == nil {
		return false
	}

	for i, id := range m.selected {
		if id == regionID {
			m.selected = append(m.selected[:i], m.selected[i+1:]...)
			return true
		}
	}

	if len(m.selected) >= sr.Count() {
		return false
	}
	eligible := false
	for _, id := range sr.PossibleRegions() {
		if id == regionID {
			eligible = true
			break
		}
	}
	if !eligible {
		return false
	}
	m.selected = append(m.selected, regionID)
	return true
}

// ResetSelection empties the provisional selection.
func (m *Mirror) ResetSelection() {
	m.selected = nil
}

// ConfirmSelection builds the confirmation message when the selection size
// equals the required count, clearing the provisional state. The server
// remains the sole point of validation and commit.
func (m *Mirror) ConfirmSelection() (protocol.ClientMessage, bool) {
	sr := m.activeSelect()
	if sr == nil || len(m.selected) != sr.Count() {
		return protocol.ClientMessage{}, false
	}
	msg := protocol.ClientMessage{
		Type:      protocol.MsgSelectRegions,
		RegionIDs: append([]string(nil), m.selected...),
	}
	m.selected = nil
	return msg, true
}
