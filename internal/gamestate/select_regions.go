package gamestate

import (
	"encoding/json"
	"sort"

	"agot/internal/domain"
	"agot/internal/protocol"
)

// selectRegionsParent is implemented by any phase that hosts a SelectRegions
// child and receives its confirmed selection.
type selectRegionsParent interface {
	Node
	onSelectRegionsFinish(houseID string, regionIDs []string)
}

// SelectRegions is a reusable single-actor phase: the house's controller
// picks exactly count regions from the eligible set and confirms. Everyone
// else is waiting. Client-side accumulation is provisional; the server is
// the sole point of validation and commit.
type SelectRegions struct {
	parent selectRegionsParent
	ingame *Ingame

	houseID  string
	possible []string
	count    int
}

func newSelectRegions(parent selectRegionsParent, ig *Ingame) *SelectRegions {
	return &SelectRegions{parent: parent, ingame: ig}
}

func (sr *SelectRegions) firstStart(houseID string, possible []string, count int) {
	sr.houseID = houseID
	sr.possible = possible
	sr.count = count
	sr.ingame.sink.Record("select-regions-began", map[string]any{
		"house": houseID,
		"count": count,
	})
}

func (sr *SelectRegions) PhaseName() string { return "SelectRegions" }
func (sr *SelectRegions) Child() Node       { return nil }
func (sr *SelectRegions) setChild(Node)     {}

// HouseID names the single acting house, for "waiting for <house>" displays.
func (sr *SelectRegions) HouseID() string { return sr.houseID }

// PossibleRegions returns the eligible region ids.
func (sr *SelectRegions) PossibleRegions() []string { return sr.possible }

// Count returns the required selection size.
func (sr *SelectRegions) Count() int { return sr.count }

func (sr *SelectRegions) OnPlayerMessage(actor *domain.Player, msg protocol.ClientMessage) {
	if msg.Type != protocol.MsgSelectRegions {
		return
	}
	if !sr.ingame.controlsHouse(actor, sr.houseID) {
		return
	}
	if len(msg.RegionIDs) != sr.count {
		return
	}

	seen := make(map[string]bool, len(msg.RegionIDs))
	for _, id := range msg.RegionIDs {
		if seen[id] || !sr.isPossible(id) {
			return
		}
		seen[id] = true
	}

	selected := append([]string(nil), msg.RegionIDs...)
	sort.Strings(selected)
	sr.parent.onSelectRegionsFinish(sr.houseID, selected)
}

func (sr *SelectRegions) isPossible(regionID string) bool {
	for _, id := range sr.possible {
		if id == regionID {
			return true
		}
	}
	return false
}

// OnServerMessage is a no-op: the phase holds no hidden or incremental
// state, and its conclusion arrives as a phase-transition broadcast.
func (sr *SelectRegions) OnServerMessage(msg protocol.ServerMessage) {}

type serializedSelectRegions struct {
	House    string   `json:"house"`
	Possible []string `json:"possible_regions"`
	Count    int      `json:"count"`
}

func (sr *SelectRegions) SerializeToClient(admin bool, viewer *domain.Player) protocol.SerializedNode {
	return marshalNode(PhaseSelectRegions, serializedSelectRegions{
		House:    sr.houseID,
		Possible: sr.possible,
		Count:    sr.count,
	})
}

func deserializeSelectRegions(parent selectRegionsParent, data json.RawMessage) (*SelectRegions, error) {
	var s serializedSelectRegions
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	sr := &SelectRegions{parent: parent, houseID: s.House, possible: s.Possible, count: s.Count}
	switch p := parent.(type) {
	case *Planning:
		sr.ingame = p.ingame
	}
	return sr, nil
}
