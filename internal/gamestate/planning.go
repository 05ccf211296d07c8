package gamestate

import (
	"encoding/json"
	"sort"

	"agot/internal/domain"
	"agot/internal/protocol"
)

// Planning is the composite order-placement phase: one placement round for
// player houses, one for vassal houses, then a discard step for any house
// over the board's order cap.
type Planning struct {
	ingame *Ingame
	child  Node

	restrictionIDs []string
	restrictions   []domain.PlanningRestriction

	// placed holds the finalized placement between the last round and the
	// hand-off to the root. Values are nil only on client mirrors, where a
	// nil order id marks a face-down order.
	placed   map[string]*int
	discards []discardStep
}

type discardStep struct {
	HouseID string `json:"house_id"`
	Count   int    `json:"count"`
}

func newPlanning(ig *Ingame) *Planning {
	return &Planning{ingame: ig}
}

func (p *Planning) firstStart(restrictionIDs []string) {
	for _, id := range restrictionIDs {
		r, ok := domain.GetRestriction(id)
		if !ok {
			continue
		}
		p.restrictionIDs = append(p.restrictionIDs, id)
		p.restrictions = append(p.restrictions, r)
	}

	p.ingame.sink.Record("planning-phase-began", map[string]any{
		"round":        p.ingame.round,
		"restrictions": p.restrictionIDs,
	})

	po := newPlaceOrders(p)
	p.setChild(po)
	po.firstStart(nil, false)
}

func (p *Planning) PhaseName() string { return "Planning" }
func (p *Planning) Child() Node       { return p.child }
func (p *Planning) setChild(n Node)   { p.child = n }

// onPlaceOrdersFinish receives a completed placement round. After the player
// round it opens the vassal round when the board has vassals; after the last
// round it moves to the discard step.
func (p *Planning) onPlaceOrdersFinish(forVassals bool, placed map[string]*int) {
	if !forVassals && len(p.ingame.game.VassalRelations) > 0 {
		po := newPlaceOrders(p)
		p.setChild(po)
		po.firstStart(placed, true)
		p.ingame.announceChild(p)
		return
	}

	p.placed = placed
	p.computeDiscards()
	p.advance()
}

// computeDiscards queues every house holding more orders than the cap
// allows, in stable house order.
func (p *Planning) computeDiscards() {
	max := p.ingame.game.MaxOrdersPerHouse
	if max <= 0 {
		return
	}
	for _, houseID := range p.ingame.game.SortedHouseIDs() {
		count := 0
		for regionID := range p.placed {
			if r := p.ingame.game.Region(regionID); r != nil && r.Controller == houseID {
				count++
			}
		}
		if count > max {
			p.discards = append(p.discards, discardStep{HouseID: houseID, Count: count - max})
		}
	}
}

// advance starts the next discard selection or hands the finalized placement
// to the root. The whole planning subtree is re-announced on every discard
// step: mirrors must see the carried placement and the remaining queue, not
// just the new leaf.
func (p *Planning) advance() {
	if len(p.discards) == 0 {
		p.ingame.onPlanningFinished(p.placed)
		return
	}

	step := p.discards[0]
	var possible []string
	for regionID := range p.placed {
		if r := p.ingame.game.Region(regionID); r != nil && r.Controller == step.HouseID {
			possible = append(possible, regionID)
		}
	}
	sort.Strings(possible)

	sr := newSelectRegions(p, p.ingame)
	p.setChild(sr)
	sr.firstStart(step.HouseID, possible, step.Count)
	p.ingame.announceChild(p.ingame)
}

// onSelectRegionsFinish removes the discarded orders and continues the queue.
func (p *Planning) onSelectRegionsFinish(houseID string, regionIDs []string) {
	for _, id := range regionIDs {
		delete(p.placed, id)
	}
	p.discards = p.discards[1:]
	p.ingame.sink.Record("orders-discarded", map[string]any{"house": houseID, "regions": regionIDs})
	p.advance()
}

// Planning handles no messages itself; everything is consumed by its leaf.
func (p *Planning) OnPlayerMessage(actor *domain.Player, msg protocol.ClientMessage) {}
func (p *Planning) OnServerMessage(msg protocol.ServerMessage)                       {}

type serializedPlanning struct {
	RestrictionIDs []string                    `json:"restriction_ids"`
	PlacedOrders   []protocol.PlacedOrderEntry `json:"placed_orders"`
	Discards       []discardStep               `json:"discards"`
	Child          *protocol.SerializedNode    `json:"child,omitempty"`
}

func (p *Planning) SerializeToClient(admin bool, viewer *domain.Player) protocol.SerializedNode {
	s := serializedPlanning{
		RestrictionIDs: p.restrictionIDs,
		PlacedOrders:   serializePlacement(p.ingame, p.placed, admin, viewer),
		Discards:       p.discards,
	}
	if p.child != nil {
		child := p.child.SerializeToClient(admin, viewer)
		s.Child = &child
	}
	return marshalNode(PhasePlanning, s)
}

func deserializePlanning(ig *Ingame, data json.RawMessage) (*Planning, error) {
	var s serializedPlanning
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}

	p := newPlanning(ig)
	p.restrictionIDs = s.RestrictionIDs
	for _, id := range s.RestrictionIDs {
		if r, ok := domain.GetRestriction(id); ok {
			p.restrictions = append(p.restrictions, r)
		}
	}
	p.placed = placementFromEntries(s.PlacedOrders)
	p.discards = s.Discards

	if s.Child != nil {
		child, err := DeserializeNode(p, *s.Child)
		if err != nil {
			return nil, err
		}
		p.setChild(child)
	}
	return p, nil
}
