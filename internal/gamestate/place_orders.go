package gamestate

import (
	"encoding/json"
	"sort"

	"agot/internal/domain"
	"agot/internal/protocol"
)

// PlaceOrders is one simultaneous placement round. With forVassals false
// every player orders for their own house; with forVassals true every player
// orders for the vassal houses they currently command.
type PlaceOrders struct {
	planning *Planning
	ingame   *Ingame

	// placedOrders maps region id to order id. On the authoritative tree
	// values are never nil; a mirror stores nil for an order it knows
	// exists but may not see.
	placedOrders map[string]*int
	readyUserIDs []string
	forVassals   bool
}

func newPlaceOrders(p *Planning) *PlaceOrders {
	return &PlaceOrders{planning: p, ingame: p.ingame}
}

func (po *PlaceOrders) firstStart(orders map[string]*int, forVassals bool) {
	if orders == nil {
		orders = make(map[string]*int)
	}
	po.placedOrders = orders
	po.forVassals = forVassals
	po.ingame.sink.Record("place-orders-began", map[string]any{"for_vassals": forVassals})
}

func (po *PlaceOrders) PhaseName() string { return "PlaceOrders" }
func (po *PlaceOrders) Child() Node       { return nil }
func (po *PlaceOrders) setChild(Node)     {}

// housesToPutOrdersFor returns the houses the player must place orders for
// in this round.
func (po *PlaceOrders) housesToPutOrdersFor(p *domain.Player) []string {
	if !po.forVassals {
		return []string{p.HouseID}
	}
	return po.ingame.game.VassalsCommandedBy(p.UserID)
}

// resolvedPlacement converts the map for availability queries. Only the
// authoritative side calls this; values are never nil there.
func (po *PlaceOrders) resolvedPlacement() map[string]int {
	out := make(map[string]int, len(po.placedOrders))
	for regionID, orderID := range po.placedOrders {
		if orderID != nil {
			out[regionID] = *orderID
		}
	}
	return out
}

func (po *PlaceOrders) availableOrders(houseID string) []domain.Order {
	return po.ingame.game.AvailableOrders(po.resolvedPlacement(), houseID, po.planning.restrictions)
}

func (po *PlaceOrders) isOrderAvailable(houseID string, order domain.Order) bool {
	for _, o := range po.availableOrders(houseID) {
		if o.ID == order.ID {
			return true
		}
	}
	return false
}

// IsReady reports whether the user has declared readiness.
func (po *PlaceOrders) IsReady(userID string) bool {
	for _, id := range po.readyUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// canReady holds when, for every house the player must order for, every
// eligible region has an order or the house has no order types left. A house
// may legitimately control more regions than it has orders for.
func (po *PlaceOrders) canReady(p *domain.Player) bool {
	for _, houseID := range po.housesToPutOrdersFor(p) {
		allPlaced := true
		for _, r := range po.ingame.game.OrderableRegions(houseID) {
			if _, ok := po.placedOrders[r.ID]; !ok {
				allPlaced = false
				break
			}
		}
		if allPlaced {
			continue
		}
		if len(po.availableOrders(houseID)) == 0 {
			continue
		}
		return false
	}
	return true
}

func (po *PlaceOrders) OnPlayerMessage(actor *domain.Player, msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.MsgPlaceOrder:
		po.handlePlaceOrder(actor, msg)
	case protocol.MsgReady:
		po.handleReady(actor)
	}
}

func (po *PlaceOrders) handlePlaceOrder(actor *domain.Player, msg protocol.ClientMessage) {
	authorized := false
	for _, houseID := range po.housesToPutOrdersFor(actor) {
		if houseID == msg.House {
			authorized = true
			break
		}
	}
	if !authorized {
		return
	}

	region := po.ingame.game.Region(msg.RegionID)
	if region == nil || region.Controller != msg.House || !region.HasUnits() {
		return
	}

	if msg.OrderID != nil {
		order, ok := domain.GetOrder(*msg.OrderID)
		if !ok || !po.isOrderAvailable(msg.House, order) {
			return
		}

		id := order.ID
		po.placedOrders[region.ID] = &id

		po.ingame.sendTo(actor.UserID, protocol.ServerMessage{
			Type:     protocol.MsgOrderPlaced,
			RegionID: region.ID,
			OrderID:  protocol.IntPtr(order.ID),
		})
		// Everyone else only learns that the region now holds an order.
		for _, userID := range po.ingame.sortedUserIDs() {
			if userID == actor.UserID {
				continue
			}
			po.ingame.sendTo(userID, protocol.ServerMessage{
				Type:     protocol.MsgOrderPlaced,
				RegionID: region.ID,
			})
		}
		return
	}

	// A nil order clears the placement; the map entry is removed entirely.
	if _, ok := po.placedOrders[region.ID]; !ok {
		return
	}
	delete(po.placedOrders, region.ID)
	po.ingame.broadcast(protocol.ServerMessage{
		Type:     protocol.MsgRemovePlacedOrder,
		RegionID: region.ID,
	})
}

func (po *PlaceOrders) handleReady(actor *domain.Player) {
	if po.IsReady(actor.UserID) || !po.canReady(actor) {
		return
	}
	po.readyUserIDs = append(po.readyUserIDs, actor.UserID)

	if len(po.readyUserIDs) == len(po.ingame.players) {
		po.planning.onPlaceOrdersFinish(po.forVassals, po.placedOrders)
		return
	}
	po.ingame.broadcast(protocol.ServerMessage{
		Type:   protocol.MsgPlayerReady,
		UserID: actor.UserID,
	})
}

func (po *PlaceOrders) OnServerMessage(msg protocol.ServerMessage) {
	switch msg.Type {
	case protocol.MsgOrderPlaced:
		var id *int
		if msg.OrderID != nil {
			v := *msg.OrderID
			id = &v
		}
		po.placedOrders[msg.RegionID] = id
	case protocol.MsgRemovePlacedOrder:
		delete(po.placedOrders, msg.RegionID)
	case protocol.MsgPlayerReady:
		if !po.IsReady(msg.UserID) {
			po.readyUserIDs = append(po.readyUserIDs, msg.UserID)
		}
	}
}

func (po *PlaceOrders) onPlayerReplaced(oldUserID, newUserID string) {
	for i, id := range po.readyUserIDs {
		if id == oldUserID {
			po.readyUserIDs[i] = newUserID
		}
	}
}

type serializedPlaceOrders struct {
	PlacedOrders []protocol.PlacedOrderEntry `json:"placed_orders"`
	ReadyUserIDs []string                    `json:"ready_user_ids"`
	ForVassals   bool                        `json:"for_vassals"`
}

func (po *PlaceOrders) SerializeToClient(admin bool, viewer *domain.Player) protocol.SerializedNode {
	return marshalNode(PhasePlaceOrders, serializedPlaceOrders{
		PlacedOrders: serializePlacement(po.ingame, po.placedOrders, admin, viewer),
		ReadyUserIDs: po.readyUserIDs,
		ForVassals:   po.forVassals,
	})
}

func deserializePlaceOrders(p *Planning, data json.RawMessage) (*PlaceOrders, error) {
	var s serializedPlaceOrders
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	po := newPlaceOrders(p)
	po.placedOrders = placementFromEntries(s.PlacedOrders)
	po.readyUserIDs = s.ReadyUserIDs
	po.forVassals = s.ForVassals
	return po, nil
}

// serializePlacement projects a placement map for one viewer. Every entry is
// listed, so the fact that a region holds an order is public, but the order
// id is withheld unless the viewer is the admin, owns the controlling house,
// or currently commands it as a vassal.
func serializePlacement(ig *Ingame, placed map[string]*int, admin bool, viewer *domain.Player) []protocol.PlacedOrderEntry {
	regionIDs := make([]string, 0, len(placed))
	for id := range placed {
		regionIDs = append(regionIDs, id)
	}
	sort.Strings(regionIDs)

	entries := make([]protocol.PlacedOrderEntry, 0, len(regionIDs))
	for _, regionID := range regionIDs {
		entry := protocol.PlacedOrderEntry{RegionID: regionID}
		region := ig.game.Region(regionID)
		entitled := admin
		if !entitled && viewer != nil && region != nil && region.Controller != "" {
			entitled = ig.controlsHouse(viewer, region.Controller)
		}
		if entitled && placed[regionID] != nil {
			v := *placed[regionID]
			entry.OrderID = &v
		}
		entries = append(entries, entry)
	}
	return entries
}

func placementFromEntries(entries []protocol.PlacedOrderEntry) map[string]*int {
	out := make(map[string]*int, len(entries))
	for _, e := range entries {
		var id *int
		if e.OrderID != nil {
			v := *e.OrderID
			id = &v
		}
		out[e.RegionID] = id
	}
	return out
}
