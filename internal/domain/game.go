package domain

import "sort"

// Game is the board-level aggregate: houses, regions and the vassal relation.
// It carries no phase state; the state tree queries it.
type Game struct {
	Houses  map[string]*House  `json:"houses"`
	Regions map[string]*Region `json:"regions"`

	// VassalRelations maps a vassal house id to the user id of the player
	// currently commanding it. The mapping evolves during play; callers must
	// not cache a commander beyond a single message-handling step.
	VassalRelations map[string]string `json:"vassal_relations"`

	// MaxOrdersPerHouse caps how many orders a house may keep after a
	// planning round. Zero means no cap.
	MaxOrdersPerHouse int `json:"max_orders_per_house"`
}

// House resolves a house id, nil if unknown.
func (g *Game) House(id string) *House {
	return g.Houses[id]
}

// Region resolves a region id, nil if unknown.
func (g *Game) Region(id string) *Region {
	return g.Regions[id]
}

// IsVassalHouse reports whether the house is commanded through the vassal
// relation rather than owned by a player.
func (g *Game) IsVassalHouse(houseID string) bool {
	_, ok := g.VassalRelations[houseID]
	return ok
}

// CommanderOf returns the user id currently commanding the vassal house, or
// "" when the house is not a vassal.
func (g *Game) CommanderOf(vassalHouseID string) string {
	return g.VassalRelations[vassalHouseID]
}

// VassalsCommandedBy returns the vassal house ids assigned to the user,
// sorted for stable iteration.
func (g *Game) VassalsCommandedBy(userID string) []string {
	var out []string
	for houseID, commander := range g.VassalRelations {
		if commander == userID {
			out = append(out, houseID)
		}
	}
	sort.Strings(out)
	return out
}

// ControlledRegions returns the regions controlled by the house, sorted by id.
func (g *Game) ControlledRegions(houseID string) []*Region {
	var out []*Region
	for _, r := range g.Regions {
		if r.Controller == houseID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OrderableRegions returns the controlled regions that hold at least one
// unit, the only regions an order may be placed in.
func (g *Game) OrderableRegions(houseID string) []*Region {
	var out []*Region
	for _, r := range g.ControlledRegions(houseID) {
		if r.HasUnits() {
			out = append(out, r)
		}
	}
	return out
}

// AvailableOrders returns the catalogue orders the house may still place
// given the current placement map (region id -> order id) and active
// restrictions. Each token exists once, so an order placed in any region the
// house controls is no longer available to it.
func (g *Game) AvailableOrders(placed map[string]int, houseID string, restrictions []PlanningRestriction) []Order {
	used := make(map[int]bool, len(placed))
	for regionID, orderID := range placed {
		if r := g.Region(regionID); r != nil && r.Controller == houseID {
			used[orderID] = true
		}
	}

	var out []Order
	for _, o := range AllOrders() {
		if used[o.ID] || IsOrderRestricted(o, restrictions) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ClearOrders removes every stamped order from the board.
func (g *Game) ClearOrders() {
	for _, r := range g.Regions {
		r.Order = 0
	}
}

// SortedHouseIDs returns all house ids in stable order.
func (g *Game) SortedHouseIDs() []string {
	out := make([]string, 0, len(g.Houses))
	for id := range g.Houses {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
