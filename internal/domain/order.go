package domain

import "sort"

// OrderKind classifies an order token.
type OrderKind string

const (
	OrderMarch            OrderKind = "march"
	OrderDefense          OrderKind = "defense"
	OrderSupport          OrderKind = "support"
	OrderRaid             OrderKind = "raid"
	OrderConsolidatePower OrderKind = "consolidate-power"
)

// Order is an immutable entry in the fixed order catalogue. Placement of an
// order on a region is separate per-turn state and lives in the planning
// phase, not here.
type Order struct {
	ID       int       `json:"id"`
	Kind     OrderKind `json:"kind"`
	Starred  bool      `json:"starred"`
	Strength int       `json:"strength"` // march modifier or defense/support bonus
}

// The fixed fifteen-token order set every house draws from each turn.
var orderCatalogue = map[int]Order{
	1:  {ID: 1, Kind: OrderMarch, Strength: -1},
	2:  {ID: 2, Kind: OrderMarch, Strength: 0},
	3:  {ID: 3, Kind: OrderMarch, Starred: true, Strength: 1},
	4:  {ID: 4, Kind: OrderDefense, Strength: 1},
	5:  {ID: 5, Kind: OrderDefense, Strength: 1},
	6:  {ID: 6, Kind: OrderDefense, Starred: true, Strength: 2},
	7:  {ID: 7, Kind: OrderSupport},
	8:  {ID: 8, Kind: OrderSupport},
	9:  {ID: 9, Kind: OrderSupport, Starred: true, Strength: 1},
	10: {ID: 10, Kind: OrderRaid},
	11: {ID: 11, Kind: OrderRaid},
	12: {ID: 12, Kind: OrderRaid, Starred: true},
	13: {ID: 13, Kind: OrderConsolidatePower},
	14: {ID: 14, Kind: OrderConsolidatePower},
	15: {ID: 15, Kind: OrderConsolidatePower, Starred: true},
}

// GetOrder resolves an order id against the catalogue.
func GetOrder(id int) (Order, bool) {
	o, ok := orderCatalogue[id]
	return o, ok
}

// AllOrders returns the catalogue sorted by id.
func AllOrders() []Order {
	out := make([]Order, 0, len(orderCatalogue))
	for _, o := range orderCatalogue {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlanningRestriction removes matching order types from availability while it
// is active. Restrictions are referenced by id so phases can serialize them.
type PlanningRestriction struct {
	ID         string
	Restricted func(Order) bool
}

var restrictionCatalogue = map[string]PlanningRestriction{
	"no-support":           {ID: "no-support", Restricted: func(o Order) bool { return o.Kind == OrderSupport }},
	"no-defense":           {ID: "no-defense", Restricted: func(o Order) bool { return o.Kind == OrderDefense }},
	"no-raid":              {ID: "no-raid", Restricted: func(o Order) bool { return o.Kind == OrderRaid }},
	"no-consolidate-power": {ID: "no-consolidate-power", Restricted: func(o Order) bool { return o.Kind == OrderConsolidatePower }},
	"no-march-plus-one":    {ID: "no-march-plus-one", Restricted: func(o Order) bool { return o.Kind == OrderMarch && o.Strength > 0 }},
	"no-starred":           {ID: "no-starred", Restricted: func(o Order) bool { return o.Starred }},
}

// GetRestriction resolves a restriction id against the catalogue.
func GetRestriction(id string) (PlanningRestriction, bool) {
	r, ok := restrictionCatalogue[id]
	return r, ok
}

// IsOrderRestricted reports whether any active restriction removes the order.
func IsOrderRestricted(order Order, restrictions []PlanningRestriction) bool {
	for _, r := range restrictions {
		if r.Restricted(order) {
			return true
		}
	}
	return false
}
