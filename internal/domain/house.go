package domain

// UnitType identifies a kind of army unit stationed in a region.
type UnitType string

const (
	UnitFootman UnitType = "footman"
	UnitKnight  UnitType = "knight"
	UnitShip    UnitType = "ship"
	UnitSiege   UnitType = "siege"
)

// Unit is a single army unit belonging to a house.
type Unit struct {
	Type  UnitType `json:"type" yaml:"type"`
	House string   `json:"house" yaml:"house"`
}

// House is one of the playable factions. Identity fields never change after
// setup; the counters move during play.
type House struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`

	PowerTokens int              `json:"power_tokens" yaml:"power_tokens"`
	UnitPool    map[UnitType]int `json:"unit_pool" yaml:"unit_pool"`
	HouseCards  []string         `json:"house_cards" yaml:"house_cards"`
}
