package domain

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed setup.yaml
var defaultSetupYAML []byte

// Setup is the declarative board description a game is built from.
type Setup struct {
	Houses  []SetupHouse  `yaml:"houses"`
	Regions []SetupRegion `yaml:"regions"`
	Vassals []string      `yaml:"vassals"`

	MaxOrdersPerHouse int `yaml:"max_orders_per_house"`
}

type SetupHouse struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Color       string   `yaml:"color"`
	PowerTokens int      `yaml:"power_tokens"`
	HouseCards  []string `yaml:"house_cards"`
}

type SetupRegion struct {
	ID         string     `yaml:"id"`
	Name       string     `yaml:"name"`
	Controller string     `yaml:"controller"`
	Units      []UnitType `yaml:"units"`
}

// LoadSetup reads a board setup from a YAML file.
func LoadSetup(path string) (*Setup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSetup(raw)
}

// DefaultSetup returns the embedded baseline board.
func DefaultSetup() *Setup {
	s, err := parseSetup(defaultSetupYAML)
	if err != nil {
		panic("embedded setup.yaml invalid: " + err.Error())
	}
	return s
}

func parseSetup(raw []byte) (*Setup, error) {
	var s Setup
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("setup.yaml: %w", err)
	}
	return &s, nil
}

// NewGame materializes a Game from the setup. Vassal houses are left without
// commanders until AssignVassals distributes them.
func NewGame(setup *Setup) (*Game, error) {
	g := &Game{
		Houses:            make(map[string]*House, len(setup.Houses)),
		Regions:           make(map[string]*Region, len(setup.Regions)),
		VassalRelations:   make(map[string]string),
		MaxOrdersPerHouse: setup.MaxOrdersPerHouse,
	}

	for _, sh := range setup.Houses {
		if _, dup := g.Houses[sh.ID]; dup {
			return nil, fmt.Errorf("duplicate house %q", sh.ID)
		}
		g.Houses[sh.ID] = &House{
			ID:          sh.ID,
			Name:        sh.Name,
			Color:       sh.Color,
			PowerTokens: sh.PowerTokens,
			UnitPool:    map[UnitType]int{},
			HouseCards:  append([]string(nil), sh.HouseCards...),
		}
	}

	for _, sr := range setup.Regions {
		if _, dup := g.Regions[sr.ID]; dup {
			return nil, fmt.Errorf("duplicate region %q", sr.ID)
		}
		if sr.Controller != "" && g.Houses[sr.Controller] == nil {
			return nil, fmt.Errorf("region %q controlled by unknown house %q", sr.ID, sr.Controller)
		}
		region := &Region{ID: sr.ID, Name: sr.Name, Controller: sr.Controller}
		for _, ut := range sr.Units {
			region.Units = append(region.Units, Unit{Type: ut, House: sr.Controller})
		}
		g.Regions[sr.ID] = region
	}

	for _, vassalID := range setup.Vassals {
		if g.Houses[vassalID] == nil {
			return nil, fmt.Errorf("vassal %q is not a house", vassalID)
		}
		g.VassalRelations[vassalID] = ""
	}

	return g, nil
}

// AssignVassals distributes the setup's vassal houses round-robin over the
// seated players, in stable house order.
func (g *Game) AssignVassals(playerUserIDs []string) {
	if len(playerUserIDs) == 0 {
		return
	}
	i := 0
	for _, houseID := range g.SortedHouseIDs() {
		if !g.IsVassalHouse(houseID) {
			continue
		}
		g.VassalRelations[houseID] = playerUserIDs[i%len(playerUserIDs)]
		i++
	}
}
