package domain

// Region is a map location. Controller is the owning house id or "" when
// unclaimed. Order is the revealed order id stamped after a planning phase
// completes, 0 when none.
type Region struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	Controller string `json:"controller" yaml:"controller"`
	Units      []Unit `json:"units" yaml:"units"`
	Order      int    `json:"order,omitempty" yaml:"-"`
}

// HasUnits reports whether any unit is stationed in the region.
func (r *Region) HasUnits() bool {
	return len(r.Units) > 0
}
