package domain

import "testing"

func testGame(t *testing.T) *Game {
	t.Helper()
	g, err := NewGame(DefaultSetup())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g
}

func TestOrderableRegionsRequireUnits(t *testing.T) {
	g := testGame(t)

	got := g.OrderableRegions("stark")
	want := []string{"the-shivering-sea", "white-harbor", "winterfell"}
	if len(got) != len(want) {
		t.Fatalf("orderable = %v, want %v", got, want)
	}
	for i, r := range got {
		if r.ID != want[i] {
			t.Fatalf("orderable[%d] = %s, want %s", i, r.ID, want[i])
		}
	}

	// karhold is controlled but empty, the-reach is uncontrolled.
	for _, r := range got {
		if r.ID == "karhold" || r.ID == "the-reach" {
			t.Fatalf("region %s must not be orderable", r.ID)
		}
	}
}

func TestAvailableOrdersExcludeUsedTokens(t *testing.T) {
	g := testGame(t)

	placed := map[string]int{
		"winterfell":   1,
		"white-harbor": 4,
		// Another house's token does not count against stark.
		"lannisport": 7,
	}
	for _, o := range g.AvailableOrders(placed, "stark", nil) {
		if o.ID == 1 || o.ID == 4 {
			t.Fatalf("used token %d still available", o.ID)
		}
		if o.ID == 7 {
			return
		}
	}
	t.Fatal("token used by another house must stay available")
}

func TestAvailableOrdersHonorRestrictions(t *testing.T) {
	g := testGame(t)

	noStarred, _ := GetRestriction("no-starred")
	noRaid, _ := GetRestriction("no-raid")

	for _, o := range g.AvailableOrders(nil, "stark", []PlanningRestriction{noStarred, noRaid}) {
		if o.Starred {
			t.Fatalf("starred order %d available under no-starred", o.ID)
		}
		if o.Kind == OrderRaid {
			t.Fatalf("raid order %d available under no-raid", o.ID)
		}
	}
}

func TestVassalCommandQueries(t *testing.T) {
	g := testGame(t)
	g.AssignVassals([]string{"alice", "bob"})

	if !g.IsVassalHouse("arryn") {
		t.Fatal("arryn must be a vassal")
	}
	if g.IsVassalHouse("stark") {
		t.Fatal("stark must not be a vassal")
	}
	if got := g.CommanderOf("arryn"); got != "alice" {
		t.Fatalf("commander = %q, want alice", got)
	}
	if got := g.VassalsCommandedBy("alice"); len(got) != 1 || got[0] != "arryn" {
		t.Fatalf("commanded = %v, want [arryn]", got)
	}
	if got := g.VassalsCommandedBy("bob"); len(got) != 0 {
		t.Fatalf("commanded = %v, want none", got)
	}
}

func TestClearOrders(t *testing.T) {
	g := testGame(t)
	g.Region("winterfell").Order = 3
	g.Region("lannisport").Order = 5

	g.ClearOrders()
	for id, r := range g.Regions {
		if r.Order != 0 {
			t.Fatalf("region %s still holds order %d", id, r.Order)
		}
	}
}
