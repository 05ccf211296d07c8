package client

import (
	"bytes"
	"encoding/json"
	"testing"

	"agot/internal/domain"
	"agot/internal/gamestate"
	"agot/internal/protocol"
)

// newServerTree builds a started authoritative tree with three seated
// players and one spectator, mirroring the embedded board.
func newServerTree(t *testing.T) *gamestate.Ingame {
	t.Helper()

	game, err := domain.NewGame(domain.DefaultSetup())
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	users := map[string]*domain.User{
		"alice": {ID: "alice", Name: "Alice", Connected: true},
		"bob":   {ID: "bob", Name: "Bob", Connected: true},
		"carol": {ID: "carol", Name: "Carol", Connected: true},
		"dave":  {ID: "dave", Name: "Dave", Connected: true},
	}
	players := map[string]*domain.Player{
		"alice": {UserID: "alice", HouseID: "baratheon"},
		"bob":   {UserID: "bob", HouseID: "lannister"},
		"carol": {UserID: "carol", HouseID: "stark"},
	}
	game.AssignVassals([]string{"alice", "bob", "carol"})

	ig := gamestate.NewIngame(game, users, players, nil)
	ig.FirstStart(nil)
	ig.Drain()
	return ig
}

func hydrateFor(t *testing.T, ig *gamestate.Ingame, userID string) *Mirror {
	t.Helper()
	m, err := Hydrate(ig.SerializeToClient(false, ig.Player(userID)))
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	return m
}

// applyOutbound replays every drained message visible to the user onto the
// mirror, exactly as the transport would deliver it.
func applyOutbound(m *Mirror, out []gamestate.Outbound, userID string) {
	for _, ob := range out {
		if len(ob.Recipients) == 0 {
			m.Apply(ob.Message)
			continue
		}
		for _, id := range ob.Recipients {
			if id == userID {
				m.Apply(ob.Message)
				break
			}
		}
	}
}

func viewBytes(t *testing.T, n protocol.SerializedNode) []byte {
	t.Helper()
	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	return raw
}

func requireSameView(t *testing.T, ig *gamestate.Ingame, m *Mirror, userID string) {
	t.Helper()
	serverView := viewBytes(t, ig.SerializeToClient(false, ig.Player(userID)))
	mirrorView := viewBytes(t, m.Ingame().SerializeToClient(false, m.Ingame().Player(userID)))
	if !bytes.Equal(serverView, mirrorView) {
		t.Fatalf("mirror diverged from server:\n%s\nvs\n%s", serverView, mirrorView)
	}
}

func place(ig *gamestate.Ingame, userID, house, regionID string, orderID int) {
	ig.OnPlayerMessage(ig.Player(userID), protocol.ClientMessage{
		Type:     protocol.MsgPlaceOrder,
		House:    house,
		RegionID: regionID,
		OrderID:  protocol.IntPtr(orderID),
	})
}

func readyUp(ig *gamestate.Ingame, userID string) {
	ig.OnPlayerMessage(ig.Player(userID), protocol.ClientMessage{Type: protocol.MsgReady})
}

func TestMirrorTracksPlacementRound(t *testing.T) {
	ig := newServerTree(t)
	m := hydrateFor(t, ig, "bob")
	requireSameView(t, ig, m, "bob")

	// A hidden placement by alice, a visible one by bob, a clear, a ready.
	place(ig, "alice", "baratheon", "dragonstone", 3)
	place(ig, "bob", "lannister", "lannisport", 1)
	ig.OnPlayerMessage(ig.Player("bob"), protocol.ClientMessage{
		Type:     protocol.MsgPlaceOrder,
		House:    "lannister",
		RegionID: "lannisport",
	})
	place(ig, "bob", "lannister", "lannisport", 4)
	readyUp(ig, "bob")
	applyOutbound(m, ig.Drain(), "bob")

	requireSameView(t, ig, m, "bob")
}

func TestMirrorTracksFullRoundIncludingReveal(t *testing.T) {
	ig := newServerTree(t)
	m := hydrateFor(t, ig, "bob")

	place(ig, "alice", "baratheon", "dragonstone", 1)
	place(ig, "alice", "baratheon", "kingswood", 4)
	place(ig, "alice", "baratheon", "shipbreaker-bay", 7)
	place(ig, "bob", "lannister", "lannisport", 1)
	place(ig, "bob", "lannister", "stoney-sept", 4)
	place(ig, "bob", "lannister", "the-golden-sound", 7)
	place(ig, "carol", "stark", "winterfell", 1)
	place(ig, "carol", "stark", "white-harbor", 4)
	place(ig, "carol", "stark", "the-shivering-sea", 7)
	readyUp(ig, "alice")
	readyUp(ig, "bob")
	readyUp(ig, "carol")
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	// Vassal round: alice orders for arryn, everyone readies, the round
	// ends with a public reveal and a fresh planning phase.
	place(ig, "alice", "arryn", "the-eyrie", 2)
	readyUp(ig, "alice")
	readyUp(ig, "bob")
	readyUp(ig, "carol")
	applyOutbound(m, ig.Drain(), "bob")

	requireSameView(t, ig, m, "bob")
	if m.Ingame().Round() != 2 {
		t.Fatalf("mirror round = %d, want 2", m.Ingame().Round())
	}
	if got := m.Ingame().Game().Region("dragonstone").Order; got != 1 {
		t.Fatalf("mirror board order = %d, want 1", got)
	}
}

func TestMirrorTracksVotes(t *testing.T) {
	ig := newServerTree(t)
	m := hydrateFor(t, ig, "bob")

	ig.OnPlayerMessage(ig.Player("alice"), protocol.ClientMessage{
		Type:              protocol.MsgLaunchReplacePlayerVote,
		ReplacedUserID:    "carol",
		ForHouse:          "stark",
		ReplacementUserID: "dave",
	})
	var voteID string
	for id := range ig.Votes() {
		voteID = id
	}
	if voteID == "" {
		t.Fatal("vote was not created")
	}
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	cast := func(userID string, choice bool) {
		ig.OnPlayerMessage(ig.Player(userID), protocol.ClientMessage{
			Type:   protocol.MsgVote,
			VoteID: voteID,
			Choice: protocol.BoolPtr(choice),
		})
	}
	cast("alice", true)
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	cast("bob", true)
	applyOutbound(m, ig.Drain(), "bob")

	// The passed vote rebound the seat on both sides.
	if ig.Player("dave") == nil || m.Ingame().Player("dave") == nil {
		t.Fatal("seat rebind not replicated")
	}
	requireSameView(t, ig, m, "bob")
}

func TestMirrorTracksCancellation(t *testing.T) {
	ig := newServerTree(t)
	m := hydrateFor(t, ig, "bob")

	ig.OnPlayerMessage(ig.Player("alice"), protocol.ClientMessage{Type: protocol.MsgLaunchCancelGameVote})
	var voteID string
	for id := range ig.Votes() {
		voteID = id
	}
	for _, userID := range []string{"alice", "bob"} {
		ig.OnPlayerMessage(ig.Player(userID), protocol.ClientMessage{
			Type:   protocol.MsgVote,
			VoteID: voteID,
			Choice: protocol.BoolPtr(true),
		})
	}
	applyOutbound(m, ig.Drain(), "bob")

	if _, ok := m.Ingame().Child().(*gamestate.Cancelled); !ok {
		t.Fatalf("mirror child is %T, want *Cancelled", m.Ingame().Child())
	}
	requireSameView(t, ig, m, "bob")
}

// discardMirror drives the server into the discard selection step for
// lannister and returns bob's hydrated mirror.
func discardMirror(t *testing.T) (*gamestate.Ingame, *Mirror) {
	t.Helper()
	ig := newServerTree(t)
	ig.Game().MaxOrdersPerHouse = 1

	place(ig, "alice", "baratheon", "dragonstone", 1)
	place(ig, "alice", "baratheon", "kingswood", 4)
	place(ig, "alice", "baratheon", "shipbreaker-bay", 7)
	place(ig, "bob", "lannister", "lannisport", 1)
	place(ig, "bob", "lannister", "stoney-sept", 4)
	place(ig, "bob", "lannister", "the-golden-sound", 7)
	place(ig, "carol", "stark", "winterfell", 1)
	place(ig, "carol", "stark", "white-harbor", 4)
	place(ig, "carol", "stark", "the-shivering-sea", 7)
	for _, u := range []string{"alice", "bob", "carol"} {
		readyUp(ig, u)
	}
	place(ig, "alice", "arryn", "the-eyrie", 2)
	for _, u := range []string{"alice", "bob", "carol"} {
		readyUp(ig, u)
	}
	// baratheon discards first; advance to lannister's turn.
	ig.OnPlayerMessage(ig.Player("alice"), protocol.ClientMessage{
		Type:      protocol.MsgSelectRegions,
		RegionIDs: []string{"dragonstone", "kingswood"},
	})
	ig.Drain()

	return ig, hydrateFor(t, ig, "bob")
}

func TestMirrorSelectionLifecycle(t *testing.T) {
	ig, m := discardMirror(t)

	sr, ok := m.Ingame().Child().(*gamestate.Planning).Child().(*gamestate.SelectRegions)
	if !ok {
		t.Fatal("mirror leaf is not the selection phase")
	}
	if sr.HouseID() != "lannister" || sr.Count() != 2 {
		t.Fatalf("selection = %s/%d, want lannister/2", sr.HouseID(), sr.Count())
	}

	// Ineligible regions and over-selection are refused locally.
	if m.ToggleRegion("winterfell") {
		t.Fatal("ineligible region toggled on")
	}
	if !m.ToggleRegion("lannisport") || !m.ToggleRegion("stoney-sept") {
		t.Fatal("eligible regions refused")
	}
	if m.ToggleRegion("the-golden-sound") {
		t.Fatal("selection grew past the required count")
	}

	// Toggling off frees a slot.
	if !m.ToggleRegion("stoney-sept") {
		t.Fatal("toggle off refused")
	}
	if got := m.Selection(); len(got) != 1 || got[0] != "lannisport" {
		t.Fatalf("selection = %v, want [lannisport]", got)
	}

	// Confirmation requires the exact count.
	if _, ok := m.ConfirmSelection(); ok {
		t.Fatal("confirmation with a short selection must be refused")
	}
	m.ToggleRegion("stoney-sept")
	msg, ok := m.ConfirmSelection()
	if !ok {
		t.Fatal("confirmation refused with a full selection")
	}
	if msg.Type != protocol.MsgSelectRegions || len(msg.RegionIDs) != 2 {
		t.Fatalf("confirmation message = %+v", msg)
	}
	if len(m.Selection()) != 0 {
		t.Fatal("confirmation must clear the provisional selection")
	}

	// The server accepts the confirmation and the mirror follows the
	// resulting transition.
	ig.OnPlayerMessage(ig.Player("bob"), msg)
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")
}

func TestMirrorTracksCappedRoundFromStart(t *testing.T) {
	ig := newServerTree(t)
	ig.Game().MaxOrdersPerHouse = 1
	m := hydrateFor(t, ig, "bob")

	place(ig, "alice", "baratheon", "dragonstone", 1)
	place(ig, "alice", "baratheon", "kingswood", 4)
	place(ig, "alice", "baratheon", "shipbreaker-bay", 7)
	place(ig, "bob", "lannister", "lannisport", 1)
	place(ig, "bob", "lannister", "stoney-sept", 4)
	place(ig, "bob", "lannister", "the-golden-sound", 7)
	place(ig, "carol", "stark", "winterfell", 1)
	place(ig, "carol", "stark", "white-harbor", 4)
	place(ig, "carol", "stark", "the-shivering-sea", 7)
	for _, u := range []string{"alice", "bob", "carol"} {
		readyUp(ig, u)
	}
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	place(ig, "alice", "arryn", "the-eyrie", 2)
	for _, u := range []string{"alice", "bob", "carol"} {
		readyUp(ig, u)
	}
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	// The mirror that followed from the start carries the discard queue and
	// the full placement, with foreign order ids hidden.
	sr, ok := m.Ingame().Child().(*gamestate.Planning).Child().(*gamestate.SelectRegions)
	if !ok {
		t.Fatal("mirror leaf is not the selection phase")
	}
	if sr.HouseID() != "baratheon" || sr.Count() != 2 {
		t.Fatalf("selection = %s/%d, want baratheon/2", sr.HouseID(), sr.Count())
	}

	// Every discard confirmation is replicated, entry by entry.
	ig.OnPlayerMessage(ig.Player("alice"), protocol.ClientMessage{
		Type:      protocol.MsgSelectRegions,
		RegionIDs: []string{"dragonstone", "kingswood"},
	})
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	ig.OnPlayerMessage(ig.Player("bob"), protocol.ClientMessage{
		Type:      protocol.MsgSelectRegions,
		RegionIDs: []string{"lannisport", "stoney-sept"},
	})
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	ig.OnPlayerMessage(ig.Player("carol"), protocol.ClientMessage{
		Type:      protocol.MsgSelectRegions,
		RegionIDs: []string{"winterfell", "white-harbor"},
	})
	applyOutbound(m, ig.Drain(), "bob")
	requireSameView(t, ig, m, "bob")

	// The round ended: surviving orders are stamped on the mirror's board
	// and a fresh planning phase is active.
	if m.Ingame().Round() != 2 {
		t.Fatalf("mirror round = %d, want 2", m.Ingame().Round())
	}
	for region, want := range map[string]int{
		"shipbreaker-bay":   7,
		"the-golden-sound":  7,
		"the-shivering-sea": 7,
		"the-eyrie":         2,
		"dragonstone":       0,
		"lannisport":        0,
	} {
		if got := m.Ingame().Game().Region(region).Order; got != want {
			t.Fatalf("mirror board order at %s = %d, want %d", region, got, want)
		}
	}
}

func TestMirrorResetAndTransitionClearSelection(t *testing.T) {
	ig, m := discardMirror(t)

	m.ToggleRegion("lannisport")
	m.ResetSelection()
	if len(m.Selection()) != 0 {
		t.Fatal("reset did not clear the selection")
	}

	// A phase transition discards any provisional picks.
	m.ToggleRegion("lannisport")
	m.ToggleRegion("stoney-sept")
	ig.OnPlayerMessage(ig.Player("bob"), protocol.ClientMessage{
		Type:      protocol.MsgSelectRegions,
		RegionIDs: []string{"lannisport", "stoney-sept"},
	})
	applyOutbound(m, ig.Drain(), "bob")
	if len(m.Selection()) != 0 {
		t.Fatal("transition did not clear the selection")
	}
}
