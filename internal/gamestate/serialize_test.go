package gamestate

import (
	"bytes"
	"encoding/json"
	"testing"

	"agot/internal/protocol"
)

func marshalView(t *testing.T, n protocol.SerializedNode) []byte {
	t.Helper()
	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal view: %v", err)
	}
	return raw
}

func TestSerializationIsDeterministic(t *testing.T) {
	ig, _ := newTestIngame(t)
	placeOrder(ig, "alice", "baratheon", "dragonstone", 1)
	placeOrder(ig, "bob", "lannister", "lannisport", 4)
	launchCancelVote(t, ig, "carol")
	ig.Drain()

	first := marshalView(t, ig.SerializeToClient(true, nil))
	second := marshalView(t, ig.SerializeToClient(true, nil))
	if !bytes.Equal(first, second) {
		t.Fatal("identical state must serialize to identical bytes")
	}
}

func TestIndependentReplayProducesIdenticalState(t *testing.T) {
	// Two trees built from scratch, fed the same ordered message sequence,
	// must end in byte-identical state, vote ids included.
	replay := func() *Ingame {
		ig, _ := newTestIngame(t)
		placeOrder(ig, "alice", "baratheon", "dragonstone", 1)
		placeOrder(ig, "bob", "lannister", "lannisport", 4)
		placeOrder(ig, "bob", "lannister", "lannisport", 5)
		ig.OnPlayerMessage(ig.Player("carol"), protocol.ClientMessage{Type: protocol.MsgLaunchCancelGameVote})
		voteID := firstVoteID(ig)
		ballots := []struct {
			userID string
			choice bool
		}{{"alice", true}, {"bob", false}, {"carol", false}}
		for _, b := range ballots {
			ig.OnPlayerMessage(ig.Player(b.userID), protocol.ClientMessage{
				Type:   protocol.MsgVote,
				VoteID: voteID,
				Choice: protocol.BoolPtr(b.choice),
			})
		}
		ig.OnPlayerMessage(ig.Player("bob"), protocol.ClientMessage{
			Type:              protocol.MsgLaunchReplacePlayerVote,
			ReplacedUserID:    "carol",
			ForHouse:          "stark",
			ReplacementUserID: "dave",
		})
		ig.Drain()
		return ig
	}

	first := replay()
	second := replay()
	if !bytes.Equal(marshalView(t, first.SerializeToClient(true, nil)), marshalView(t, second.SerializeToClient(true, nil))) {
		t.Fatal("independent replays of the same message sequence diverged")
	}
}

func TestSerializationHidesOrdersPerViewer(t *testing.T) {
	ig, _ := newTestIngame(t)
	placeOrder(ig, "alice", "baratheon", "dragonstone", 3)
	ig.Drain()

	findEntry := func(view protocol.SerializedNode) *protocol.PlacedOrderEntry {
		// ingame -> planning -> place-orders
		var root struct {
			Child *protocol.SerializedNode `json:"child"`
		}
		if err := json.Unmarshal(view.Data, &root); err != nil || root.Child == nil {
			t.Fatalf("bad root view: %v", err)
		}
		var planning struct {
			Child *protocol.SerializedNode `json:"child"`
		}
		if err := json.Unmarshal(root.Child.Data, &planning); err != nil || planning.Child == nil {
			t.Fatalf("bad planning view: %v", err)
		}
		var po serializedPlaceOrders
		if err := json.Unmarshal(planning.Child.Data, &po); err != nil {
			t.Fatalf("bad place-orders view: %v", err)
		}
		for i := range po.PlacedOrders {
			if po.PlacedOrders[i].RegionID == "dragonstone" {
				return &po.PlacedOrders[i]
			}
		}
		return nil
	}

	owner := findEntry(ig.SerializeToClient(false, ig.Player("alice")))
	if owner == nil || owner.OrderID == nil || *owner.OrderID != 3 {
		t.Fatalf("owner view = %+v, want order id 3", owner)
	}

	other := findEntry(ig.SerializeToClient(false, ig.Player("bob")))
	if other == nil {
		t.Fatal("other players must still see that the region holds an order")
	}
	if other.OrderID != nil {
		t.Fatal("other players must not see the order id")
	}

	spectator := findEntry(ig.SerializeToClient(false, nil))
	if spectator == nil || spectator.OrderID != nil {
		t.Fatalf("spectator view = %+v, want hidden order", spectator)
	}

	admin := findEntry(ig.SerializeToClient(true, nil))
	if admin == nil || admin.OrderID == nil || *admin.OrderID != 3 {
		t.Fatalf("admin view = %+v, want order id 3", admin)
	}
}

func TestCommanderSeesVassalOrders(t *testing.T) {
	ig, _ := newTestIngame(t)
	completePlayerRound(t, ig)
	placeOrder(ig, "alice", "arryn", "the-eyrie", 2)
	ig.Drain()

	extract := func(view protocol.SerializedNode, regionID string) *int {
		var root struct {
			Child *protocol.SerializedNode `json:"child"`
		}
		if err := json.Unmarshal(view.Data, &root); err != nil || root.Child == nil {
			t.Fatalf("bad root view: %v", err)
		}
		var planning struct {
			Child *protocol.SerializedNode `json:"child"`
		}
		if err := json.Unmarshal(root.Child.Data, &planning); err != nil || planning.Child == nil {
			t.Fatalf("bad planning view: %v", err)
		}
		var po serializedPlaceOrders
		if err := json.Unmarshal(planning.Child.Data, &po); err != nil {
			t.Fatalf("bad place-orders view: %v", err)
		}
		for _, e := range po.PlacedOrders {
			if e.RegionID == regionID {
				return e.OrderID
			}
		}
		t.Fatalf("region %s not listed", regionID)
		return nil
	}

	// alice commands arryn and sees its order; bob does not.
	if got := extract(ig.SerializeToClient(false, ig.Player("alice")), "the-eyrie"); got == nil || *got != 2 {
		t.Fatalf("commander view = %v, want 2", got)
	}
	if got := extract(ig.SerializeToClient(false, ig.Player("bob")), "the-eyrie"); got != nil {
		t.Fatalf("non-commander sees vassal order id %d", *got)
	}
}

func TestSerializeRoundTripsByteIdentical(t *testing.T) {
	build := func(name string) *Ingame {
		ig, _ := newTestIngame(t)
		switch name {
		case "fresh planning":
		case "mid placement":
			placeOrder(ig, "alice", "baratheon", "dragonstone", 1)
			placeOrder(ig, "bob", "lannister", "lannisport", 4)
			ready(ig, "bob")
		case "vassal round":
			completePlayerRound(t, ig)
		case "pending vote":
			launchCancelVote(t, ig, "alice")
			castBallot(ig, "alice", firstVoteID(ig), true)
		case "discard selection":
			ig.Game().MaxOrdersPerHouse = 1
			completePlayerRound(t, ig)
			completeVassalRound(t, ig)
		case "cancelled":
			c := &Cancelled{ingame: ig}
			ig.setChild(c)
			c.firstStart()
		}
		ig.Drain()
		return ig
	}

	for _, name := range []string{
		"fresh planning",
		"mid placement",
		"vassal round",
		"pending vote",
		"discard selection",
		"cancelled",
	} {
		t.Run(name, func(t *testing.T) {
			ig := build(name)

			view := ig.SerializeToClient(true, nil)
			restored, err := DeserializeIngame(view, nil)
			if err != nil {
				t.Fatalf("DeserializeIngame: %v", err)
			}
			again := restored.SerializeToClient(true, nil)

			if !bytes.Equal(marshalView(t, view), marshalView(t, again)) {
				t.Fatalf("round trip changed bytes:\n%s\nvs\n%s", marshalView(t, view), marshalView(t, again))
			}
		})
	}
}

func firstVoteID(ig *Ingame) string {
	for id := range ig.Votes() {
		return id
	}
	return ""
}

func TestDeserializeRejectsUnknownPhase(t *testing.T) {
	ig, _ := newTestIngame(t)
	if _, err := DeserializeNode(ig, protocol.SerializedNode{Type: "battle", Data: []byte("{}")}); err == nil {
		t.Fatal("unknown phase type must fail deserialization")
	}
	// Parent/child pairing is enforced.
	if _, err := DeserializeNode(placeOrdersLeaf(t, ig), protocol.SerializedNode{Type: PhasePlanning, Data: []byte("{}")}); err == nil {
		t.Fatal("planning under a non-root parent must fail")
	}
}
