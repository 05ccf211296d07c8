package gamestate

import (
	"encoding/json"
	"sort"

	"agot/internal/domain"
	"agot/internal/protocol"
)

// Ingame is the root of the state tree for one room. It owns the board
// aggregate, the seat bindings, the pending votes and the outbound message
// queue the room adapter drains after every processing step.
type Ingame struct {
	game    *domain.Game
	users   map[string]*domain.User
	players map[string]*domain.Player // keyed by user id

	votes   map[string]*Vote
	voteSeq int
	round   int

	child  Node
	outbox []Outbound
	sink   EventSink
}

// NewIngame builds a root node over the given board and seat bindings. The
// sink may be nil.
func NewIngame(game *domain.Game, users map[string]*domain.User, players map[string]*domain.Player, sink EventSink) *Ingame {
	if sink == nil {
		sink = noopSink{}
	}
	return &Ingame{
		game:    game,
		users:   users,
		players: players,
		votes:   make(map[string]*Vote),
		sink:    sink,
	}
}

// FirstStart begins the first planning round, optionally under opening-round
// placement restrictions. Called exactly once, when the room transitions from
// lobby to game.
func (ig *Ingame) FirstStart(restrictionIDs []string) {
	ig.round = 1
	ig.sink.Record("game-started", map[string]any{"players": len(ig.players)})
	ig.startPlanning(restrictionIDs)
}

// Game exposes the board aggregate for adapters and tests.
func (ig *Ingame) Game() *domain.Game { return ig.game }

// Player resolves a user id to its seat, nil for spectators.
func (ig *Ingame) Player(userID string) *domain.Player { return ig.players[userID] }

// Round returns the current planning round number.
func (ig *Ingame) Round() int { return ig.round }

// Votes returns the pending votes keyed by id.
func (ig *Ingame) Votes() map[string]*Vote { return ig.votes }

func (ig *Ingame) PhaseName() string { return "Ingame" }
func (ig *Ingame) Child() Node       { return ig.child }
func (ig *Ingame) setChild(n Node)   { ig.child = n }

// Drain returns the queued outbound messages and clears the queue.
func (ig *Ingame) Drain() []Outbound {
	out := ig.outbox
	ig.outbox = nil
	return out
}

func (ig *Ingame) sendTo(userID string, msg protocol.ServerMessage) {
	ig.outbox = append(ig.outbox, Outbound{Message: msg, Recipients: []string{userID}})
}

func (ig *Ingame) broadcast(msg protocol.ServerMessage) {
	ig.outbox = append(ig.outbox, Outbound{Message: msg})
}

func (ig *Ingame) sortedUserIDs() []string {
	out := make([]string, 0, len(ig.users))
	for id := range ig.users {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (ig *Ingame) sortedPlayerUserIDs() []string {
	out := make([]string, 0, len(ig.players))
	for id := range ig.players {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// controlsHouse reports whether the player may act for the house: they own
// it, or it is a vassal they currently command. The commander is looked up
// fresh on every call; the relation evolves during play.
func (ig *Ingame) controlsHouse(p *domain.Player, houseID string) bool {
	if p == nil {
		return false
	}
	if p.HouseID == houseID {
		return true
	}
	return ig.game.IsVassalHouse(houseID) && ig.game.CommanderOf(houseID) == p.UserID
}

// depthOf returns the distance of n from the root along the active path, or
// -1 when n is not on it.
func (ig *Ingame) depthOf(n Node) int {
	depth := 0
	for cur := Node(ig); cur != nil; cur = cur.Child() {
		if cur == n {
			return depth
		}
		depth++
	}
	return -1
}

// announceChild broadcasts the freshly installed child of parent as a
// per-viewer phase-transition snapshot. Views differ per recipient because
// serialization hides fields the viewer is not entitled to see.
func (ig *Ingame) announceChild(parent Node) {
	depth := ig.depthOf(parent)
	if depth < 0 || parent.Child() == nil {
		return
	}
	for _, userID := range ig.sortedUserIDs() {
		viewer := ig.players[userID]
		state := parent.Child().SerializeToClient(false, viewer)
		ig.sendTo(userID, protocol.ServerMessage{
			Type:  protocol.MsgGameStateChange,
			Depth: depth,
			State: &state,
		})
	}
}

func (ig *Ingame) startPlanning(restrictionIDs []string) {
	p := newPlanning(ig)
	ig.setChild(p)
	p.firstStart(restrictionIDs)
	ig.announceChild(ig)
}

// onPlanningFinished stamps the finalized order placement onto the board,
// reveals it to the whole room and begins the next round. The action phase
// that would resolve the orders is outside this module.
func (ig *Ingame) onPlanningFinished(placed map[string]*int) {
	ig.game.ClearOrders()

	entries := make([]protocol.PlacedOrderEntry, 0, len(placed))
	for regionID, orderID := range placed {
		if orderID == nil {
			continue
		}
		if r := ig.game.Region(regionID); r != nil {
			r.Order = *orderID
		}
		id := *orderID
		entries = append(entries, protocol.PlacedOrderEntry{RegionID: regionID, OrderID: &id})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].RegionID < entries[j].RegionID })

	ig.broadcast(protocol.ServerMessage{Type: protocol.MsgOrdersRevealed, PlacedOrders: entries})
	ig.sink.Record("orders-revealed", map[string]any{"round": ig.round, "orders": len(entries)})

	ig.round++
	ig.startPlanning(nil)
}

// OnPlayerMessage routes a player message: vote traffic is handled by the
// root itself, everything else is forwarded down to the active leaf.
func (ig *Ingame) OnPlayerMessage(actor *domain.Player, msg protocol.ClientMessage) {
	if actor == nil || ig.players[actor.UserID] == nil {
		return
	}
	if _, over := ig.child.(*Cancelled); over {
		return
	}

	switch msg.Type {
	case protocol.MsgLaunchCancelGameVote:
		ig.launchVote(actor, VoteType{Kind: VoteCancelGame})
	case protocol.MsgLaunchReplacePlayerVote:
		ig.launchVote(actor, VoteType{
			Kind:              VoteReplacePlayer,
			ReplacedUserID:    msg.ReplacedUserID,
			ForHouseID:        msg.ForHouse,
			ReplacementUserID: msg.ReplacementUserID,
		})
	case protocol.MsgVote:
		if msg.Choice == nil {
			return
		}
		ig.handleVote(actor, msg.VoteID, *msg.Choice)
	default:
		if ig.child != nil {
			activeLeaf(ig.child).OnPlayerMessage(actor, msg)
		}
	}
}

// OnServerMessage applies a server broadcast to a client mirror.
func (ig *Ingame) OnServerMessage(msg protocol.ServerMessage) {
	switch msg.Type {
	case protocol.MsgVoteStarted:
		if msg.Vote == nil {
			return
		}
		ig.votes[msg.Vote.ID] = voteFromSerialized(*msg.Vote)
		ig.voteSeq++
	case protocol.MsgVoteCast:
		if v, ok := ig.votes[msg.VoteID]; ok && msg.Choice != nil {
			v.Ballots[msg.UserID] = *msg.Choice
		}
	case protocol.MsgVoteResolved:
		ig.applyVoteResolved(msg.VoteID, msg.Result)
	case protocol.MsgOrdersRevealed:
		ig.game.ClearOrders()
		for _, e := range msg.PlacedOrders {
			if r := ig.game.Region(e.RegionID); r != nil && e.OrderID != nil {
				r.Order = *e.OrderID
			}
		}
		ig.round++
	case protocol.MsgGameStateChange:
		ig.applyStateChange(msg)
	default:
		if ig.child != nil {
			activeLeaf(ig.child).OnServerMessage(msg)
		}
	}
}

func (ig *Ingame) applyStateChange(msg protocol.ServerMessage) {
	if msg.State == nil {
		return
	}
	parent := Node(ig)
	for i := 0; i < msg.Depth; i++ {
		if parent == nil {
			return
		}
		parent = parent.Child()
	}
	if parent == nil {
		return
	}
	child, err := DeserializeNode(parent, *msg.State)
	if err != nil {
		return
	}
	parent.setChild(child)
}

type serializedIngame struct {
	Players         []domain.Player           `json:"players"`
	Users           []domain.User             `json:"users"`
	VassalRelations map[string]string         `json:"vassal_relations"`
	Round           int                       `json:"round"`
	VoteSeq         int                       `json:"vote_seq"`
	Votes           []protocol.SerializedVote `json:"votes"`
	Game            serializedGame            `json:"game"`
	Child           *protocol.SerializedNode  `json:"child,omitempty"`
}

type serializedGame struct {
	Houses            []domain.House  `json:"houses"`
	Regions           []domain.Region `json:"regions"`
	MaxOrdersPerHouse int             `json:"max_orders_per_house"`
}

// SerializeToClient projects the whole tree for one viewer. Board and seat
// data are public; hidden fields live in the child phases, which apply their
// own entitlement rules.
func (ig *Ingame) SerializeToClient(admin bool, viewer *domain.Player) protocol.SerializedNode {
	s := serializedIngame{
		VassalRelations: ig.game.VassalRelations,
		Round:           ig.round,
		VoteSeq:         ig.voteSeq,
		Game: serializedGame{
			MaxOrdersPerHouse: ig.game.MaxOrdersPerHouse,
		},
	}

	for _, userID := range ig.sortedPlayerUserIDs() {
		s.Players = append(s.Players, *ig.players[userID])
	}
	for _, userID := range ig.sortedUserIDs() {
		s.Users = append(s.Users, *ig.users[userID])
	}
	for _, houseID := range ig.game.SortedHouseIDs() {
		s.Game.Houses = append(s.Game.Houses, *ig.game.Houses[houseID])
	}
	regionIDs := make([]string, 0, len(ig.game.Regions))
	for id := range ig.game.Regions {
		regionIDs = append(regionIDs, id)
	}
	sort.Strings(regionIDs)
	for _, id := range regionIDs {
		s.Game.Regions = append(s.Game.Regions, *ig.game.Regions[id])
	}

	voteIDs := make([]string, 0, len(ig.votes))
	for id := range ig.votes {
		voteIDs = append(voteIDs, id)
	}
	sort.Strings(voteIDs)
	for _, id := range voteIDs {
		s.Votes = append(s.Votes, ig.votes[id].serialize())
	}

	if ig.child != nil {
		child := ig.child.SerializeToClient(admin, viewer)
		s.Child = &child
	}

	return marshalNode(PhaseIngame, s)
}

// DeserializeIngame reconstructs a full tree from a serialized root view.
// Used for client hydration on join and for server-side state recovery.
func DeserializeIngame(env protocol.SerializedNode, sink EventSink) (*Ingame, error) {
	var s serializedIngame
	if err := json.Unmarshal(env.Data, &s); err != nil {
		return nil, err
	}

	game := &domain.Game{
		Houses:            make(map[string]*domain.House, len(s.Game.Houses)),
		Regions:           make(map[string]*domain.Region, len(s.Game.Regions)),
		VassalRelations:   s.VassalRelations,
		MaxOrdersPerHouse: s.Game.MaxOrdersPerHouse,
	}
	if game.VassalRelations == nil {
		game.VassalRelations = make(map[string]string)
	}
	for i := range s.Game.Houses {
		h := s.Game.Houses[i]
		game.Houses[h.ID] = &h
	}
	for i := range s.Game.Regions {
		r := s.Game.Regions[i]
		game.Regions[r.ID] = &r
	}

	users := make(map[string]*domain.User, len(s.Users))
	for i := range s.Users {
		u := s.Users[i]
		users[u.ID] = &u
	}
	players := make(map[string]*domain.Player, len(s.Players))
	for i := range s.Players {
		p := s.Players[i]
		players[p.UserID] = &p
	}

	ig := NewIngame(game, users, players, sink)
	ig.round = s.Round
	ig.voteSeq = s.VoteSeq
	for _, sv := range s.Votes {
		ig.votes[sv.ID] = voteFromSerialized(sv)
	}

	if s.Child != nil {
		child, err := DeserializeNode(ig, *s.Child)
		if err != nil {
			return nil, err
		}
		ig.setChild(child)
	}
	return ig, nil
}
