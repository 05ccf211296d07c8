package gamestate

import (
	"fmt"
	"sort"

	"agot/internal/domain"
	"agot/internal/protocol"

	"github.com/google/uuid"
)

// VoteState is the lifecycle of a vote. PASSED and FAILED are terminal.
type VoteState string

const (
	VoteOngoing VoteState = "ONGOING"
	VotePassed  VoteState = "PASSED"
	VoteFailed  VoteState = "FAILED"
)

// VoteKind tags the closed set of vote effect variants.
type VoteKind string

const (
	VoteCancelGame    VoteKind = "cancel-game"
	VoteReplacePlayer VoteKind = "replace-player"
)

// VoteType is the tagged variant describing what a vote does when it passes.
// Only the fields relevant to Kind are set.
type VoteType struct {
	Kind              VoteKind
	ReplacedUserID    string
	ForHouseID        string
	ReplacementUserID string
}

// Verb describes the vote for UIs and audit entries.
func (vt VoteType) Verb() string {
	switch vt.Kind {
	case VoteCancelGame:
		return "cancel the game"
	case VoteReplacePlayer:
		return fmt.Sprintf("replace %s (%s)", vt.ReplacedUserID, vt.ForHouseID)
	default:
		return string(vt.Kind)
	}
}

// voteExecutors applies a passed vote's effect against the root. Keyed by
// tag so the effect set stays closed and serialization stays total.
var voteExecutors = map[VoteKind]func(ig *Ingame, v *Vote){
	VoteCancelGame: func(ig *Ingame, v *Vote) {
		c := &Cancelled{ingame: ig}
		ig.setChild(c)
		c.firstStart()
		ig.announceChild(ig)
	},
	VoteReplacePlayer: func(ig *Ingame, v *Vote) {
		ig.rebindSeat(v.Type)
	},
}

// Vote is a pending quorum decision owned by the Ingame root. Participants
// and threshold are fixed at launch.
type Vote struct {
	ID              string
	InitiatorUserID string
	Type            VoteType
	Participants    []string
	Ballots         map[string]bool
	Threshold       int
	State           VoteState
}

func (v *Vote) isParticipant(userID string) bool {
	for _, id := range v.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

func (v *Vote) yesCount() int {
	n := 0
	for _, choice := range v.Ballots {
		if choice {
			n++
		}
	}
	return n
}

// refreshState moves an ongoing vote to a terminal state when the quorum is
// reached or has become unreachable.
func (v *Vote) refreshState() {
	if v.State != VoteOngoing {
		return
	}
	yes := v.yesCount()
	if yes >= v.Threshold {
		v.State = VotePassed
		return
	}
	undecided := len(v.Participants) - len(v.Ballots)
	if yes+undecided < v.Threshold {
		v.State = VoteFailed
	}
}

func (v *Vote) serialize() protocol.SerializedVote {
	s := protocol.SerializedVote{
		ID:              v.ID,
		InitiatorUserID: v.InitiatorUserID,
		Type: protocol.SerializedVoteType{
			Kind:              string(v.Type.Kind),
			ReplacedUserID:    v.Type.ReplacedUserID,
			ForHouse:          v.Type.ForHouseID,
			ReplacementUserID: v.Type.ReplacementUserID,
		},
		Participants: append([]string(nil), v.Participants...),
		Threshold:    v.Threshold,
		State:        string(v.State),
	}
	userIDs := make([]string, 0, len(v.Ballots))
	for id := range v.Ballots {
		userIDs = append(userIDs, id)
	}
	sort.Strings(userIDs)
	for _, id := range userIDs {
		s.Ballots = append(s.Ballots, protocol.BallotEntry{UserID: id, Choice: v.Ballots[id]})
	}
	return s
}

func voteFromSerialized(s protocol.SerializedVote) *Vote {
	v := &Vote{
		ID:              s.ID,
		InitiatorUserID: s.InitiatorUserID,
		Type: VoteType{
			Kind:              VoteKind(s.Type.Kind),
			ReplacedUserID:    s.Type.ReplacedUserID,
			ForHouseID:        s.Type.ForHouse,
			ReplacementUserID: s.Type.ReplacementUserID,
		},
		Participants: append([]string(nil), s.Participants...),
		Ballots:      make(map[string]bool, len(s.Ballots)),
		Threshold:    s.Threshold,
		State:        VoteState(s.State),
	}
	for _, b := range s.Ballots {
		v.Ballots[b.UserID] = b.Choice
	}
	return v
}

// launchVote validates and opens a new vote among the current players. The
// vote id is derived from a per-room counter so replaying the same message
// sequence yields the same ids.
func (ig *Ingame) launchVote(initiator *domain.Player, vt VoteType) {
	if vt.Kind == VoteReplacePlayer {
		replaced := ig.players[vt.ReplacedUserID]
		if replaced == nil || replaced.HouseID != vt.ForHouseID {
			return
		}
		replacement := ig.users[vt.ReplacementUserID]
		if replacement == nil || ig.players[vt.ReplacementUserID] != nil {
			return
		}
	}

	participants := ig.sortedPlayerUserIDs()
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("vote-%d", ig.voteSeq))).String()
	ig.voteSeq++

	v := &Vote{
		ID:              id,
		InitiatorUserID: initiator.UserID,
		Type:            vt,
		Participants:    participants,
		Ballots:         make(map[string]bool),
		Threshold:       len(participants)/2 + 1,
		State:           VoteOngoing,
	}
	ig.votes[id] = v

	ig.sink.Record("vote-started", map[string]any{"vote": id, "verb": vt.Verb()})
	sv := v.serialize()
	ig.broadcast(protocol.ServerMessage{Type: protocol.MsgVoteStarted, Vote: &sv})
}

// handleVote records a ballot. Re-voting overwrites the prior ballot while
// the vote is ongoing; ballots against a resolved vote are dropped.
func (ig *Ingame) handleVote(actor *domain.Player, voteID string, choice bool) {
	v, ok := ig.votes[voteID]
	if !ok || v.State != VoteOngoing || !v.isParticipant(actor.UserID) {
		return
	}

	v.Ballots[actor.UserID] = choice
	ig.broadcast(protocol.ServerMessage{
		Type:   protocol.MsgVoteCast,
		VoteID: voteID,
		UserID: actor.UserID,
		Choice: protocol.BoolPtr(choice),
	})

	v.refreshState()
	if v.State == VoteOngoing {
		return
	}

	ig.broadcast(protocol.ServerMessage{
		Type:   protocol.MsgVoteResolved,
		VoteID: voteID,
		Result: string(v.State),
	})
	ig.sink.Record("vote-resolved", map[string]any{"vote": voteID, "result": string(v.State)})

	if v.State == VotePassed {
		if exec, ok := voteExecutors[v.Type.Kind]; ok {
			exec(ig, v)
		}
	}
	delete(ig.votes, voteID)
}

// applyVoteResolved mirrors a vote resolution on the client. The cancel-game
// effect arrives separately as a phase-transition broadcast; the seat rebind
// must be applied locally.
func (ig *Ingame) applyVoteResolved(voteID, result string) {
	v, ok := ig.votes[voteID]
	if !ok {
		return
	}
	if VoteState(result) == VotePassed && v.Type.Kind == VoteReplacePlayer {
		ig.rebindSeat(v.Type)
	}
	delete(ig.votes, voteID)
}

// rebindSeat swaps the user bound to a house seat, transferring vassal
// command and any in-flight readiness or ballots recorded under the old user.
func (ig *Ingame) rebindSeat(vt VoteType) {
	old := ig.players[vt.ReplacedUserID]
	if old == nil || old.HouseID != vt.ForHouseID {
		return
	}

	delete(ig.players, vt.ReplacedUserID)
	ig.players[vt.ReplacementUserID] = &domain.Player{UserID: vt.ReplacementUserID, HouseID: vt.ForHouseID}

	for vassalID, commander := range ig.game.VassalRelations {
		if commander == vt.ReplacedUserID {
			ig.game.VassalRelations[vassalID] = vt.ReplacementUserID
		}
	}

	for _, v := range ig.votes {
		for i, id := range v.Participants {
			if id == vt.ReplacedUserID {
				v.Participants[i] = vt.ReplacementUserID
			}
		}
		sort.Strings(v.Participants)
		if choice, ok := v.Ballots[vt.ReplacedUserID]; ok {
			delete(v.Ballots, vt.ReplacedUserID)
			v.Ballots[vt.ReplacementUserID] = choice
		}
	}

	for n := ig.child; n != nil; n = n.Child() {
		if obs, ok := n.(playerReplacedObserver); ok {
			obs.onPlayerReplaced(vt.ReplacedUserID, vt.ReplacementUserID)
		}
	}

	ig.sink.Record("player-replaced", map[string]any{
		"house": vt.ForHouseID,
		"from":  vt.ReplacedUserID,
		"to":    vt.ReplacementUserID,
	})
}

// playerReplacedObserver lets phases holding per-user state follow a seat
// rebind.
type playerReplacedObserver interface {
	onPlayerReplaced(oldUserID, newUserID string)
}
