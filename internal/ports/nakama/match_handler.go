package nakama

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"

	"agot/internal/config"
	"agot/internal/domain"
	"agot/internal/gamestate"
	"agot/internal/protocol"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Label is the match label advertised for find-match queries.
type Label struct {
	Open  int    `json:"open"`
	Game  string `json:"game"`
	State string `json:"state"`
}

// MatchState holds the per-room runtime state for the Nakama match handler.
// The authoritative game tree lives in Ingame once the owner starts play;
// before that the room is a lobby.
type MatchState struct {
	Presences map[string]runtime.Presence `json:"-"`
	Users     map[string]*domain.User     `json:"-"`

	// SeatedUserIDs lists lobby occupants in join order. The first
	// MaxSeats of them become players on start; later joiners spectate.
	SeatedUserIDs []string `json:"seated_user_ids"`
	OwnerUserID   string   `json:"owner_user_id"`
	MaxSeats      int      `json:"max_seats"`

	Setup  *domain.Setup     `json:"-"`
	Ingame *gamestate.Ingame `json:"-"`
}

func (ms *MatchState) openSeats() int {
	if ms.Ingame != nil {
		return 0
	}
	n := ms.MaxSeats - len(ms.SeatedUserIDs)
	if n < 0 {
		return 0
	}
	return n
}

func (ms *MatchState) isSeated(userID string) bool {
	for _, id := range ms.SeatedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// NewMatch is the factory function registered with Nakama.
func NewMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
	return &matchHandler{}, nil
}

type matchHandler struct{}

// loggerSink adapts the Nakama logger to the state tree's audit sink.
type loggerSink struct {
	logger runtime.Logger
}

func (s loggerSink) Record(event string, fields map[string]any) {
	if len(fields) == 0 {
		s.logger.Info("%s", event)
		return
	}
	s.logger.WithFields(fields).Info("%s", event)
}

func (mh *matchHandler) MatchInit(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, params map[string]interface{}) (interface{}, int, string) {
	cfg := config.GetMatchConfig()

	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	setupPath := cfg.SetupPath
	if v, ok := env["agot_setup_path"]; ok && v != "" {
		setupPath = v
	}

	setup := domain.DefaultSetup()
	if setupPath != "" {
		loaded, err := domain.LoadSetup(setupPath)
		if err != nil {
			logger.Warn("MatchInit: could not load setup %q, using embedded board: %v", setupPath, err)
		} else {
			setup = loaded
		}
	}

	vassals := make(map[string]bool, len(setup.Vassals))
	for _, id := range setup.Vassals {
		vassals[id] = true
	}
	maxSeats := 0
	for _, h := range setup.Houses {
		if !vassals[h.ID] {
			maxSeats++
		}
	}

	state := &MatchState{
		Presences: make(map[string]runtime.Presence),
		Users:     make(map[string]*domain.User),
		MaxSeats:  maxSeats,
		Setup:     setup,
	}

	labelBytes, err := json.Marshal(Label{Open: state.openSeats(), Game: "agot", State: "lobby"})
	if err != nil {
		logger.Error("MatchInit: failed to marshal label: %v", err)
		return nil, 0, ""
	}

	tickRate := 1
	return state, tickRate, string(labelBytes)
}

func (mh *matchHandler) MatchJoinAttempt(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presence runtime.Presence, metadata map[string]string) (interface{}, bool, string) {
	// Spectators and rejoining players are always welcome; they receive a
	// full snapshot and can be voted in as replacements.
	return state, true, ""
}

func (mh *matchHandler) MatchJoin(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchJoin: state not found")
		return state
	}

	for _, p := range presences {
		uid := p.GetUserId()
		matchState.Presences[uid] = p

		if u, known := matchState.Users[uid]; known {
			u.Connected = true
			u.Name = p.GetUsername()
		} else {
			matchState.Users[uid] = &domain.User{ID: uid, Name: p.GetUsername(), Connected: true}
		}

		if matchState.Ingame == nil && !matchState.isSeated(uid) && matchState.openSeats() > 0 {
			matchState.SeatedUserIDs = append(matchState.SeatedUserIDs, uid)
			if matchState.OwnerUserID == "" {
				matchState.OwnerUserID = uid
			}
		}

		evt, _ := json.Marshal(map[string]any{
			"user_id": uid,
			"seated":  matchState.isSeated(uid),
			"owner":   uid == matchState.OwnerUserID,
		})
		_ = dispatcher.BroadcastMessage(OpPlayerJoined, evt, nil, nil, true)

		if matchState.Ingame != nil {
			mh.sendSnapshot(matchState, dispatcher, logger, uid)
		}
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

func (mh *matchHandler) MatchLeave(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, presences []runtime.Presence) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		logger.Error("MatchLeave: state not found")
		return state
	}

	for _, p := range presences {
		uid := p.GetUserId()
		delete(matchState.Presences, uid)
		if u, known := matchState.Users[uid]; known {
			u.Connected = false
		}

		// Pre-game, a leaver frees their seat; in-game the seat stays
		// bound until a replace-player vote rebinds it.
		if matchState.Ingame == nil {
			for i, id := range matchState.SeatedUserIDs {
				if id == uid {
					matchState.SeatedUserIDs = append(matchState.SeatedUserIDs[:i], matchState.SeatedUserIDs[i+1:]...)
					break
				}
			}
			if matchState.OwnerUserID == uid {
				matchState.OwnerUserID = ""
				if len(matchState.SeatedUserIDs) > 0 {
					matchState.OwnerUserID = matchState.SeatedUserIDs[0]
				}
			}
		}

		evt, _ := json.Marshal(map[string]any{"user_id": uid})
		_ = dispatcher.BroadcastMessage(OpPlayerLeft, evt, nil, nil, true)
	}

	if len(matchState.Presences) == 0 && matchState.Ingame == nil {
		logger.Info("MatchLeave: empty lobby, terminating match")
		return nil
	}

	mh.updateLabel(matchState, dispatcher, logger)
	return matchState
}

// MatchLoop drains the room's ordered inbound queue. Messages are processed
// strictly serially, so no two mutations of the same tree ever race.
func (mh *matchHandler) MatchLoop(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, messages []runtime.MatchData) interface{} {
	matchState, ok := state.(*MatchState)
	if !ok {
		return state
	}

	for _, msg := range messages {
		switch msg.GetOpCode() {
		case OpStartGame:
			mh.handleStartGame(matchState, dispatcher, logger, msg)
		case OpClientCommand:
			mh.handleClientCommand(matchState, dispatcher, logger, msg)
		default:
			logger.Warn("MatchLoop: unknown opcode received: %d", msg.GetOpCode())
		}
	}

	return matchState
}

func (mh *matchHandler) handleStartGame(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	if state.Ingame != nil {
		return
	}
	uid := msg.GetUserId()
	if uid != state.OwnerUserID {
		logger.Warn("StartGame: user %s is not the owner", uid)
		return
	}

	cfg := config.GetMatchConfig()
	if len(state.SeatedUserIDs) < cfg.MinPlayersToStart {
		logger.Warn("StartGame: cannot start with %d players, need at least %d", len(state.SeatedUserIDs), cfg.MinPlayersToStart)
		return
	}

	game, err := domain.NewGame(state.Setup)
	if err != nil {
		logger.Error("StartGame: invalid setup: %v", err)
		return
	}

	// Non-vassal houses in stable order, bound to seats in join order.
	players := make(map[string]*domain.Player, len(state.SeatedUserIDs))
	var playable []string
	for _, houseID := range game.SortedHouseIDs() {
		if !game.IsVassalHouse(houseID) {
			playable = append(playable, houseID)
		}
	}
	for i, userID := range state.SeatedUserIDs {
		if i >= len(playable) {
			break
		}
		players[userID] = &domain.Player{UserID: userID, HouseID: playable[i]}
	}

	playerIDs := make([]string, 0, len(players))
	for id := range players {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)
	game.AssignVassals(playerIDs)

	state.Ingame = gamestate.NewIngame(game, state.Users, players, loggerSink{logger})
	state.Ingame.FirstStart(cfg.FirstRoundRestrictions)

	evt, _ := json.Marshal(map[string]any{"players": len(players)})
	_ = dispatcher.BroadcastMessage(OpGameStarted, evt, nil, nil, true)

	for _, userID := range sortedKeys(state.Users) {
		mh.sendSnapshot(state, dispatcher, logger, userID)
	}
	mh.dispatchOutbound(state, dispatcher, logger)
	mh.updateLabel(state, dispatcher, logger)
}

func (mh *matchHandler) handleClientCommand(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, msg runtime.MatchData) {
	if state.Ingame == nil {
		return
	}

	command, err := protocol.DecodeClientMessage(msg.GetData())
	if err != nil {
		// Malformed traffic is dropped without signal; one bad client
		// must not disturb the room.
		logger.Debug("ClientCommand: dropped from %s: %v", msg.GetUserId(), err)
		return
	}

	actor := state.Ingame.Player(msg.GetUserId())
	state.Ingame.OnPlayerMessage(actor, command)
	mh.dispatchOutbound(state, dispatcher, logger)
	mh.updateLabel(state, dispatcher, logger)
}

// dispatchOutbound fans the tree's queued messages out to the room.
func (mh *matchHandler) dispatchOutbound(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	for _, out := range state.Ingame.Drain() {
		data, err := json.Marshal(out.Message)
		if err != nil {
			logger.Error("dispatchOutbound: marshal %s: %v", out.Message.Type, err)
			continue
		}

		var recipients []runtime.Presence
		if len(out.Recipients) > 0 {
			for _, uid := range out.Recipients {
				if p, ok := state.Presences[uid]; ok {
					recipients = append(recipients, p)
				}
			}
			// All intended recipients are offline; never widen a
			// targeted message into a broadcast.
			if len(recipients) == 0 {
				continue
			}
		}

		_ = dispatcher.BroadcastMessage(opcodeFor(out.Message.Type), data, recipients, nil, true)
	}
}

// sendSnapshot delivers a compressed, per-viewer full-state snapshot.
func (mh *matchHandler) sendSnapshot(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger, userID string) {
	presence, ok := state.Presences[userID]
	if !ok {
		return
	}

	view := state.Ingame.SerializeToClient(false, state.Ingame.Player(userID))
	data, err := protocol.EncodeSnapshot(protocol.ServerMessage{
		Type:  protocol.MsgFullSnapshot,
		State: &view,
	})
	if err != nil {
		logger.Error("sendSnapshot: %v", err)
		return
	}
	_ = dispatcher.BroadcastMessage(OpFullSnapshot, data, []runtime.Presence{presence}, nil, true)
}

func opcodeFor(msgType string) int64 {
	switch msgType {
	case protocol.MsgOrderPlaced:
		return OpOrderPlaced
	case protocol.MsgRemovePlacedOrder:
		return OpRemovePlacedOrder
	case protocol.MsgPlayerReady:
		return OpPlayerReady
	case protocol.MsgOrdersRevealed:
		return OpOrdersRevealed
	case protocol.MsgVoteStarted:
		return OpVoteStarted
	case protocol.MsgVoteCast:
		return OpVoteCast
	case protocol.MsgVoteResolved:
		return OpVoteResolved
	case protocol.MsgGameStateChange:
		return OpGameStateChange
	default:
		return OpGameStateChange
	}
}

func (mh *matchHandler) updateLabel(state *MatchState, dispatcher runtime.MatchDispatcher, logger runtime.Logger) {
	labelState := "lobby"
	if state.Ingame != nil {
		labelState = "playing"
		if _, over := state.Ingame.Child().(*gamestate.Cancelled); over {
			labelState = "cancelled"
		}
	}

	labelBytes, err := json.Marshal(Label{Open: state.openSeats(), Game: "agot", State: labelState})
	if err != nil {
		logger.Error("updateLabel: failed to marshal: %v", err)
		return
	}
	if err := dispatcher.MatchLabelUpdate(string(labelBytes)); err != nil {
		logger.Error("updateLabel: failed to update: %v", err)
	}
}

func (mh *matchHandler) MatchTerminate(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, reason int) interface{} {
	logger.Debug("MatchTerminate: match terminated for reason %d", reason)
	return state
}

func (mh *matchHandler) MatchSignal(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, dispatcher runtime.MatchDispatcher, tick int64, state interface{}, data string) (interface{}, string) {
	return state, ""
}

func sortedKeys(m map[string]*domain.User) []string {
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
