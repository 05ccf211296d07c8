package nakama

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

// CreateMatchResponse is the payload returned when a client asks for a fresh
// private room instead of joining through matchmaking.
type CreateMatchResponse struct {
	MatchID string `json:"match_id"`
}

// RpcCreateMatch always creates a new room. Seat and owner assignment happen
// in MatchJoin; the creator joins like everyone else.
func RpcCreateMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	matchID, err := nk.MatchCreate(ctx, MatchName, map[string]interface{}{})
	if err != nil {
		logger.Error("RpcCreateMatch [User:%s]: Failed to create match: %v", userID, err)
		return "", err
	}

	b, err := json.Marshal(CreateMatchResponse{MatchID: matchID})
	if err != nil {
		return "", err
	}
	logger.Info("RpcCreateMatch [User:%s]: Created private match %s", userID, matchID)
	return string(b), nil
}
