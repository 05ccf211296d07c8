package nakama

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RpcFindMatch searches for a lobby with an open seat and returns its match
// id, creating a fresh room when none is available.
//
// Payload: unused.
// Returns: string containing the match id.
func RpcFindMatch(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	userID, _ := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)

	limit := 1
	authoritative := true
	labelQuery := fmt.Sprintf("+label.%s:>=1", MatchLabelKeyOpenSeats)
	minSize := 0
	maxSize := 16

	matches, err := nk.MatchList(ctx, limit, authoritative, "", &minSize, &maxSize, labelQuery)
	if err != nil {
		logger.Error("RpcFindMatch [User:%s]: Failed to list matches: %v", userID, err)
		return "", err
	}

	if len(matches) > 0 {
		matchID := matches[0].MatchId
		logger.Info("RpcFindMatch [User:%s]: Found existing match %s", userID, matchID)
		return matchID, nil
	}

	matchID, err := nk.MatchCreate(ctx, MatchName, nil)
	if err != nil {
		logger.Error("RpcFindMatch [User:%s]: Failed to create match: %v", userID, err)
		return "", err
	}

	logger.Info("RpcFindMatch [User:%s]: Created new match %s", userID, matchID)
	return matchID, nil
}
