// Package nakama adapts the game core to the Nakama runtime: it registers
// the RPCs and the authoritative match handler, and translates between match
// data frames and the typed room protocol.
package nakama

import (
	"context"
	"database/sql"

	"agot/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule wires RPCs and match handlers for the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	env, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	if path, ok := env["agot_match_config"]; ok && path != "" {
		if err := config.LoadMatchConfig(path); err != nil {
			logger.Warn("InitModule: match config %q not loaded, using defaults: %v", path, err)
		}
	}

	if err := initializer.RegisterRpc(RpcFindMatchID, RpcFindMatch); err != nil {
		return err
	}
	if err := initializer.RegisterRpc(RpcCreateMatchID, RpcCreateMatch); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchName, NewMatch); err != nil {
		return err
	}

	logger.Info("agot Go module loaded.")
	return nil
}
