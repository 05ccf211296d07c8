package nakama

const (
	// RpcFindMatchID is the Nakama RPC id clients call to find or create a room.
	RpcFindMatchID = "find_match"

	// RpcCreateMatchID is the Nakama RPC id clients call to open a private room.
	RpcCreateMatchID = "create_match"

	// MatchName is the authoritative match handler name registered with Nakama.
	MatchName = "agot_match"

	// MatchLabelKeyOpenSeats is the label key advertising open seats.
	MatchLabelKeyOpenSeats = "open"
)

// Op codes for client messages and server events.
const (
	// Client -> Server
	OpClientCommand int64 = 1 // typed JSON command, discriminated by its type field
	OpStartGame     int64 = 2 // lobby only, owner starts the game

	// Server -> Client events
	OpOrderPlaced       int64 = 101
	OpRemovePlacedOrder int64 = 102
	OpPlayerReady       int64 = 103
	OpOrdersRevealed    int64 = 104
	OpVoteStarted       int64 = 105
	OpVoteCast          int64 = 106
	OpVoteResolved      int64 = 107
	OpGameStateChange   int64 = 108
	OpFullSnapshot      int64 = 109 // zstd-compressed, sent on join/resync
	OpPlayerJoined      int64 = 110
	OpPlayerLeft        int64 = 111
	OpGameStarted       int64 = 112
)
