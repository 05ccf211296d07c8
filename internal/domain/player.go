package domain

// User is a connected account known to the room. Spectators are users without
// a player seat.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
}

// Player is a seat binding exactly one user to exactly one house for the
// game's duration. A vassal house has no player of its own; it is commanded
// through the game's vassal relation instead.
type Player struct {
	UserID  string `json:"user_id"`
	HouseID string `json:"house_id"`
}
