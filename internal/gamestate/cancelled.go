package gamestate

import (
	"agot/internal/domain"
	"agot/internal/protocol"
)

// Cancelled is the terminal node a passed cancel-game vote installs at the
// root, pre-empting whatever phase was active. It consumes nothing.
type Cancelled struct {
	ingame *Ingame
}

func (c *Cancelled) firstStart() {
	c.ingame.sink.Record("game-cancelled", nil)
}

func (c *Cancelled) PhaseName() string { return "Cancelled" }
func (c *Cancelled) Child() Node       { return nil }
func (c *Cancelled) setChild(Node)     {}

func (c *Cancelled) OnPlayerMessage(actor *domain.Player, msg protocol.ClientMessage) {}
func (c *Cancelled) OnServerMessage(msg protocol.ServerMessage)                       {}

func (c *Cancelled) SerializeToClient(admin bool, viewer *domain.Player) protocol.SerializedNode {
	return marshalNode(PhaseCancelled, struct{}{})
}
