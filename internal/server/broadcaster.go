package server

import (
	"github.com/charmbracelet/log"

	"github.com/viettienlv97/game-server/internal/game"
	"github.com/viettienlv97/game-server/internal/protocol"
	"github.com/viettienlv97/game-server/internal/registry"
)

// Broadcaster fans events out to the connections of a table or game. It is
// only called from registry commit callbacks, so events of one game leave
// in the order the game changed.
type Broadcaster struct {
	hub    *Hub
	logger *log.Logger
}

// NewBroadcaster creates a broadcaster over hub.
func NewBroadcaster(hub *Hub, logger *log.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, logger: logger.WithPrefix("broadcast")}
}

func (b *Broadcaster) encode(typ string, data any) []byte {
	frame, err := protocol.Encode(typ, data)
	if err != nil {
		b.logger.Error("Failed to encode event", "type", typ, "error", err)
		return nil
	}
	return frame
}

// Reply sends one event to c.
func (b *Broadcaster) Reply(c *Connection, typ string, data any) {
	if frame := b.encode(typ, data); frame != nil {
		c.Send(frame)
	}
}

// ToTable sends one event to every connection at tableID except skip.
func (b *Broadcaster) ToTable(tableID string, skip *Connection, typ string, data any) {
	frame := b.encode(typ, data)
	if frame == nil {
		return
	}
	conns := b.hub.Connections(func(c *Connection) bool {
		_, t := c.Context()
		return c != skip && t == tableID
	})
	for _, c := range conns {
		c.Send(frame)
	}
	b.logger.Debug("Broadcasted to table", "table", tableID, "type", typ, "recipients", len(conns))
}

// ToGame sends one event to every connection mapped to gameID except skip.
func (b *Broadcaster) ToGame(gameID string, skip *Connection, typ string, data any) {
	frame := b.encode(typ, data)
	if frame == nil {
		return
	}
	for _, c := range b.gameConns(gameID) {
		if c != skip {
			c.Send(frame)
		}
	}
}

func (b *Broadcaster) gameConns(gameID string) []*Connection {
	return b.hub.Connections(func(c *Connection) bool {
		g, _ := c.Context()
		return g == gameID
	})
}

// Snapshot sends every connection mapped to g its own view of g.
func (b *Broadcaster) Snapshot(g *game.Game) {
	conns := b.gameConns(g.ID)
	for _, c := range conns {
		b.Reply(c, protocol.TypeGameStateUpdate, protocol.GameState{GameState: g.ViewFor(c.UserID())})
	}
	b.logger.Debug("Sent snapshots", "game", g.ID, "status", g.Status, "recipients", len(conns))
}

// Publish emits the state after a committed change. When the table moved on
// to a successor game, the finished game's connections get its final view
// first; then every connection at the table is mapped to the current game
// and receives a snapshot of it.
func (b *Broadcaster) Publish(ch registry.Change) {
	next := ch.Current()
	if ch.Game != nil && ch.Game != next {
		b.Snapshot(ch.Game)
	}
	if next == nil {
		return
	}
	for _, c := range b.hub.Connections(nil) {
		c.follow(ch.Table.ID, next.ID)
	}
	b.Snapshot(next)
}
