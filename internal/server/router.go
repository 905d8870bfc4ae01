package server

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/game"
	"github.com/viettienlv97/game-server/internal/protocol"
	"github.com/viettienlv97/game-server/internal/registry"
)

// Router decodes inbound frames and dispatches them to the registry. Every
// event a command produces is emitted from the registry commit callback.
type Router struct {
	registry *registry.Registry
	out      *Broadcaster
	logger   *log.Logger
}

// NewRouter creates a router.
func NewRouter(reg *registry.Registry, out *Broadcaster, logger *log.Logger) *Router {
	return &Router{registry: reg, out: out, logger: logger.WithPrefix("router")}
}

// Handle processes one inbound frame from c.
func (rt *Router) Handle(c *Connection, raw []byte) {
	cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		rt.out.Reply(c, protocol.TypeError, protocol.ErrorData{Message: apperr.Public(err)})
		return
	}
	rt.logger.Debug("Received command", "type", cmd.Type(), "user", c.UserID())

	switch cmd := cmd.(type) {
	case protocol.JoinTable:
		rt.joinTable(c, cmd)
	case protocol.LeaveTable:
		rt.leaveTable(c, cmd)
	case protocol.Action:
		rt.action(c, cmd)
	case protocol.GetState:
		rt.getState(c, cmd)
	}
}

func (rt *Router) joinTable(c *Connection, cmd protocol.JoinTable) {
	_, err := rt.registry.JoinTable(c.ctx, c.UserID(), cmd.TableID, cmd.BuyinAmount, func(ch registry.Change) {
		c.SetContext(ch.Current().ID, cmd.TableID)
		rt.out.Reply(c, protocol.TypeJoinTableSuccess, protocol.JoinTableSuccess{Player: *ch.Player, TableID: cmd.TableID})
		rt.out.ToTable(cmd.TableID, c, protocol.TypePlayerJoined, protocol.PlayerJoined{
			UserID:      ch.Player.UserID,
			Position:    ch.Player.Position,
			StackAmount: ch.Player.Stack,
		})
		rt.out.Publish(ch)
	})
	if err != nil {
		rt.fail(c, protocol.TypeJoinTableError, err)
	}
}

func (rt *Router) leaveTable(c *Connection, cmd protocol.LeaveTable) {
	_, err := rt.registry.LeaveTable(c.ctx, c.UserID(), cmd.TableID, func(ch registry.Change) {
		if _, t := c.Context(); t == cmd.TableID {
			c.ClearContext()
		}
		rt.out.Reply(c, protocol.TypeLeaveTableSuccess, protocol.LeaveTableSuccess{TableID: cmd.TableID})
		rt.out.ToTable(cmd.TableID, c, protocol.TypePlayerLeft, protocol.PlayerLeft{UserID: c.UserID()})
		rt.out.Publish(ch)
	})
	if err != nil {
		rt.fail(c, protocol.TypeLeaveTableError, err)
	}
}

func (rt *Router) action(c *Connection, cmd protocol.Action) {
	_, err := rt.registry.Act(c.ctx, c.UserID(), cmd.GameID, cmd.ActionType, cmd.Amount, func(ch registry.Change) {
		a := ch.Action
		rt.out.Reply(c, protocol.TypeActionSuccess, protocol.ActionSuccess{GameID: cmd.GameID, ActionType: a.Kind, Amount: a.Amount})
		rt.out.ToGame(cmd.GameID, c, protocol.TypePlayerAction, protocol.PlayerAction{UserID: c.UserID(), ActionType: a.Kind, Amount: a.Amount})
		rt.out.Publish(ch)
	})
	if err != nil {
		rt.fail(c, protocol.TypeActionError, err)
	}
}

func (rt *Router) getState(c *Connection, cmd protocol.GetState) {
	_, err := rt.registry.State(c.UserID(), cmd.GameID, func(view game.View) {
		rt.out.Reply(c, protocol.TypeGameState, protocol.GameState{GameState: view})
	})
	if err != nil {
		rt.fail(c, protocol.TypeError, err)
	}
}

// Disconnect leaves the table on behalf of a connection that went away.
func (rt *Router) Disconnect(c *Connection) {
	_, tableID := c.Context()
	if tableID == "" {
		return
	}
	_, err := rt.registry.LeaveTable(context.Background(), c.UserID(), tableID, func(ch registry.Change) {
		c.ClearContext()
		rt.out.ToTable(tableID, c, protocol.TypePlayerDisconnected, protocol.PlayerDisconnected{UserID: c.UserID()})
		rt.out.Publish(ch)
	})
	if err != nil {
		rt.logger.Warn("Failed to leave table on disconnect", "user", c.UserID(), "table", tableID, "error", err)
		return
	}
	rt.logger.Info("Cleaned up disconnected player", "user", c.UserID(), "table", tableID)
}

// TableClosed detaches every connection at a closed table after they saw
// the final state.
func (rt *Router) TableClosed(ch registry.Change) {
	rt.out.Publish(ch)
	for _, c := range rt.out.hub.Connections(nil) {
		if _, t := c.Context(); t == ch.Table.ID {
			c.ClearContext()
		}
	}
}

func (rt *Router) fail(c *Connection, typ string, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		rt.logger.Error("Command failed", "type", typ, "user", c.UserID(), "error", err)
	}
	rt.out.Reply(c, typ, protocol.ErrorData{Message: apperr.Public(err)})
}
