package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// DefaultSweepInterval is how often idle connections are checked.
const DefaultSweepInterval = 30 * time.Second

// Hub is the registry of live connections and runs the liveness sweep.
type Hub struct {
	logger   *log.Logger
	clock    quartz.Clock
	interval time.Duration

	mu    sync.RWMutex
	conns map[*Connection]struct{}
}

// NewHub creates an empty hub.
func NewHub(clock quartz.Clock, interval time.Duration, logger *log.Logger) *Hub {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Hub{
		logger:   logger.WithPrefix("hub"),
		clock:    clock,
		interval: interval,
		conns:    make(map[*Connection]struct{}),
	}
}

// Register adds c to the hub.
func (h *Hub) Register(c *Connection) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("Client connected", "user", c.UserID(), "total", n)
}

// Unregister removes c. It reports whether c was still registered.
func (h *Hub) Unregister(c *Connection) bool {
	h.mu.Lock()
	_, ok := h.conns[c]
	delete(h.conns, c)
	n := len(h.conns)
	h.mu.Unlock()
	if ok {
		h.logger.Info("Client disconnected", "user", c.UserID(), "total", n)
	}
	return ok
}

// Len returns the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Connections returns a snapshot of the registered connections matching
// keep. A nil keep matches all.
func (h *Hub) Connections(keep func(*Connection) bool) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Connection, 0, len(h.conns))
	for c := range h.conns {
		if keep == nil || keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// Sweep closes and deregisters every connection that has not answered a
// ping since the previous sweep, then pings the rest. It returns the number
// of connections dropped.
func (h *Hub) Sweep() int {
	var stale, live []*Connection
	h.mu.Lock()
	for c := range h.conns {
		if c.alive.Swap(false) {
			live = append(live, c)
			continue
		}
		delete(h.conns, c)
		stale = append(stale, c)
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.logger.Info("Dropping unresponsive connection", "user", c.UserID())
		c.Close()
	}
	for _, c := range live {
		if err := c.ping(); err != nil {
			h.logger.Debug("Ping failed", "user", c.UserID(), "error", err)
			c.Close()
		}
	}
	return len(stale)
}

// Start runs Sweep on the hub's clock until ctx is done.
func (h *Hub) Start(ctx context.Context) quartz.Waiter {
	return h.clock.TickerFunc(ctx, h.interval, func() error {
		h.Sweep()
		return nil
	}, "hub", "sweep")
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	for _, c := range h.Connections(nil) {
		c.Close()
	}
}
