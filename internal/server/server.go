// Package server is the network edge of the table server: the websocket
// endpoint with its connection hub and protocol router, and a small JSON
// API for table management.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/viettienlv97/game-server/internal/apperr"
	"github.com/viettienlv97/game-server/internal/auth"
	"github.com/viettienlv97/game-server/internal/game"
	"github.com/viettienlv97/game-server/internal/protocol"
	"github.com/viettienlv97/game-server/internal/registry"
)

// RoleAdmin may close any table.
const RoleAdmin = "admin"

// Server owns the HTTP listener, the hub and the router.
type Server struct {
	logger    *log.Logger
	clock     quartz.Clock
	registry  *registry.Registry
	validator auth.Validator
	upgrader  websocket.Upgrader
	hub       *Hub
	out       *Broadcaster
	router    *Router
	mux       *http.ServeMux
	sockets   sync.WaitGroup

	sweepInterval time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithSweepInterval sets the liveness sweep period.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Server) { s.sweepInterval = d }
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// New creates a server over reg. Connections authenticate with validator.
func New(reg *registry.Registry, validator auth.Validator, logger *log.Logger, opts ...Option) *Server {
	s := &Server{
		logger:    logger.WithPrefix("server"),
		clock:     quartz.NewReal(),
		registry:  reg,
		validator: validator,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = NewHub(s.clock, s.sweepInterval, logger)
	s.out = NewBroadcaster(s.hub, logger)
	s.router = NewRouter(reg, s.out, logger)

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /stats", s.handleStats)
	s.mux.HandleFunc("GET /api/tables", s.handleListTables)
	s.mux.HandleFunc("POST /api/tables", s.handleCreateTable)
	s.mux.HandleFunc("GET /api/tables/{id}", s.handleGetTable)
	s.mux.HandleFunc("DELETE /api/tables/{id}", s.handleCloseTable)
	s.mux.HandleFunc("GET /api/me/games", s.handlePlayerGames)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.mux }

// Hub returns the connection hub.
func (s *Server) Hub() *Hub { return s.hub }

// Publish sends the state after a change committed outside a connection,
// such as a game dealt by the scheduler, to the table's connections.
func (s *Server) Publish(ch registry.Change) { s.out.Publish(ch) }

// Serve listens on addr and runs the liveness sweep until ctx is done. All
// connections are closed on the way out, which cashes their seats out.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	sweep := s.hub.Start(ctx)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("Starting WebSocket server", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.hub.CloseAll()
	s.sockets.Wait()
	_ = sweep.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

// handleWebSocket authenticates and upgrades a socket, then serves it until
// it closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	id, err := s.authenticate(r.Context(), token)
	if err != nil {
		code, reason := CloseAuthFailed, "Authentication failed"
		if apperr.KindOf(err) == apperr.KindInternal {
			code, reason = CloseInternalError, "Internal server error"
			s.logger.Error("Authentication unavailable", "error", err)
		}
		closeWith(conn, code, reason)
		return
	}

	s.sockets.Add(1)
	defer s.sockets.Done()

	c := newConnection(conn, *id, s.logger)
	s.hub.Register(c)
	s.out.Reply(c, protocol.TypeConnected, protocol.Connected{UserID: id.UserID})
	go c.writePump()
	c.readPump(s.router.Handle)

	s.hub.Unregister(c)
	s.router.Disconnect(c)
}

func (s *Server) authenticate(ctx context.Context, token string) (*auth.Identity, error) {
	if token == "" {
		return nil, apperr.Auth("Authentication required")
	}
	id, err := s.validator.Validate(ctx, token)
	switch {
	case err == nil:
		return id, nil
	case errors.Is(err, auth.ErrInvalidToken):
		return nil, apperr.Wrap(apperr.KindAuth, err, "Authentication failed")
	default:
		return nil, apperr.Internal(err, "validate token")
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

type statsResponse struct {
	Connections   int   `json:"connections"`
	Tables        int   `json:"tables"`
	RunningGames  int   `json:"runningGames"`
	SeatedPlayers int   `json:"seatedPlayers"`
	RakeCollected int64 `json:"rakeCollected"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.registry.Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		Connections:   s.hub.Len(),
		Tables:        st.Tables,
		RunningGames:  st.RunningGames,
		SeatedPlayers: st.SeatedPlayers,
		RakeCollected: st.RakeCollected,
	})
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	status := game.TableStatus(r.URL.Query().Get("status"))
	switch status {
	case "", game.TableWaiting, game.TablePlaying, game.TablePaused, game.TableClosed:
	default:
		s.writeError(w, apperr.Validation("Unknown table status %q", status))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": s.registry.ListTables(status)})
}

func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	t, err := s.registry.Table(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": t})
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	var spec registry.TableSpec
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&spec); err != nil {
		s.writeError(w, apperr.Validation("Invalid request body"))
		return
	}
	t, err := s.registry.CreateTable(r.Context(), spec, id.UserID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"table": t})
}

func (s *Server) handleCloseTable(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	tableID := r.PathValue("id")
	t, err := s.registry.Table(tableID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if t.CreatedBy != id.UserID && id.Role != RoleAdmin {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Only the table creator can close it"})
		return
	}
	if err := s.registry.CloseTable(r.Context(), tableID, s.router.TableClosed); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayerGames(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": s.registry.PlayerGames(id.UserID)})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindAuth:
		status = http.StatusUnauthorized
	case apperr.KindValidation:
		status = http.StatusBadRequest
	case apperr.KindResource:
		status = http.StatusNotFound
	case apperr.KindFunds:
		status = http.StatusPaymentRequired
	default:
		s.logger.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: apperr.Public(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
