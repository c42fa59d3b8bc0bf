// Package gateway is the websocket front of the chat service: it
// authenticates handshakes, dispatches inbound events in per-connection
// order, and delivers broadcast and unicast frames.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vanthaita/piratesocial-chat/contract"
	"github.com/vanthaita/piratesocial-chat/domain"
	errs "github.com/vanthaita/piratesocial-chat/errors"
	"github.com/vanthaita/piratesocial-chat/observability"
	"github.com/vanthaita/piratesocial-chat/services"
)

// Config carries the gateway's behavior knobs; the listen address belongs
// to the binary, not here.
type Config struct {
	ConnectionBufferSize int
	MaxMessageSize       int64
	HandshakeTimeout     time.Duration
	EventTimeout         time.Duration
	WriteTimeout         time.Duration
	PongTimeout          time.Duration
}

type Server struct {
	log      *slog.Logger
	cfg      Config
	service  services.IChatService
	sessions contract.ISessionStore
	registry contract.IRegistry
	monitor  *observability.Monitor
	validate *validator.Validate
	upgrader websocket.Upgrader
	baseCtx  context.Context
}

func NewServer(ctx context.Context, log *slog.Logger, cfg Config,
	service services.IChatService, sessions contract.ISessionStore,
	registry contract.IRegistry, monitor *observability.Monitor) *Server {
	return &Server{
		log:      log,
		cfg:      cfg,
		service:  service,
		sessions: sessions,
		registry: registry,
		monitor:  monitor,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The identity provider is trusted at handshake time; origin
			// restrictions are enforced by the fronting proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		baseCtx: ctx,
	}
}

// Routes exposes the websocket endpoint plus health and stats probes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(s.monitor.Snapshot())
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	go s.handleConn(ws, r.RemoteAddr)
}

// handleConn runs a connection's whole lifetime: handshake, dispatch loop,
// cleanup. Frames from this connection are processed strictly in order;
// frames from different connections run concurrently.
func (s *Server) handleConn(ws *websocket.Conn, remote string) {
	c := newConnection(uuid.NewString(), ws, s.log, s.cfg.ConnectionBufferSize,
		s.cfg.WriteTimeout, s.cfg.PongTimeout, s.cfg.MaxMessageSize)
	go c.writePump()
	defer c.close()

	session, err := s.authenticate(c)
	if err != nil {
		s.monitor.IncrAuthFailures()
		s.log.Warn("Authentication failed", "conn_id", c.id, "remote", remote, "error", err)
		c.sendError(errs.Wire(errs.ErrUnauthenticated))
		return
	}

	s.monitor.IncrConnectionsOpened()
	s.log.Info("Client connected", "conn_id", c.id, "user_id", session.Identity.ID, "remote", remote)

	defer func() {
		s.service.Disconnect(c.id)
		s.sessions.Remove(c.id)
		s.monitor.IncrConnectionsClosed()
		s.log.Info("Client disconnected", "conn_id", c.id, "user_id", session.Identity.ID)
	}()

	for {
		env, err := c.readFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("Read failed", "conn_id", c.id, "error", err)
			}
			return
		}
		s.dispatch(session, c, env)
	}
}

// authenticate enforces the connection invariant: the first frame must be a
// valid handshake carrying the verified profile, received within the
// handshake deadline. Anything else is fatal.
func (s *Server) authenticate(c *connection) (*domain.Session, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
		return nil, err
	}
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errs.ErrUnauthenticated
	}
	if env.Event != eventHandshake {
		return nil, errs.ErrUnauthenticated
	}

	var payload handshakePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, errs.ErrUnauthenticated
	}
	if err := s.validate.Struct(payload); err != nil {
		return nil, errs.ErrUnauthenticated
	}

	identity := domain.Identity{
		ID:      payload.Profile.ID,
		Email:   payload.Profile.Email,
		Picture: payload.Profile.Picture,
	}
	if err := s.service.Register(identity); err != nil {
		return nil, err
	}

	session := s.sessions.Bind(c.id, identity)
	s.registry.Register(c.id, newConnSink(c.id, s.log, c.send, s.monitor))
	return session, nil
}
