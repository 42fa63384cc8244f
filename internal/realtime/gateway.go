// Package realtime is the per-user live-update channel for dashboards,
// independent of the HTTP request/response cycle. Delivery is at-most-once
// and best-effort: events for offline users are dropped, and clients
// reconcile on reconnect with a request:current-state pull.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/leasematch/leasematch/internal/config"
	"github.com/leasematch/leasematch/internal/metrics"
	"github.com/leasematch/leasematch/pkg/models"
)

// Server-emitted events.
const (
	EventMatchesUpdated     = "matches-updated"
	EventKPIInvalidated     = "kpi-invalidated"
	EventReconnected        = "reconnected"
	EventError              = "error"
	EventConnectionRejected = "connection-rejected"
)

// ClientEventCurrentState is the client-emitted pull for current state.
const ClientEventCurrentState = "request:current-state"

// Rejection reasons. Clients branch on these exact strings, so they are part
// of the wire contract.
const (
	ReasonTokenRequired = "Authentication token required"
	ReasonTokenInvalid  = "Invalid authentication token"
)

// Event is the wire envelope for every server-emitted message.
type Event struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// MatchesUpdatedPayload carries the demand id and its current top matches.
// A nil Matches slice tells the client to re-pull instead.
type MatchesUpdatedPayload struct {
	DemandID uuid.UUID            `json:"demand_id"`
	Matches  []models.MatchRecord `json:"matches,omitempty"`
}

// CurrentState is the answer to a request:current-state pull, assembled
// synchronously from the match store and KPI cache rather than from a
// missed-event log.
type CurrentState struct {
	Matches map[string][]models.MatchRecord `json:"matches"`
	KPIs    *models.KPISnapshot             `json:"kpis"`
}

// TokenVerifier validates a session token and returns the authenticated user
// id. Token issuance belongs to the external auth subsystem.
type TokenVerifier interface {
	VerifyToken(token string) (uuid.UUID, error)
}

// StateProvider assembles a user's current dashboard state.
type StateProvider interface {
	CurrentState(ctx context.Context, userID uuid.UUID) (*CurrentState, error)
}

// SessionState is the connection lifecycle state.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateAuthenticating
	StateConnected
	StateDisconnected // terminal
)

// Session is one open websocket connection for an authenticated user.
type Session struct {
	id     uuid.UUID
	userID uuid.UUID
	conn   *websocket.Conn
	send   chan Event
	state  SessionState
	mu     sync.Mutex // guards state
	once   sync.Once
}

// UserID returns the authenticated user the session belongs to.
func (s *Session) UserID() uuid.UUID { return s.userID }

// State returns the session's lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Gateway upgrades, authenticates, and serves realtime sessions, and pushes
// match/KPI events to whoever is connected.
type Gateway struct {
	cfg      config.RealtimeConfig
	verifier TokenVerifier
	state    StateProvider
	registry *Registry
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewGateway creates the realtime gateway around the given registry.
func NewGateway(cfg config.RealtimeConfig, verifier TokenVerifier, state StateProvider, registry *Registry, logger *zap.Logger) *Gateway {
	return &Gateway{
		cfg:      cfg,
		verifier: verifier,
		state:    state,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// Registry returns the read-only connection registry view.
func (g *Gateway) Registry() *Registry { return g.registry }

// HandleConnection upgrades the request and walks the session through
// Connecting -> Authenticating -> Connected. Authentication failure rejects
// with a descriptive reason and closes without registering. A per-connection
// failure never takes down the process.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session := &Session{
		id:    uuid.New(),
		conn:  conn,
		send:  make(chan Event, g.cfg.SendQueueSize),
		state: StateConnecting,
	}

	session.setState(StateAuthenticating)
	token := r.URL.Query().Get("token")
	if token == "" {
		if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
			token = auth[7:]
		}
	}
	if token == "" {
		g.reject(session, ReasonTokenRequired)
		return
	}
	userID, err := g.verifier.VerifyToken(token)
	if err != nil {
		g.reject(session, ReasonTokenInvalid)
		return
	}

	session.userID = userID
	session.setState(StateConnected)
	g.registry.add(session)
	metrics.LiveConnections.Inc()
	g.logger.Info("realtime session connected",
		zap.String("session_id", session.id.String()),
		zap.String("user_id", userID.String()))

	go g.writePump(session)
	go g.readPump(session)
}

// reject sends the rejection payload and closes. The session goes straight to
// Disconnected; no retry happens server-side.
func (g *Gateway) reject(session *Session, reason string) {
	metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
	payload := Event{
		Event:     EventConnectionRejected,
		Data:      map[string]string{"reason": reason},
		Timestamp: time.Now().UTC(),
	}
	session.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
	if err := session.conn.WriteJSON(payload); err != nil {
		g.logger.Debug("failed to write rejection", zap.Error(err))
	}
	session.setState(StateDisconnected)
	session.conn.Close()
	g.logger.Info("realtime connection rejected", zap.String("reason", reason))
}

func (g *Gateway) disconnect(session *Session) {
	session.once.Do(func() {
		// Setting the terminal state under the session mutex fences off
		// trySend before the channel closes.
		session.setState(StateDisconnected)
		g.registry.remove(session)
		metrics.LiveConnections.Dec()
		close(session.send)
		session.conn.Close()
		g.logger.Info("realtime session disconnected",
			zap.String("session_id", session.id.String()),
			zap.String("user_id", session.userID.String()))
	})
}

// readPump consumes client messages until the connection drops. The only
// recognized client event is request:current-state.
func (g *Gateway) readPump(session *Session) {
	defer g.disconnect(session)

	session.conn.SetReadLimit(g.cfg.MaxMessageSize)
	session.conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
	session.conn.SetPongHandler(func(string) error {
		session.conn.SetReadDeadline(time.Now().Add(g.cfg.PongTimeout))
		return nil
	})

	for {
		_, raw, err := session.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Event string `json:"event"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.logger.Debug("unparseable client message", zap.Error(err))
			continue
		}
		if msg.Event == ClientEventCurrentState {
			g.handleCurrentStatePull(session)
		}
	}
}

// handleCurrentStatePull answers a reconciliation pull by re-querying current
// state, bounded by the pull timeout. A stalled repository surfaces as a
// recoverable error event instead of hanging the connection.
func (g *Gateway) handleCurrentStatePull(session *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), g.cfg.PullTimeout)
	defer cancel()

	state, err := g.state.CurrentState(ctx, session.userID)
	if err != nil {
		g.logger.Warn("current-state pull failed",
			zap.String("user_id", session.userID.String()), zap.Error(err))
		g.trySend(session, Event{
			Event:     EventError,
			Data:      map[string]string{"reason": "current-state pull timed out, retry", "source": ClientEventCurrentState},
			Timestamp: time.Now().UTC(),
		})
		return
	}
	g.trySend(session, Event{
		Event:     EventReconnected,
		Data:      state,
		Timestamp: time.Now().UTC(),
	})
}

// writePump drains the send queue and keeps the connection alive with pings.
func (g *Gateway) writePump(session *Session) {
	ticker := time.NewTicker(g.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		g.disconnect(session)
	}()

	for {
		select {
		case event, ok := <-session.send:
			session.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if !ok {
				session.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := session.conn.WriteJSON(event); err != nil {
				return
			}
			metrics.EventsPushed.WithLabelValues(event.Event).Inc()
		case <-ticker.C:
			session.conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
			if err := session.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues an event without blocking; a full queue or a closed session
// drops the event (at-most-once delivery).
func (g *Gateway) trySend(session *Session, event Event) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state == StateDisconnected {
		return
	}
	select {
	case session.send <- event:
	default:
		g.logger.Warn("dropping event for slow client",
			zap.String("session_id", session.id.String()),
			zap.String("event", event.Event))
	}
}

// push fans an event out to every open session of the user. With no open
// session the event is dropped, not queued.
func (g *Gateway) push(userID uuid.UUID, event Event) {
	sessions := g.registry.SessionsFor(userID)
	if len(sessions) == 0 {
		metrics.EventsDropped.Inc()
		return
	}
	for _, session := range sessions {
		g.trySend(session, event)
	}
}

// MatchesUpdated implements matching.Notifier.
func (g *Gateway) MatchesUpdated(userID, demandID uuid.UUID, top []models.MatchRecord) {
	g.push(userID, Event{
		Event:     EventMatchesUpdated,
		Data:      MatchesUpdatedPayload{DemandID: demandID, Matches: top},
		Timestamp: time.Now().UTC(),
	})
}

// KPIInvalidated implements kpi.Listener.
func (g *Gateway) KPIInvalidated(userID uuid.UUID) {
	g.push(userID, Event{
		Event:     EventKPIInvalidated,
		Timestamp: time.Now().UTC(),
	})
}
