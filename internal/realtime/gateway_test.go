package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leasematch/leasematch/internal/config"
	"github.com/leasematch/leasematch/pkg/models"
)

type fakeVerifier struct {
	tokens map[string]uuid.UUID
}

func (f *fakeVerifier) VerifyToken(token string) (uuid.UUID, error) {
	if id, ok := f.tokens[token]; ok {
		return id, nil
	}
	return uuid.Nil, errors.New("bad token")
}

type fakeState struct {
	state *CurrentState
	delay time.Duration
}

func (f *fakeState) CurrentState(ctx context.Context, _ uuid.UUID) (*CurrentState, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.state, nil
}

type wireEvent struct {
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingInterval:    10 * time.Second,
		PongTimeout:     30 * time.Second,
		WriteTimeout:    time.Second,
		SendQueueSize:   16,
		PullTimeout:     200 * time.Millisecond,
		MaxMessageSize:  4096,
	}
}

func newTestGateway(t *testing.T, state StateProvider) (*Gateway, *httptest.Server, string, uuid.UUID) {
	userID := uuid.New()
	verifier := &fakeVerifier{tokens: map[string]uuid.UUID{"good-token": userID}}
	if state == nil {
		state = &fakeState{state: &CurrentState{Matches: map[string][]models.MatchRecord{}}}
	}
	gateway := NewGateway(testRealtimeConfig(), verifier, state, NewRegistry(), zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(gateway.HandleConnection))
	t.Cleanup(ts.Close)
	wsURL := "ws" + ts.URL[len("http"):]
	return gateway, ts, wsURL, userID
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func readEvent(t *testing.T, ws *websocket.Conn) wireEvent {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event wireEvent
	require.NoError(t, ws.ReadJSON(&event))
	return event
}

func TestConnectWithoutTokenRejected(t *testing.T) {
	_, _, wsURL, _ := newTestGateway(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer ws.Close()

	event := readEvent(t, ws)
	assert.Equal(t, EventConnectionRejected, event.Event)
	assert.Contains(t, event.Data["reason"], "Authentication token required")
}

func TestConnectWithInvalidTokenRejected(t *testing.T) {
	gateway, _, wsURL, userID := newTestGateway(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=expired-garbage", nil)
	require.NoError(t, err)
	defer ws.Close()

	event := readEvent(t, ws)
	assert.Equal(t, EventConnectionRejected, event.Event)
	assert.Contains(t, event.Data["reason"], "Invalid authentication token")
	assert.False(t, gateway.Registry().IsUserConnected(userID))
}

func TestConnectWithValidTokenRegisters(t *testing.T) {
	gateway, _, wsURL, userID := newTestGateway(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	require.NoError(t, err)

	waitFor(t, func() bool { return gateway.Registry().IsUserConnected(userID) })

	// a second tab joins the same user's session set
	ws2, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	require.NoError(t, err)
	waitFor(t, func() bool { return len(gateway.Registry().SessionsFor(userID)) == 2 })

	for _, session := range gateway.Registry().SessionsFor(userID) {
		assert.Equal(t, StateConnected, session.State())
		assert.Equal(t, userID, session.UserID())
	}

	ws.Close()
	waitFor(t, func() bool { return len(gateway.Registry().SessionsFor(userID)) == 1 })
	ws2.Close()
	waitFor(t, func() bool { return !gateway.Registry().IsUserConnected(userID) })
}

func TestMatchesUpdatedPushedToConnectedUser(t *testing.T) {
	gateway, _, wsURL, userID := newTestGateway(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	require.NoError(t, err)
	defer ws.Close()
	waitFor(t, func() bool { return gateway.Registry().IsUserConnected(userID) })

	demandID := uuid.New()
	gateway.MatchesUpdated(userID, demandID, []models.MatchRecord{{ID: uuid.New(), MatchScore: 92.5}})

	event := readEvent(t, ws)
	assert.Equal(t, EventMatchesUpdated, event.Event)
	assert.Equal(t, demandID.String(), event.Data["demand_id"])
	assert.NotEmpty(t, event.Data["matches"])
}

func TestKPIInvalidatedPushedToConnectedUser(t *testing.T) {
	gateway, _, wsURL, userID := newTestGateway(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	require.NoError(t, err)
	defer ws.Close()
	waitFor(t, func() bool { return gateway.Registry().IsUserConnected(userID) })

	gateway.KPIInvalidated(userID)

	event := readEvent(t, ws)
	assert.Equal(t, EventKPIInvalidated, event.Event)
}

func TestPushToOfflineUserIsDropped(t *testing.T) {
	gateway, _, _, _ := newTestGateway(t, nil)

	// nobody connected: events are dropped, not queued, and nothing blocks
	done := make(chan struct{})
	go func() {
		gateway.MatchesUpdated(uuid.New(), uuid.New(), nil)
		gateway.KPIInvalidated(uuid.New())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push to offline user blocked")
	}
}

func TestCurrentStatePullAnsweredWithReconnected(t *testing.T) {
	snapshot := &models.KPISnapshot{UserID: uuid.New(), ActiveBusinesses: 2, ComputedAt: time.Now().UTC()}
	state := &fakeState{state: &CurrentState{
		Matches: map[string][]models.MatchRecord{uuid.NewString(): {{ID: uuid.New()}}},
		KPIs:    snapshot,
	}}
	gateway, _, wsURL, userID := newTestGateway(t, state)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	require.NoError(t, err)
	defer ws.Close()
	waitFor(t, func() bool { return gateway.Registry().IsUserConnected(userID) })

	require.NoError(t, ws.WriteJSON(map[string]string{"event": ClientEventCurrentState}))

	event := readEvent(t, ws)
	assert.Equal(t, EventReconnected, event.Event)
	assert.False(t, event.Timestamp.IsZero())
	assert.Contains(t, event.Data, "matches")
	assert.Contains(t, event.Data, "kpis")
}

func TestCurrentStatePullTimesOutRecoverably(t *testing.T) {
	// the provider stalls past the pull timeout
	state := &fakeState{delay: time.Second}
	gateway, _, wsURL, userID := newTestGateway(t, state)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?token=good-token", nil)
	require.NoError(t, err)
	defer ws.Close()
	waitFor(t, func() bool { return gateway.Registry().IsUserConnected(userID) })

	require.NoError(t, ws.WriteJSON(map[string]string{"event": ClientEventCurrentState}))

	event := readEvent(t, ws)
	assert.Equal(t, EventError, event.Event)
	assert.Contains(t, event.Data["reason"], "retry")

	// connection survives the failed pull and can still receive pushes
	gateway.KPIInvalidated(userID)
	event = readEvent(t, ws)
	assert.Equal(t, EventKPIInvalidated, event.Event)
}
