package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/behaviour/internal/core/events/bus"
	"github.com/zeusync/behaviour/internal/core/observability/log"
)

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, s *EventStream, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.Clients() == n }, time.Second, 5*time.Millisecond)
}

func TestEventStreamBroadcast(t *testing.T) {
	events := bus.New()
	stream := NewEventStream(DefaultConfig(), events, log.NewNop())
	require.NoError(t, stream.Attach())

	srv := httptest.NewServer(stream.Handler())
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	all := dial(t, base)
	onlyB := dial(t, base+"?owner=npc-b")
	waitClients(t, stream, 2)

	require.NoError(t, events.Publish(bus.NewEvent(bus.TypeBehaviourFired, "npc-a", map[string]any{"behaviour": "flee"}, nil)))
	require.NoError(t, events.Publish(bus.NewEvent(bus.TypeBehaviourIdle, "npc-b", nil, nil)))

	_ = all.SetReadDeadline(time.Now().Add(time.Second))
	var first, second Message
	require.NoError(t, all.ReadJSON(&first))
	require.NoError(t, all.ReadJSON(&second))
	assert.Equal(t, bus.TypeBehaviourFired, first.Type)
	assert.Equal(t, "npc-a", first.Source)
	assert.Equal(t, map[string]any{"behaviour": "flee"}, first.Data)
	assert.Equal(t, bus.TypeBehaviourIdle, second.Type)

	_ = onlyB.SetReadDeadline(time.Now().Add(time.Second))
	var filtered Message
	require.NoError(t, onlyB.ReadJSON(&filtered))
	assert.Equal(t, "npc-b", filtered.Source)
	assert.Equal(t, bus.TypeBehaviourIdle, filtered.Type)
}

func TestEventStreamClientDisconnect(t *testing.T) {
	events := bus.New()
	stream := NewEventStream(DefaultConfig(), events, log.NewNop())
	require.NoError(t, stream.Attach())

	srv := httptest.NewServer(stream.Handler())
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws")
	waitClients(t, stream, 1)

	require.NoError(t, conn.Close())
	waitClients(t, stream, 0)

	assert.NoError(t, events.Publish(bus.NewEvent(bus.TypeBehaviourFired, "npc-a", nil, nil)))
}

func TestEventStreamMaxClients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	stream := NewEventStream(cfg, bus.New(), log.NewNop())

	srv := httptest.NewServer(stream.Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	dial(t, url)
	waitClients(t, stream, 1)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 503, resp.StatusCode)
}

func TestEventStreamStartStop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	events := bus.New()
	stream := NewEventStream(cfg, events, log.NewNop())

	ctx := context.Background()
	require.NoError(t, stream.Start(ctx))
	assert.ErrorIs(t, stream.Start(ctx), ErrServerAlreadyRunning)
	assert.Equal(t, 1, events.Subscribers(bus.TypeBehaviourFired))

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, stream.Stop(stopCtx))
	assert.Equal(t, 0, events.Subscribers(bus.TypeBehaviourFired))

	assert.ErrorIs(t, stream.Stop(stopCtx), ErrServerNotRunning)
	assert.ErrorIs(t, stream.Start(ctx), ErrServerClosed)
}
