package server

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/rsvpd/schedule"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketReceivesJobEvents(t *testing.T) {
	srv, scheduler := newTestServer(t, nil)
	srv.startJobEventBroadcaster()
	defer srv.cancel()

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	conn := dialWS(t, httpSrv)

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	receipt, err := scheduler.Schedule(schedule.Request{
		EventID:   "evt-123",
		EventTime: time.Date(2030, 7, 8, 18, 0, 0, 0, time.UTC),
		UserName:  "alice",
		Extras:    1,
		Action:    schedule.ActionAdd,
	})
	require.NoError(t, err)

	var ev schedule.Event
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))

	assert.Equal(t, schedule.EventScheduled, ev.Type)
	assert.Equal(t, receipt.JobName, ev.JobName)
	require.NotNil(t, ev.FireAt)
	assert.Equal(t, receipt.FireAt.UTC(), ev.FireAt.UTC())
}

func TestWebSocketClientCleanupOnDisconnect(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.startJobEventBroadcaster()
	defer srv.cancel()

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	conn := dialWS(t, httpSrv)

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool {
		return srv.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBroadcastSkipsFullClientQueues(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	client := &Client{
		server: srv,
		send:   make(chan interface{}, 1),
		id:     "test-client",
	}
	srv.mu.Lock()
	srv.clients[client] = true
	srv.mu.Unlock()

	assert.Equal(t, 1, srv.broadcastMessage("first"))
	// Queue is full now; the client is skipped, not blocked on
	assert.Equal(t, 0, srv.broadcastMessage("second"))
}
