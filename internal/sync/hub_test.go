package sync

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPSubscriberReceivesInvalidation(t *testing.T) {
	hub := NewHub(nil)
	srv := NewServer("127.0.0.1:0", hub)
	addr, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	conn, err := net.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	rd := bufio.NewReader(conn)

	line, err := rd.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"type":"welcome"`)
	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 1 }, time.Second, 10*time.Millisecond)

	hub.CatalogChanged("S3-07", []string{"exercises"}, []string{"/exercises/S3-07", "/series/3"})

	line, err = rd.ReadString('\n')
	require.NoError(t, err)
	var ev CatalogEvent
	require.NoError(t, json.Unmarshal([]byte(line), &ev))
	assert.Equal(t, EventInvalidated, ev.Type)
	assert.Equal(t, "S3-07", ev.Code)
	assert.Equal(t, []string{"/exercises/S3-07", "/series/3"}, ev.Paths)
	assert.False(t, ev.At.IsZero())

	cancel()
	require.NoError(t, <-done)
	assert.Zero(t, hub.Stats().TCPClients)
}

func TestTCPWelcomeArrivesBeforeBroadcasts(t *testing.T) {
	hub := NewHub(nil)
	srv := NewServer("127.0.0.1:0", hub)
	addr, err := srv.Listen()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.CatalogChanged("S1-01", []string{"exercises"}, nil)
			}
		}
	}()

	for i := 0; i < 20; i++ {
		conn, err := net.Dial("tcp", addr.String())
		require.NoError(t, err)
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

		line, err := bufio.NewReader(conn).ReadString('\n')
		_ = conn.Close()
		require.NoError(t, err)
		assert.Contains(t, line, `"type":"welcome"`, "connection %d", i)
	}

	close(stop)
	wg.Wait()
	cancel()
	require.NoError(t, <-done)
}

func TestWebSocketSubscriber(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	r := gin.New()
	r.GET("/ws", WSHandler(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"type":"welcome"`)
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 1 }, time.Second, 10*time.Millisecond)

	hub.CatalogChanged("", []string{"editorial"}, nil)

	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	var ev CatalogEvent
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, []string{"editorial"}, ev.Tags)
	assert.Empty(t, ev.Code)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return hub.Stats().WSClients == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcastDropsDeadClients(t *testing.T) {
	hub := NewHub(nil)
	a, b := net.Pipe()
	hub.Add(a)
	require.NoError(t, b.Close())

	hub.CatalogChanged("S1-01", nil, nil)
	assert.Zero(t, hub.Stats().TCPClients)
}
