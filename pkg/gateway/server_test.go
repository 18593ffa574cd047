package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// wsPair upgrades one connection and hands back both ends.
func wsPair(t *testing.T) (server *websocket.Conn, dialer *websocket.Conn) {
	t.Helper()

	accepted := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	dialer, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { dialer.Close() })

	server = <-accepted
	t.Cleanup(func() { server.Close() })
	return server, dialer
}

func TestClientConcurrentWritesKeepFramesIntact(t *testing.T) {
	serverConn, dialConn := wsPair(t)

	client := &Client{
		ID:            "c1",
		Conn:          serverConn,
		Authenticated: true,
		RateLimiter:   NewClientRateLimiter(),
	}

	// RPC responses and broadcast events land on the same connection from
	// different goroutines; every frame must still arrive as valid JSON.
	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if n%2 == 0 {
					err := client.WriteJSON(RPCResponse{
						ID:      fmt.Sprintf("req-%d-%d", n, j),
						JSONRPC: "2.0",
						Result:  map[string]interface{}{"writer": n},
					})
					require.NoError(t, err)
				} else {
					payload, err := json.Marshal(EventMessage{
						Event: "invocation.finished",
						Data:  map[string]interface{}{"writer": n, "seq": j},
					})
					require.NoError(t, err)
					require.NoError(t, client.WriteMessage(websocket.TextMessage, payload))
				}
			}
		}(i)
	}

	for received := 0; received < writers*perWriter; received++ {
		_, data, err := dialConn.ReadMessage()
		require.NoError(t, err)
		require.True(t, json.Valid(data), "frame %d is not valid JSON: %q", received, data)
	}

	wg.Wait()
}

func TestBroadcasterWritesThroughClientLock(t *testing.T) {
	serverConn, dialConn := wsPair(t)

	client := &Client{
		ID:            "c1",
		Conn:          serverConn,
		Authenticated: true,
		RateLimiter:   NewClientRateLimiter(),
	}

	clients := NewClientRegistry()
	clients.Add(client)
	broadcaster := NewEventBroadcaster(clients, zerolog.Nop())

	const events = 50

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < events; i++ {
			broadcaster.Broadcast("ticket.created", map[string]interface{}{"n": i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < events; i++ {
			err := client.WriteJSON(RPCResponse{ID: fmt.Sprintf("r-%d", i), JSONRPC: "2.0"})
			require.NoError(t, err)
		}
	}()

	for received := 0; received < 2*events; received++ {
		_, data, err := dialConn.ReadMessage()
		require.NoError(t, err)
		require.True(t, json.Valid(data))
	}

	wg.Wait()
}
