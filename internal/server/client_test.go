package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestClientSendNonBlockingWhenPeerStalls(t *testing.T) {
	upgrader := websocket.Upgrader{}
	clients := make(chan *wsClient, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		clients <- newWSClient(conn, 20*time.Millisecond)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { peer.Close() })
	// The peer never reads a frame.

	c := <-clients
	t.Cleanup(func() { c.Close() })

	// Far more data than the socket and backlog can hold. Every Send must
	// return immediately, with an error once the backlog fills or the
	// write deadline kills the client.
	payload := bytes.Repeat([]byte("x"), 4096)
	start := time.Now()
	sawError := false
	for i := 0; i < 5000; i++ {
		if err := c.Send(payload); err != nil {
			sawError = true
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("5000 sends took %v; Send must not block on a stalled peer", elapsed)
	}
	if !sawError {
		t.Error("expected backlog or closed-client errors from a stalled peer")
	}
}

func TestClientSendAfterClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	clients := make(chan *wsClient, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		clients <- newWSClient(conn, time.Second)
	}))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	peer, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { peer.Close() })

	c := <-clients
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := c.Send([]byte("x")); err == nil {
		t.Error("Send after Close = nil, want error")
	}
}
