package session_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stackpot/session-engine/internal/session"
)

func TestHub_BroadcastAfterClientDisconnect(t *testing.T) {
	hub := session.NewHub()
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	alive, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer alive.Close()

	doomed, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	doomed.Close()

	// Let the hub register both connections and notice the disconnect.
	time.Sleep(100 * time.Millisecond)

	// Broadcasting with a dead peer in the client set must still deliver
	// to the live one and prune the dead one without corrupting the set.
	for range [3]struct{}{} {
		hub.Broadcast(session.Event{
			Type:      "session_started",
			UserID:    "user1",
			SessionID: "s1",
			Phase:     "active",
		})
	}

	alive.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := alive.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev session.Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != "session_started" || ev.UserID != "user1" {
		t.Errorf("unexpected event: %+v", ev)
	}
}
