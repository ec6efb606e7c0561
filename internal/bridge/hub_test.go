package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/normanking/monavatar/internal/bus"
	"github.com/normanking/monavatar/internal/logging"
)

func testHub(t *testing.T, events *bus.Bus) (*Hub, string) {
	t.Helper()
	hub := NewHub(logging.Nop(), events)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleFrames))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialFrames(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	return conn
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for hub.ClientCount() != want {
		select {
		case <-deadline:
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHubBroadcastReachesEveryClient(t *testing.T) {
	hub, url := testHub(t, nil)
	first := dialFrames(t, url)
	second := dialFrames(t, url)
	waitClients(t, hub, 2)

	hub.Broadcast(Frame{T: 1.5, State: "talking", Phase: "active", Strategy: "formant_layered"})

	for _, conn := range []*websocket.Conn{first, second} {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if frame.Type != "frame" {
			t.Errorf("frame type = %q, want frame", frame.Type)
		}
		if frame.T != 1.5 || frame.State != "talking" {
			t.Errorf("frame = %+v", frame)
		}
	}
}

func TestHubDeliversCommands(t *testing.T) {
	hub, url := testHub(t, nil)
	conn := dialFrames(t, url)
	waitClients(t, hub, 1)

	msg := `{"type":"state","state":"listening"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write command: %v", err)
	}

	select {
	case cmd := <-hub.Commands():
		if cmd.Type != "state" || cmd.State != "listening" {
			t.Errorf("command = %+v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for command")
	}
}

func TestHubSkipsMalformedCommands(t *testing.T) {
	hub, url := testHub(t, nil)
	conn := dialFrames(t, url)
	waitClients(t, hub, 1)

	conn.WriteMessage(websocket.TextMessage, []byte(`{not json`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stop"}`))

	select {
	case cmd := <-hub.Commands():
		if cmd.Type != "stop" {
			t.Errorf("command type = %q, want the valid command only", cmd.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for command")
	}
}

func TestHubPublishesClientChurn(t *testing.T) {
	events := bus.New()
	defer events.Close()

	seen := make(chan bus.EventType, 4)
	events.Subscribe(bus.EventTypeClientJoined, func(e bus.Event) { seen <- e.Type })
	events.Subscribe(bus.EventTypeClientLeft, func(e bus.Event) { seen <- e.Type })

	hub, url := testHub(t, events)
	conn := dialFrames(t, url)
	waitClients(t, hub, 1)

	select {
	case got := <-seen:
		if got != bus.EventTypeClientJoined {
			t.Errorf("first event = %s, want client joined", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for join event")
	}

	conn.Close()
	waitClients(t, hub, 0)

	select {
	case got := <-seen:
		if got != bus.EventTypeClientLeft {
			t.Errorf("second event = %s, want client left", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for leave event")
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub, url := testHub(t, nil)
	conn := dialFrames(t, url)
	waitClients(t, hub, 1)

	hub.Close()
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("client count after close = %d", n)
	}

	// The writer sends a close frame; the next read must fail.
	for i := 0; i < 10; i++ {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
	t.Fatal("connection stayed readable after hub close")
}

func TestHubBroadcastWithoutClients(t *testing.T) {
	hub := NewHub(logging.Nop(), nil)
	defer hub.Close()

	// Must not panic or block with nobody connected.
	hub.Broadcast(Frame{T: 1})
	hub.BroadcastEvent(bus.Event{Type: bus.EventTypeStrategyDegraded})
}
