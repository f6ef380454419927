package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startHubServer(t *testing.T, hub *Hub) string {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(r.URL.Query()["class"], w, r)
	}))
	t.Cleanup(server.Close)

	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func TestHubBroadcastsOccupancyToSubscribers(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?class=class-1", nil)
	require.NoError(t, err)
	defer conn.Close()

	// Subscription is registered before Serve blocks, but give the server a
	// beat to finish the handshake.
	time.Sleep(20 * time.Millisecond)

	hub.PublishOccupancy("class-1", 9, 10, 2)

	event := readEvent(t, conn)
	require.Equal(t, "class-1", event.ClassID)
	require.Equal(t, "occupancy", event.Event)

	data, ok := event.Data.(map[string]any)
	require.True(t, ok)
	require.InDelta(t, 9, data["enrolled"], 0)
	require.InDelta(t, 10, data["capacity"], 0)
	require.InDelta(t, 2, data["waitlisted"], 0)
}

func TestHubIgnoresUnsubscribedClasses(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?class=class-1", nil)
	require.NoError(t, err)
	defer conn.Close()
	time.Sleep(20 * time.Millisecond)

	hub.PublishOccupancy("class-2", 1, 10, 0)
	hub.PublishOccupancy("class-1", 3, 10, 0)

	event := readEvent(t, conn)
	require.Equal(t, "class-1", event.ClassID)
}

func TestHubBroadcastDropsSlowSubscriberWithoutStalling(t *testing.T) {
	hub := NewHub()

	sockets := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sockets <- conn
	}))
	t.Cleanup(server.Close)

	dialed, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer dialed.Close()
	serverConn := <-sockets

	// No write loop draining this client, so a single buffered event is all
	// it takes to make it fall behind.
	client := &connection{
		hub:    hub,
		socket: serverConn,
		send:   make(chan Event, 1),
		done:   make(chan struct{}),
	}
	hub.subscribe(client, []string{"class-1"})

	hub.Broadcast("class-1", Event{Event: "occupancy"})

	finished := make(chan struct{})
	go func() {
		hub.Broadcast("class-1", Event{Event: "occupancy"})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast stalled on a slow subscriber")
	}

	select {
	case <-client.done:
	default:
		t.Fatal("slow subscriber was not closed")
	}

	hub.mu.RLock()
	_, stillSubscribed := hub.channels["class-1"][client]
	hub.mu.RUnlock()
	require.False(t, stillSubscribed)
}

func TestHubControlMessageSubscribes(t *testing.T) {
	hub := NewHub()
	url := startHubServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action":  "subscribe",
		"classes": []string{"class-7"},
	}))
	time.Sleep(50 * time.Millisecond)

	hub.PublishOccupancy("class-7", 5, 12, 1)

	event := readEvent(t, conn)
	require.Equal(t, "class-7", event.ClassID)
}
