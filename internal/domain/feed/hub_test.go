package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/cheers/cheers-api/internal/middleware"
)

func TestHubPublishReachesLocalClients(t *testing.T) {
	hub := NewHub(nil)
	a := NewClient("alice")
	b := NewClient("bob")
	hub.Register(a)
	hub.Register(b)

	cheerID := uuid.New()
	hub.Publish(context.Background(), Event{Type: EventCheerCreated, CheerID: cheerID, Actor: "alice"})

	for _, c := range []*Client{a, b} {
		select {
		case msg := <-c.Send:
			var ev Event
			if err := json.Unmarshal(msg, &ev); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if ev.Type != EventCheerCreated || ev.CheerID != cheerID {
				t.Fatalf("unexpected event %+v", ev)
			}
			if ev.At.IsZero() {
				t.Fatal("expected event timestamp")
			}
		default:
			t.Fatalf("client %s got nothing", c.AccountID)
		}
	}

	hub.Unregister(a)
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if _, ok := <-a.Send; ok {
		t.Fatal("expected closed send channel after unregister")
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{AccountID: "slow", Send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Publish(context.Background(), Event{Type: EventLikeToggled})
	hub.Publish(context.Background(), Event{Type: EventLikeToggled})

	if len(c.Send) != 1 {
		t.Fatalf("expected one buffered event, got %d", len(c.Send))
	}
}

func TestWebSocketStreamsEvents(t *testing.T) {
	hub := NewHub(nil)
	handler := NewHandler(hub, nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(middleware.WithIdentity(r.Context(), "carol", "member"))
		handler.WebSocket(w, r)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(context.Background(), Event{Type: EventCommentAdded, Actor: "dave"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != EventCommentAdded || ev.Actor != "dave" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketRequiresIdentity(t *testing.T) {
	handler := NewHandler(NewHub(nil), nil)
	w := httptest.NewRecorder()
	handler.WebSocket(w, httptest.NewRequest(http.MethodGet, "/ws/feed", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
