package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventType names a live feed event.
type EventType string

const (
	EventCheerCreated   EventType = "cheer.created"
	EventCommentAdded   EventType = "comment.added"
	EventCommentEdited  EventType = "comment.edited"
	EventCommentDeleted EventType = "comment.deleted"
	EventLikeToggled    EventType = "like.toggled"
)

const feedChannel = "cheers:feed"

// Event is pushed to every connected feed client.
type Event struct {
	Type    EventType   `json:"type"`
	CheerID uuid.UUID   `json:"cheer_id"`
	Actor   string      `json:"actor"`
	Data    interface{} `json:"data,omitempty"`
	At      time.Time   `json:"at"`
}

type envelope struct {
	InstanceID string          `json:"instance_id"`
	Payload    json.RawMessage `json:"payload"`
}

// Client is one live feed subscriber.
type Client struct {
	AccountID string
	Send      chan []byte
}

func NewClient(accountID string) *Client {
	return &Client{AccountID: accountID, Send: make(chan []byte, 64)}
}

// Hub fans feed events out to local clients and, through Redis pub/sub,
// to the clients of every other instance.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	redis      *redis.Client
	instanceID string
}

// NewHub creates a hub. redisClient may be nil, in which case events stay on this instance.
func NewHub(redisClient *redis.Client) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		redis:      redisClient,
		instanceID: uuid.NewString(),
	}
}

// Run relays events published by other instances until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		<-ctx.Done()
		return
	}

	pubsub := h.redis.Subscribe(ctx, feedChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warn().Err(err).Msg("Malformed feed event on redis channel")
				continue
			}
			if env.InstanceID == h.instanceID {
				continue
			}
			h.broadcastLocal(env.Payload)
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Debug().Str("account_id", c.AccountID).Msg("Feed client connected")
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.Send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of local clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish delivers event to every client. Best effort: a failure is logged,
// never returned to the operation that produced the event.
func (h *Hub) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal feed event")
		return
	}

	h.broadcastLocal(data)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(envelope{InstanceID: h.instanceID, Payload: data})
	if err != nil {
		return
	}
	if err := h.redis.Publish(ctx, feedChannel, payload).Err(); err != nil {
		log.Error().Err(err).Str("channel", feedChannel).Msg("Redis publish failed")
	}
}

func (h *Hub) broadcastLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.Send <- data:
		default:
			log.Warn().Str("account_id", c.AccountID).Msg("Feed send buffer full, dropping event")
		}
	}
}
