package sse

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	redisclient "github.com/lumacast/pairing-server-go/internal/redis"
)

// Event names pushed to the receiver side of a pairing session.
const (
	EventConnected           = "connected"
	EventPeerJoined          = "peer_joined"
	EventCredentialsReceived = "credentials_received"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Code   string
	Events chan Event
	Done   chan struct{}
}

// Broker fans pairing events out to the receivers listening on a code.
// With a redis client attached, events travel through pubsub so every
// broker instance sees them; without one, fanout stays in-process.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // code -> set of clients
	cancels map[string]context.CancelFunc
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewBroker creates a broker. redisClient may be nil for single-instance
// deployments.
func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		cancels: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(code string) *Client {
	client := &Client{
		Code:   code,
		Events: make(chan Event, 16),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[code] == nil {
		b.clients[code] = make(map[*Client]bool)
		if b.redis != nil {
			subCtx, cancel := context.WithCancel(b.ctx)
			b.cancels[code] = cancel
			go b.subscribeToRedis(subCtx, code)
		}
	}
	b.clients[code][client] = true
	clientCount := len(b.clients[code])
	b.mu.Unlock()

	log.Info().
		Str("code", code).
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.Code]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.Code)
			// Codes are ephemeral; the pubsub goroutine for one must die
			// with its last client or every code ever paired leaks one.
			if cancel, ok := b.cancels[client.Code]; ok {
				cancel()
				delete(b.cancels, client.Code)
			}
		}

		log.Info().
			Str("code", client.Code).
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish delivers an event to every receiver listening on code.
func (b *Broker) Publish(ctx context.Context, code string, event Event) error {
	if b.redis == nil {
		b.broadcast(code, event)
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	channel := redisclient.PairingChannel(code)
	return b.redis.Publish(ctx, channel, data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, code string) {
	channel := redisclient.PairingChannel(code)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("code", code).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal event")
				continue
			}

			b.broadcast(code, event)
		}
	}
}

func (b *Broker) broadcast(code string, event Event) {
	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients[code]))
	for client := range b.clients[code] {
		clients = append(clients, client)
	}
	b.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("code", code).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.cancels = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(code string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[code])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
