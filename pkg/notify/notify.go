// Package notify fans lineup events out over Redis pub/sub so every server
// instance can refresh its open sessions when roster, leave or saved layout change.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arnavshah/warplanner-api-go/pkg/config"
)

const (
	channelPrefix  = "warplanner:"
	publishTimeout = 5 * time.Second
)

// Event names
const (
	RosterChanged = "roster.changed"
	LeaveChanged  = "leave.changed"
	LineupSaved   = "lineup.saved"
)

// Event is one message on a unit's channel
type Event struct {
	Unit   string          `json:"-"`
	Name   string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
	Origin string          `json:"origin"`
	At     int64           `json:"at"`
}

// Notifier publishes and receives unit events. A nil client turns every call into a no-op.
type Notifier struct {
	client *redis.Client
	origin string
	logger *zap.Logger
}

// Connect dials Redis when an address is configured and verifies it with a ping
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Notifier, error) {
	if cfg.Addr == "" {
		logger.Info("redis not configured, change notifications disabled")
		return New(nil, logger), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("redis client connected", zap.String("addr", cfg.Addr))
	return New(rdb, logger), nil
}

// New wraps an existing client, which may be nil
func New(client *redis.Client, logger *zap.Logger) *Notifier {
	return &Notifier{client: client, origin: uuid.NewString(), logger: logger}
}

// Enabled reports whether events actually leave this process
func (n *Notifier) Enabled() bool {
	return n != nil && n.client != nil
}

// Channel returns the Redis channel of a unit
func Channel(unitID string) string {
	return channelPrefix + unitID
}

// Publish sends an event on the unit's channel. data is JSON encoded.
func (n *Notifier) Publish(ctx context.Context, unitID, event string, data interface{}) error {
	if !n.Enabled() {
		return nil
	}
	body, err := n.encode(event, data)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return n.client.Publish(ctx, Channel(unitID), body).Err()
}

func (n *Notifier) encode(event string, data interface{}) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		raw = b
	}
	return json.Marshal(Event{Name: event, Data: raw, Origin: n.origin, At: time.Now().Unix()})
}

// decode parses a message received on channel. Messages this notifier published report self.
func (n *Notifier) decode(channel, payload string) (ev Event, self bool, err error) {
	unit := strings.TrimPrefix(channel, channelPrefix)
	if unit == channel || unit == "" {
		return ev, false, fmt.Errorf("unexpected channel %q", channel)
	}
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return ev, false, err
	}
	ev.Unit = unit
	return ev, ev.Origin == n.origin, nil
}

// Subscribe listens on every unit channel and calls handler for each event published
// by another instance. It returns once subscribed; the listener stops when ctx ends.
func (n *Notifier) Subscribe(ctx context.Context, handler func(Event)) error {
	if !n.Enabled() {
		return nil
	}
	pubsub := n.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				ev, self, err := n.decode(msg.Channel, msg.Payload)
				if err != nil {
					n.logger.Warn("dropping malformed event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if self {
					continue
				}
				handler(ev)
			}
		}
	}()
	return nil
}

// Close releases the Redis connection
func (n *Notifier) Close() error {
	if !n.Enabled() {
		return nil
	}
	return n.client.Close()
}
