package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "negotiation:"

func channelFor(negotiationID uint64) string {
	return fmt.Sprintf("%s%d", channelPrefix, negotiationID)
}

func negotiationFromChannel(channel string) (uint64, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(channel, channelPrefix), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// RedisBroadcaster publishes events on a per-negotiation Redis channel so that
// every API instance can deliver them to its own websocket rooms.
type RedisBroadcaster struct {
	client *redis.Client
	local  *Hub
	log    zerolog.Logger
}

func NewRedisBroadcaster(ctx context.Context, redisURL string, local *Hub, log zerolog.Logger) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisBroadcaster{
		client: client,
		local:  local,
		log:    log.With().Str("component", "redis_broadcaster").Logger(),
	}, nil
}

func (b *RedisBroadcaster) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelFor(ev.NegotiationID), data).Err()
}

// Run forwards every negotiation channel message to the local hub until ctx is done.
func (b *RedisBroadcaster) Run(ctx context.Context) error {
	ps := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			id, ok := negotiationFromChannel(msg.Channel)
			if !ok {
				b.log.Warn().Str("channel", msg.Channel).Msg("ignoring message on unexpected channel")
				continue
			}
			b.local.Deliver(id, []byte(msg.Payload))
		}
	}
}

func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
