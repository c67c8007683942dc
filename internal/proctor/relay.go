package proctor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/config"
)

// RedisRelay fans proctor commands out to every instance over Redis
// Pub/Sub. Each instance subscribes to all exam channels and hands what it
// receives to its own hub.
type RedisRelay struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewRedisRelay creates a relay over rdb.
func NewRedisRelay(rdb *redis.Client, log zerolog.Logger) *RedisRelay {
	return &RedisRelay{
		rdb: rdb,
		log: log.With().Str("component", "proctor_relay").Logger(),
	}
}

// Publish sends cmd on the exam's channel.
func (r *RedisRelay) Publish(ctx context.Context, cmd Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}
	channel := config.CacheKey.ProctorChannel(cmd.ExamID.String())
	if err := r.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Run delivers every published command to hub until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context, hub *Hub) error {
	pubsub := r.rdb.PSubscribe(ctx, config.CacheKey.ProctorChannelPattern())
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reporting ready.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe proctor channels: %w", err)
	}
	r.log.Info().Str("pattern", config.CacheKey.ProctorChannelPattern()).Msg("Proctor relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			cmd, err := decodeCommand(msg.Channel, msg.Payload)
			if err != nil {
				r.log.Warn().Err(err).Str("channel", msg.Channel).Msg("Relay message dropped")
				continue
			}
			if err := hub.Dispatch(ctx, cmd); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("dispatch relayed command: %w", err)
			}
		}
	}
}

// decodeCommand parses a relayed command and checks it was published on its
// own exam's channel.
func decodeCommand(channel, payload string) (Command, error) {
	var cmd Command
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if !strings.EqualFold(channel, config.CacheKey.ProctorChannel(cmd.ExamID.String())) {
		return Command{}, fmt.Errorf("command for exam %s on channel %s", cmd.ExamID, channel)
	}
	return cmd, nil
}
