package iodriver

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/dungeongate/adventured/internal/apierr"
)

// redisMessage is the wire shape published to redis.output_channel: a
// single (game-id, entity-name, channel, Message) envelope.
type redisMessage struct {
	Game    uint64  `json:"game"`
	Entity  string  `json:"entity"`
	Channel string  `json:"channel"`
	Message Message `json:"message"`
}

// RedisOutput publishes messages on a single channel rather than keeping
// them addressable: Size and Pop are unsupported, matching a pub/sub
// collaborator that has no random-access read.
type RedisOutput struct {
	client  *redis.Client
	channel string
}

// NewRedisOutput wraps client, publishing every push to outputChannel.
func NewRedisOutput(client *redis.Client, outputChannel string) *RedisOutput {
	return &RedisOutput{client: client, channel: outputChannel}
}

func (r *RedisOutput) Name() string { return "redis" }

func (r *RedisOutput) Push(game uint64, entity, channel string, msg Message) error {
	payload, err := json.Marshal(redisMessage{Game: game, Entity: entity, Channel: channel, Message: msg})
	if err != nil {
		return apierr.Internal(fmt.Errorf("redis output: marshal: %w", err))
	}
	if err := r.client.Publish(context.Background(), r.channel, payload).Err(); err != nil {
		return apierr.Internal(fmt.Errorf("redis output: publish: %w", err))
	}
	return nil
}

func (r *RedisOutput) Size(game uint64, entity, channel string) (int, error) {
	return 0, apierr.Unsupported("redis output driver does not support random-access reads")
}

func (r *RedisOutput) Pop(game uint64, entity, channel string) (Message, bool, error) {
	return Message{}, false, apierr.Unsupported("redis output driver does not support random-access reads")
}

func (r *RedisOutput) Destroy(game uint64) {}

// RedisInput operates against redis lists keyed by (game, entity): Set
// replaces the list's contents with the single new command, Consume pops it.
type RedisInput struct {
	client *redis.Client
}

// NewRedisInput wraps client for list-backed input buffers.
func NewRedisInput(client *redis.Client) *RedisInput {
	return &RedisInput{client: client}
}

func (r *RedisInput) Name() string { return "redis" }

func (r *RedisInput) key(game uint64, entity string) string {
	return "adventured:input:" + strconv.FormatUint(game, 10) + ":" + entity
}

func (r *RedisInput) IsSet(game uint64, entity string) (bool, error) {
	n, err := r.client.LLen(context.Background(), r.key(game, entity)).Result()
	if err != nil {
		return false, apierr.Internal(fmt.Errorf("redis input: llen: %w", err))
	}
	return n > 0, nil
}

func (r *RedisInput) Set(game uint64, entity, command string) error {
	ctx := context.Background()
	key := r.key(game, entity)
	if _, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, command)
		return nil
	}); err != nil {
		return apierr.Internal(fmt.Errorf("redis input: set: %w", err))
	}
	return nil
}

func (r *RedisInput) Consume(game uint64, entity string) (string, bool, error) {
	v, err := r.client.LPop(context.Background(), r.key(game, entity)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apierr.Internal(fmt.Errorf("redis input: lpop: %w", err))
	}
	return v, true, nil
}

func (r *RedisInput) Destroy(game uint64) {}
