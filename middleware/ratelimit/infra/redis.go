package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// incrementLua aplica a janela fixa no servidor: abre janela nova quando não há
// registro ou now > reset, incrementa e salva com ttl = reset-now (mínimo 1s).
const incrementLua = `
local count = tonumber(redis.call("HGET", KEYS[1], "count"))
local reset = tonumber(redis.call("HGET", KEYS[1], "reset"))
local now = tonumber(ARGV[1])
local period = tonumber(ARGV[2])

if count == nil or reset == nil or now > reset then
	count = 0
	reset = now + period
end

count = count + 1

local ttl = reset - now
if ttl < 1 then
	ttl = 1
end

redis.call("HSET", KEYS[1], "count", count, "reset", reset)
redis.call("EXPIRE", KEYS[1], ttl)

return {count, reset}
`

// RedisStore guarda cada janela em um hash {count, reset} com EXPIRE.
//
// Implementa domain.AtomicCounterStore via script Lua, então várias instâncias
// do gateway compartilham o mesmo contador sem race de read-modify-write.
type RedisStore struct {
	rdb             *redis.Client
	prefix          string
	incrementScript *redis.Script
}

type RedisOption func(*RedisStore)

func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		rdb:             rdb,
		prefix:          "ratelimiter:",
		incrementScript: redis.NewScript(incrementLua),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Get(ctx context.Context, key string) (domain.WindowState, bool, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(key), "count", "reset").Result()
	if err != nil {
		return domain.WindowState{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return domain.WindowState{}, false, nil
	}

	count, err := parseRedisInt(vals[0])
	if err != nil {
		return domain.WindowState{}, false, fmt.Errorf("parse count: %w", err)
	}
	reset, err := parseRedisInt(vals[1])
	if err != nil {
		return domain.WindowState{}, false, fmt.Errorf("parse reset: %w", err)
	}
	return domain.WindowState{Count: count, ResetAt: reset}, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, state domain.WindowState, ttl time.Duration) error {
	k := s.key(key)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k, "count", state.Count, "reset", state.ResetAt)
	if ttl > 0 {
		pipe.Expire(ctx, k, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Increment(ctx context.Context, key string, now, period int64) (domain.WindowState, error) {
	res, err := s.incrementScript.Run(ctx, s.rdb, []string{s.key(key)}, now, period).Result()
	if err != nil {
		return domain.WindowState{}, err
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return domain.WindowState{}, fmt.Errorf("unexpected script reply %T", res)
	}
	count, err := parseRedisInt(arr[0])
	if err != nil {
		return domain.WindowState{}, fmt.Errorf("parse count: %w", err)
	}
	reset, err := parseRedisInt(arr[1])
	if err != nil {
		return domain.WindowState{}, fmt.Errorf("parse reset: %w", err)
	}
	return domain.WindowState{Count: count, ResetAt: reset}, nil
}

func parseRedisInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
