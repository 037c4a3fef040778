package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL é o tempo após o qual um lease abandonado é considerado velho
	DefaultTTL = 30 * time.Minute

	keyPrefix = "monitor:scan:"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker é um Locker distribuído (SET NX PX), para várias instâncias.
// O TTL funciona como timeout de leases esquecidos por processos que morreram.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker cria um RedisLocker
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire implementa Locker
func (l *RedisLocker) Acquire(ctx context.Context, competitorID int64) (Lease, error) {
	key := fmt.Sprintf("%s%d", keyPrefix, competitorID)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("erro ao adquirir lease: %w", err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: l.client, key: key, token: token}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	token  string
}

// Release apaga a chave apenas se ela ainda pertence a este lease
func (l *redisLease) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("erro ao liberar lease: %w", err)
	}
	if result == 0 {
		return ErrNotHeld
	}
	return nil
}
