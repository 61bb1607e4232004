// кэш cooldown-ов на Redis
// быстрый путь для проверки "когда последний раз слали алерт с этим ключом";
// при недоступности кэша очередь отправки откатывается на историю в Persistence
package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"dropalert/configs"
	"dropalert/internal/interfaces"
)

const cooldownKeyPrefix = "dropalert:cooldown:"

type RedisCooldownCache struct {
	client *redis.Client
}

// NewRedisCooldownCache создаёт клиента Redis и проверяет подключение
func NewRedisCooldownCache(cfg *configs.RedisConfig) (*RedisCooldownCache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	log.Printf("Connected to Redis at %s (DB: %d)", cfg.Addr(), cfg.DB)

	return &RedisCooldownCache{client: client}, nil
}

// LastSent возвращает время последней отправки по ключу дедупликации
func (r *RedisCooldownCache) LastSent(ctx context.Context, dedupKey string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, cooldownKeyPrefix+dedupKey).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read cooldown key: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		// мусорное значение трактуем как отсутствие, иначе ключ навсегда залипнет
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// MarkSent записывает момент отправки; TTL равен окну cooldown,
// так что протухание ключа и окончание cooldown совпадают
func (r *RedisCooldownCache) MarkSent(ctx context.Context, dedupKey string, at time.Time, ttl time.Duration) error {
	err := r.client.Set(ctx, cooldownKeyPrefix+dedupKey, at.Format(time.RFC3339Nano), ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to write cooldown key: %w", err)
	}
	return nil
}

// Close завершает работу клиента
func (r *RedisCooldownCache) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Проверка на этапе компиляции, что тип реализует интерфейс
var _ interfaces.CooldownCache = (*RedisCooldownCache)(nil)
