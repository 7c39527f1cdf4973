package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultRedisKey = "inventory:products"

// RedisBackend keeps the collection as one JSON document under a single key.
// SET replaces the value atomically.
type RedisBackend struct {
	rdb *redis.Client
	key string
}

func NewRedisBackend(rdb *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisBackend{rdb: rdb, key: key}
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.rdb.Ping(ctx).Err()
	})
}

// Load reads the document. A missing key is initialized to an empty collection.
func (b *RedisBackend) Load(ctx context.Context) ([]Product, error) {
	var raw []byte
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		raw, err = b.rdb.Get(ctx, b.key).Bytes()
		return err
	})

	if errors.Is(err, redis.Nil) {
		products := []Product{}
		if err := b.Save(ctx, products); err != nil {
			return nil, fmt.Errorf("initialize %s: %w", b.key, err)
		}
		return products, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", b.key, err)
	}

	products, err := unmarshalCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.key, err)
	}
	return products, nil
}

func (b *RedisBackend) Save(ctx context.Context, products []Product) error {
	raw, err := marshalCollection(products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}

	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return b.rdb.Set(ctx, b.key, raw, 0).Err()
	})
}
