package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/search-ltr/pkg/redis"
)

// KV is the subset of the Redis client used by RedisBackend.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	ScanKeys(ctx context.Context, pattern string, limit int) ([]string, error)
}

// RedisBackend stores each element under "ltr:<store>:<type>:<name>" without
// expiry.
type RedisBackend struct {
	kv    KV
	store string
}

func NewRedisBackend(kv KV, store string) *RedisBackend {
	return &RedisBackend{kv: kv, store: store}
}

func (b *RedisBackend) prefix(typ ElementType) string {
	return "ltr:" + b.store + ":" + string(typ) + ":"
}

func (b *RedisBackend) Get(ctx context.Context, typ ElementType, name string) ([]byte, error) {
	data, err := b.kv.Get(ctx, b.prefix(typ)+name)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, notFound(typ, name)
		}
		return nil, fmt.Errorf("redis get %s [%s]: %w", typ, name, err)
	}
	return []byte(data), nil
}

func (b *RedisBackend) Put(ctx context.Context, typ ElementType, name string, definition []byte) error {
	return b.kv.Set(ctx, b.prefix(typ)+name, definition, 0)
}

func (b *RedisBackend) Delete(ctx context.Context, typ ElementType, name string) error {
	if _, err := b.Get(ctx, typ, name); err != nil {
		return err
	}
	return b.kv.Del(ctx, b.prefix(typ)+name)
}

func (b *RedisBackend) Search(ctx context.Context, typ ElementType, pattern string) ([]string, error) {
	prefix := b.prefix(typ)
	keys, err := b.kv.ScanKeys(ctx, prefix+escapeRedisGlob(pattern), 0)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(names)
	return names, nil
}

// escapeRedisGlob escapes the Redis glob metacharacters other than '*'.
func escapeRedisGlob(pattern string) string {
	var sb strings.Builder
	for _, r := range pattern {
		switch r {
		case '?', '[', ']', '\\':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
