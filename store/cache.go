package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sierra-preorder/logger"
)

// Cached is a read-through Redis cache in front of another gateway. Only List results of
// the configured tables are cached. Keys embed a per-table version that every successful
// write bumps, so stale lists are never served after a mutation made through this process.
// A Redis failure degrades to the underlying gateway.
type Cached struct {
	next   Gateway
	rdb    *redis.Client
	ttl    time.Duration
	tables map[string]bool
	log    *logger.Logger
}

func NewCached(next Gateway, rdb *redis.Client, ttl time.Duration, log *logger.Logger, tables ...string) *Cached {
	if log == nil {
		log = logger.Discard()
	}
	c := &Cached{next: next, rdb: rdb, ttl: ttl, tables: make(map[string]bool), log: log}
	for _, t := range tables {
		c.tables[t] = true
	}
	return c
}

func versionKey(table string) string {
	return fmt.Sprintf("store:%s:v", table)
}

func (c *Cached) listKey(ctx context.Context, table string, q Query) (string, error) {
	ver, err := c.rdb.Get(ctx, versionKey(table)).Result()
	if errors.Is(err, redis.Nil) {
		ver = "0"
	} else if err != nil {
		return "", err
	}
	b, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("store:%s:%s:%s", table, ver, hex.EncodeToString(sum[:12])), nil
}

func (c *Cached) List(ctx context.Context, table string, q Query, dst any) error {
	if !c.tables[table] {
		return c.next.List(ctx, table, q, dst)
	}
	key, err := c.listKey(ctx, table, q)
	if err != nil {
		c.log.Warn("cache_unavailable", "redis lookup failed, reading through", "table", table, "error", err.Error())
		return c.next.List(ctx, table, q, dst)
	}
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		return wrap("list", table, decodeInto(raw, dst))
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("cache_unavailable", "redis get failed, reading through", "table", table, "error", err.Error())
	}

	var raw json.RawMessage
	if err := c.next.List(ctx, table, q, &raw); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, key, []byte(raw), c.ttl).Err(); err != nil {
		c.log.Warn("cache_store_failed", "could not cache list", "table", table, "error", err.Error())
	}
	return wrap("list", table, decodeInto(raw, dst))
}

func (c *Cached) Insert(ctx context.Context, table string, rec any, dst any) error {
	if err := c.next.Insert(ctx, table, rec, dst); err != nil {
		return err
	}
	c.invalidate(ctx, table)
	return nil
}

func (c *Cached) Update(ctx context.Context, table, id string, patch any, dst any) error {
	if err := c.next.Update(ctx, table, id, patch, dst); err != nil {
		return err
	}
	c.invalidate(ctx, table)
	return nil
}

func (c *Cached) Delete(ctx context.Context, table, id string) error {
	if err := c.next.Delete(ctx, table, id); err != nil {
		return err
	}
	c.invalidate(ctx, table)
	return nil
}

func (c *Cached) invalidate(ctx context.Context, table string) {
	if !c.tables[table] {
		return
	}
	if err := c.rdb.Incr(ctx, versionKey(table)).Err(); err != nil {
		c.log.Error("cache_invalidate_failed", "could not bump cache version", err, "table", table)
	}
}
