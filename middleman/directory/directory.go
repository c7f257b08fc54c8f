// Package directory mirrors successful middleman connections into Redis
// so other middleman instances in the same cluster can resolve a node_id
// to a host:port without re-running discovery or re-dialing, adapted
// from a Redis client wrapper.
package directory

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/phuhao00/actorcore/actor"
	"github.com/phuhao00/actorcore/config"
)

const keyPrefix = "actorcore:node:"

// Cache is a Redis-backed NodeDirectory: Put mirrors a resolved node
// address and Get reads it back. Middleman calls only Put (after a
// successful Connect); Connect does not consult Get.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis per cfg, choosing a sentinel-backed failover
// client or a single-node client exactly as a
// NewRedisClient does.
func New(cfg config.RedisConfig) (*Cache, error) {
	switch {
	case cfg.MasterName != "" && len(cfg.SentinelAddrs) > 0:
		rdb := redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: cfg.SentinelAddrs,
			Password:      cfg.Password,
			DB:            cfg.DB,
		})
		return &Cache{client: rdb, ttl: 10 * time.Minute}, nil
	case cfg.Addr != "":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		return &Cache{client: rdb, ttl: 10 * time.Minute}, nil
	default:
		return nil, fmt.Errorf("directory: redis configuration is insufficient: need addr, or master_name+sentinel_addrs")
	}
}

func nodeKey(node actor.NodeID) string {
	buf := actor.EncodeNodeID(node)
	return keyPrefix + hex.EncodeToString(buf[:])
}

// Put records addr as node's last-known-good listen address.
func (c *Cache) Put(node actor.NodeID, addr string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.client.Set(ctx, nodeKey(node), addr, c.ttl).Err()
}

// Get returns node's last-known-good address, if one was mirrored and
// hasn't expired.
func (c *Cache) Get(node actor.NodeID) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	addr, err := c.client.Get(ctx, nodeKey(node)).Result()
	if err != nil {
		return "", false
	}
	return addr, true
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
