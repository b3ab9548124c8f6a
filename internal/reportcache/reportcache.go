// Package reportcache shares the published dashboard report through Redis.
package reportcache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"topicmingle/internal/dashboard"
)

const DefaultKey = "topicmingle:report:v1"

// ErrCacheMiss matches dashboard.ErrNoReport.
var ErrCacheMiss = fmt.Errorf("report cache miss: %w", dashboard.ErrNoReport)

// Cache stores one gzip-compressed JSON report under a fixed key.
type Cache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, key: DefaultKey, ttl: ttl}
}

// NewFromURL connects to a redis:// URL.
func NewFromURL(url string, ttl time.Duration) (*Cache, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return New(redis.NewClient(opt), ttl), nil
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}

func (c *Cache) Load(ctx context.Context) (dashboard.Report, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return dashboard.Report{}, ErrCacheMiss
		}
		return dashboard.Report{}, fmt.Errorf("failed to read cached report: %w", err)
	}
	return Decode(data)
}

func (c *Cache) Save(ctx context.Context, report dashboard.Report) error {
	data, err := Encode(report)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	return nil
}

// Invalidate drops the cached report.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}

// Encode renders a report as gzip-compressed JSON.
func Encode(report dashboard.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress report: %w", err)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte) (dashboard.Report, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return dashboard.Report{}, fmt.Errorf("failed to decompress report: %w", err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return dashboard.Report{}, fmt.Errorf("failed to decompress report: %w", err)
	}

	var report dashboard.Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return dashboard.Report{}, fmt.Errorf("failed to decode report: %w", err)
	}
	return report, nil
}
