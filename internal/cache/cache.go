// Package cache persists the last fetched dataset with its freshness tokens.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/verte-zerg/flashdeck/internal/model"
)

// Key is the single persistence key the cache owns.
const Key = "vocabularyCache"

// SchemaVersion is written into every stored record. Records without a
// version (the first object shape) and bare arrays (the original shape) are
// still readable.
const SchemaVersion = 2

// KV is the synchronous string store the cache persists into.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Cache reads and writes the dataset record.
type Cache struct {
	kv KV
}

type envelope struct {
	Version         int           `json:"version,omitempty"`
	Dataset         model.Dataset `json:"parsedData"`
	ETag            string        `json:"etag,omitempty"`
	LastModified    string        `json:"lastModified,omitempty"`
	UpdateAvailable bool          `json:"updateAvailable,omitempty"`
}

// New returns a cache backed by kv.
func New(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Load returns the stored record. ok is false when nothing is stored.
func (c *Cache) Load(ctx context.Context) (model.CacheRecord, bool, error) {
	raw, ok, err := c.kv.Get(ctx, Key)
	if err != nil {
		return model.CacheRecord{}, false, fmt.Errorf("failed to read cache: %w", err)
	}
	if !ok {
		return model.CacheRecord{}, false, nil
	}
	record, err := decode([]byte(raw))
	if err != nil {
		return model.CacheRecord{}, false, err
	}
	return record, true, nil
}

// Store replaces the stored record.
func (c *Cache) Store(ctx context.Context, record model.CacheRecord) error {
	payload, err := encode(record)
	if err != nil {
		return err
	}
	if err := c.kv.Set(ctx, Key, string(payload)); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	return nil
}

// Clear removes the stored record.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.kv.Remove(ctx, Key); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func encode(record model.CacheRecord) ([]byte, error) {
	env := envelope{
		Version:         SchemaVersion,
		Dataset:         record.Dataset,
		ETag:            record.ETag,
		LastModified:    record.LastModified,
		UpdateAvailable: record.UpdatePending,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache: %w", err)
	}
	return payload, nil
}

func decode(raw []byte) (model.CacheRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return model.CacheRecord{}, fmt.Errorf("failed to decode cache: empty record")
	}

	if trimmed[0] == '[' {
		var dataset model.Dataset
		if err := json.Unmarshal(trimmed, &dataset); err != nil {
			return model.CacheRecord{}, fmt.Errorf("failed to decode legacy cache: %w", err)
		}
		return model.CacheRecord{Dataset: dataset}, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return model.CacheRecord{}, fmt.Errorf("failed to decode cache: %w", err)
	}
	if env.Version > SchemaVersion {
		return model.CacheRecord{}, fmt.Errorf("unsupported cache schema version %d", env.Version)
	}
	return model.CacheRecord{
		Dataset: env.Dataset,
		Freshness: model.Freshness{
			ETag:         env.ETag,
			LastModified: env.LastModified,
		},
		UpdatePending: env.UpdateAvailable,
	}, nil
}
