package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Jorge5452/Melodify-Deezer/core/pipeline"
	"github.com/Jorge5452/Melodify-Deezer/logger"
	"github.com/Jorge5452/Melodify-Deezer/model"
)

const catalogTTL = 24 * time.Hour

// GetTrackKey builds the Redis key for a track's metadata.
func GetTrackKey(id string) string {
	return fmt.Sprintf("catalog:track:%s", id)
}

// GetCollectionKey builds the Redis key for an album or playlist's metadata.
func GetCollectionKey(kind model.ContentKind, id string) string {
	return fmt.Sprintf("catalog:%s:%s", kind, id)
}

// CachedCatalog wraps a catalog with a read-through Redis cache. Every cache
// failure degrades to a direct catalog call, so a dead Redis only costs speed.
type CachedCatalog struct {
	upstream pipeline.Catalog
}

// NewCachedCatalog wraps upstream with the Redis metadata cache.
func NewCachedCatalog(upstream pipeline.Catalog) *CachedCatalog {
	return &CachedCatalog{upstream: upstream}
}

func (c *CachedCatalog) GetTrack(ctx context.Context, id string) (*model.TrackMetadata, error) {
	key := GetTrackKey(id)
	var cached model.TrackMetadata
	if getJSON(ctx, key, &cached) {
		return &cached, nil
	}

	meta, err := c.upstream.GetTrack(ctx, id)
	if err != nil {
		return nil, err
	}
	setJSON(ctx, key, meta)
	return meta, nil
}

func (c *CachedCatalog) GetAlbum(ctx context.Context, id string) (*model.CollectionMetadata, error) {
	return c.getCollection(ctx, model.KindAlbum, id, c.upstream.GetAlbum)
}

func (c *CachedCatalog) GetPlaylist(ctx context.Context, id string) (*model.CollectionMetadata, error) {
	return c.getCollection(ctx, model.KindPlaylist, id, c.upstream.GetPlaylist)
}

func (c *CachedCatalog) getCollection(ctx context.Context, kind model.ContentKind, id string,
	fetch func(context.Context, string) (*model.CollectionMetadata, error)) (*model.CollectionMetadata, error) {

	key := GetCollectionKey(kind, id)
	var cached model.CollectionMetadata
	if getJSON(ctx, key, &cached) {
		return &cached, nil
	}

	meta, err := fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	setJSON(ctx, key, meta)
	return meta, nil
}

// getJSON reports whether key was found and decoded into out.
func getJSON(ctx context.Context, key string, out interface{}) bool {
	if RedisClient == nil {
		return false
	}
	raw, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("Catalog cache read failed", logger.String("key", key), logger.ErrorField(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		logger.Warn("Catalog cache entry corrupt, ignoring", logger.String("key", key), logger.ErrorField(err))
		return false
	}
	return true
}

func setJSON(ctx context.Context, key string, val interface{}) {
	if RedisClient == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := RedisClient.Set(ctx, key, raw, catalogTTL).Err(); err != nil {
		logger.Warn("Catalog cache write failed", logger.String("key", key), logger.ErrorField(err))
	}
}
