package catalog

import (
	"context"
	"log"

	"github.com/soundvault/playerd/internal/types"
)

// Remote is the server-side catalog surface the cached view wraps
type Remote interface {
	GetTrack(ctx context.Context, id int64) (*types.Track, error)
	ListTracks(ctx context.Context) ([]types.Track, error)
	StreamURL(id int64) string
	LogPlay(ctx context.Context, trackID, playDurationMs int64) error
}

// Cached is a read-through catalog view: remote lookups populate the local
// sqlite cache, and the cache answers when the server is unreachable. This
// keeps radio generation and state rehydration working offline.
type Cached struct {
	remote Remote
	cache  *Cache
}

// NewCached wraps a remote catalog with the local cache
func NewCached(remote Remote, cache *Cache) *Cached {
	return &Cached{remote: remote, cache: cache}
}

// GetTrack fetches a track from the server, falling back to the cache
func (c *Cached) GetTrack(ctx context.Context, id int64) (*types.Track, error) {
	track, err := c.remote.GetTrack(ctx, id)
	if err == nil {
		if cacheErr := c.cache.Put(ctx, *track); cacheErr != nil {
			log.Printf("[CATALOG] Failed to cache track %d: %v", id, cacheErr)
		}
		return track, nil
	}

	cached, cacheErr := c.cache.Get(ctx, id)
	if cacheErr != nil {
		return nil, err
	}
	return cached, nil
}

// ListTracks fetches the full catalog from the server, falling back to the
// cached copy
func (c *Cached) ListTracks(ctx context.Context) ([]types.Track, error) {
	tracks, err := c.remote.ListTracks(ctx)
	if err == nil {
		if cacheErr := c.cache.PutAll(ctx, tracks); cacheErr != nil {
			log.Printf("[CATALOG] Failed to cache catalog: %v", cacheErr)
		}
		return tracks, nil
	}

	cached, cacheErr := c.cache.All(ctx)
	if cacheErr != nil || len(cached) == 0 {
		return nil, err
	}
	return cached, nil
}

// StreamURL returns the streaming URL for a track
func (c *Cached) StreamURL(id int64) string {
	return c.remote.StreamURL(id)
}

// LogPlay records a completed play on the server
func (c *Cached) LogPlay(ctx context.Context, trackID, playDurationMs int64) error {
	return c.remote.LogPlay(ctx, trackID, playDurationMs)
}
