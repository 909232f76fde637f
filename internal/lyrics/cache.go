package lyrics

import (
	"context"
	"log"
	"sync"

	"github.com/soundvault/playerd/internal/types"
)

// Fetcher looks up lyrics for a track id
type Fetcher interface {
	GetLyrics(ctx context.Context, trackID int64) (*types.LyricsResult, error)
}

// Entry is a cached lyric lookup for one track
type Entry struct {
	Lines   []Line
	Plain   string
	Found   bool
	Message string
}

// Cache fetches lyrics once per track and keeps them for the session.
// Lyrics are immutable per track, so entries are never invalidated.
type Cache struct {
	mu      sync.RWMutex
	fetcher Fetcher
	entries map[int64]*Entry
}

// NewCache creates a new lyric cache
func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher: fetcher,
		entries: make(map[int64]*Entry),
	}
}

// Get returns the cached entry for a track, fetching it on first use.
// A failed lookup is cached as a not-found entry with a generic message so
// repeated queries don't hammer the server.
func (c *Cache) Get(ctx context.Context, trackID int64) *Entry {
	c.mu.RLock()
	entry, ok := c.entries[trackID]
	c.mu.RUnlock()
	if ok {
		return entry
	}

	entry = c.fetch(ctx, trackID)

	c.mu.Lock()
	// Another goroutine may have raced us; keep the first entry
	if existing, ok := c.entries[trackID]; ok {
		entry = existing
	} else {
		c.entries[trackID] = entry
	}
	c.mu.Unlock()

	return entry
}

func (c *Cache) fetch(ctx context.Context, trackID int64) *Entry {
	result, err := c.fetcher.GetLyrics(ctx, trackID)
	if err != nil {
		log.Printf("[LYRICS] Lookup failed for track %d: %v", trackID, err)
		return &Entry{Message: "Lyrics lookup failed"}
	}

	if !result.Found {
		message := result.Message
		if message == "" {
			message = "No lyrics found for this track"
		}
		return &Entry{Message: message}
	}

	entry := &Entry{Found: true, Plain: result.PlainLyrics}
	// The server flags whether the lyric body carries usable timestamps;
	// unsynced bodies are plain text even when markup leaked into them
	if result.Synced && result.SyncedLyrics != "" {
		entry.Lines = Parse(result.SyncedLyrics)
	}
	return entry
}

// ActiveLine maps a playback position (seconds) to the active synced line
// index for a track, or -1 if there is none.
func (c *Cache) ActiveLine(trackID int64, position float64) int {
	c.mu.RLock()
	entry, ok := c.entries[trackID]
	c.mu.RUnlock()
	if !ok || len(entry.Lines) == 0 {
		return -1
	}
	return ActiveLine(entry.Lines, position)
}

// Prefetch warms the cache for upcoming queue entries so a forward skip
// doesn't incur a visible lookup delay.
func (c *Cache) Prefetch(ctx context.Context, tracks []types.Track) {
	for _, track := range tracks {
		c.mu.RLock()
		_, ok := c.entries[track.ID]
		c.mu.RUnlock()
		if ok {
			continue
		}

		go func(id int64) {
			c.Get(ctx, id)
		}(track.ID)
	}
}
