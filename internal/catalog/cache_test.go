package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/soundvault/playerd/internal/types"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestPutAndGet(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	gain := -4.2
	track := types.Track{
		ID: 1, Title: "Roygbiv", Artist: "Boards of Canada",
		Album: "Music Has the Right to Children", Genre: "IDM",
		DurationMs: 149000, LoudnessGainDB: &gain,
	}
	if err := cache.Put(ctx, track); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != track.Title || got.Artist != track.Artist {
		t.Errorf("Unexpected track: %+v", got)
	}
	if got.LoudnessGainDB == nil || *got.LoudnessGainDB != gain {
		t.Error("Loudness hint lost in cache round trip")
	}
}

func TestGetMissing(t *testing.T) {
	cache := openTestCache(t)

	_, err := cache.Get(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPutUpserts(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	cache.Put(ctx, types.Track{ID: 1, Title: "Old Title"})
	cache.Put(ctx, types.Track{ID: 1, Title: "New Title"})

	got, err := cache.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "New Title" {
		t.Errorf("Expected upserted title, got %q", got.Title)
	}

	n, _ := cache.Count(ctx)
	if n != 1 {
		t.Errorf("Expected one row after upsert, got %d", n)
	}
}

func TestPutAllAndAll(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	tracks := []types.Track{
		{ID: 3, Title: "c"},
		{ID: 1, Title: "a"},
		{ID: 2, Title: "b"},
	}
	if err := cache.PutAll(ctx, tracks); err != nil {
		t.Fatalf("PutAll failed: %v", err)
	}

	all, err := cache.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 tracks, got %d", len(all))
	}
	if all[0].ID != 1 || all[2].ID != 3 {
		t.Error("Expected tracks ordered by id")
	}
}

// stubRemote fails on demand to exercise the cache fallback
type stubRemote struct {
	tracks map[int64]types.Track
	list   []types.Track
	down   bool
}

func (s *stubRemote) GetTrack(ctx context.Context, id int64) (*types.Track, error) {
	if s.down {
		return nil, errors.New("server unreachable")
	}
	track, ok := s.tracks[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &track, nil
}

func (s *stubRemote) ListTracks(ctx context.Context) ([]types.Track, error) {
	if s.down {
		return nil, errors.New("server unreachable")
	}
	return s.list, nil
}

func (s *stubRemote) StreamURL(id int64) string { return "" }

func (s *stubRemote) LogPlay(ctx context.Context, trackID, playDurationMs int64) error {
	return nil
}

func TestCachedFallsBackWhenRemoteDown(t *testing.T) {
	cache := openTestCache(t)
	ctx := context.Background()

	remote := &stubRemote{
		tracks: map[int64]types.Track{1: {ID: 1, Title: "Cached Me"}},
		list:   []types.Track{{ID: 1, Title: "Cached Me"}},
	}
	cached := NewCached(remote, cache)

	// First lookup populates the cache
	if _, err := cached.GetTrack(ctx, 1); err != nil {
		t.Fatalf("GetTrack failed: %v", err)
	}
	if _, err := cached.ListTracks(ctx); err != nil {
		t.Fatalf("ListTracks failed: %v", err)
	}

	// Server goes away; the cache answers
	remote.down = true

	track, err := cached.GetTrack(ctx, 1)
	if err != nil {
		t.Fatalf("Expected cache fallback, got %v", err)
	}
	if track.Title != "Cached Me" {
		t.Errorf("Unexpected track: %+v", track)
	}

	list, err := cached.ListTracks(ctx)
	if err != nil {
		t.Fatalf("Expected cached listing, got %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 cached track, got %d", len(list))
	}
}

func TestCachedPropagatesErrorOnEmptyCache(t *testing.T) {
	cache := openTestCache(t)
	remote := &stubRemote{down: true}
	cached := NewCached(remote, cache)

	if _, err := cached.GetTrack(context.Background(), 7); err == nil {
		t.Error("Expected error when both remote and cache miss")
	}
}
