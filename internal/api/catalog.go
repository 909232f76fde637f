package api

import (
	"context"
	"fmt"

	"github.com/soundvault/playerd/internal/types"
)

// GetTrack looks up a single track by id
func (c *Client) GetTrack(ctx context.Context, id int64) (*types.Track, error) {
	var track types.Track
	if err := c.getJSON(ctx, fmt.Sprintf("/tracks/%d", id), nil, &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// ListTracks returns the full known track catalog. Used by the local
// heuristic radio generator.
func (c *Client) ListTracks(ctx context.Context) ([]types.Track, error) {
	var tracks []types.Track
	if err := c.getJSON(ctx, "/tracks", nil, &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// StreamURL resolves a track id to a playable source locator
func (c *Client) StreamURL(id int64) string {
	return fmt.Sprintf("%s/stream/%d", c.baseURL, id)
}

// LogPlay records a completed play in the server-side history (best-effort)
func (c *Client) LogPlay(ctx context.Context, trackID, playDurationMs int64) error {
	body := map[string]int64{
		"track_id":         trackID,
		"play_duration_ms": playDurationMs,
	}
	return c.sendJSON(ctx, "POST", "/history", body, nil)
}
