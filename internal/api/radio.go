package api

import (
	"context"
	"net/http"

	"github.com/soundvault/playerd/internal/types"
)

// GenerateRadioPlaylist asks the server for a radio queue seeded by a track.
// The returned playlist id is used for later extension calls.
func (c *Client) GenerateRadioPlaylist(ctx context.Context, seedTrackID int64, limit int) (*types.RadioPlaylist, error) {
	body := map[string]interface{}{
		"seed_track_id": seedTrackID,
		"limit":         limit,
	}
	var playlist types.RadioPlaylist
	if err := c.sendJSON(ctx, http.MethodPost, "/radio/playlist", body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// ExtendRadioPlaylist asks the server for more tracks on an existing radio
// playlist, excluding tracks already queued.
func (c *Client) ExtendRadioPlaylist(ctx context.Context, playlistID string, seedTrackID int64, excludeIDs []int64, count int) ([]types.Track, error) {
	body := map[string]interface{}{
		"playlist_id":   playlistID,
		"seed_track_id": seedTrackID,
		"exclude_ids":   excludeIDs,
		"count":         count,
	}
	var result struct {
		Tracks []types.Track `json:"tracks"`
	}
	if err := c.sendJSON(ctx, http.MethodPost, "/radio/playlist/extend", body, &result); err != nil {
		return nil, err
	}
	return result.Tracks, nil
}

// ListStations returns the saved internet radio stations
func (c *Client) ListStations(ctx context.Context) ([]types.RadioStation, error) {
	var stations []types.RadioStation
	if err := c.getJSON(ctx, "/radio", nil, &stations); err != nil {
		return nil, err
	}
	return stations, nil
}
