package api

import (
	"context"
	"fmt"

	"github.com/soundvault/playerd/internal/types"
)

// GetLyrics looks up lyrics for a track. A "not found" response is not an
// error; it comes back as a result with Found=false and a message.
func (c *Client) GetLyrics(ctx context.Context, trackID int64) (*types.LyricsResult, error) {
	var result types.LyricsResult
	if err := c.getJSON(ctx, fmt.Sprintf("/lyrics/%d", trackID), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
