package api

import (
	"context"
	"net/http"

	"github.com/soundvault/playerd/internal/types"
)

// GetPlayerState fetches the persisted player snapshot from the server
func (c *Client) GetPlayerState(ctx context.Context) (*types.PlayerSnapshot, error) {
	var snapshot types.PlayerSnapshot
	if err := c.getJSON(ctx, "/player/state", nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PutPlayerState persists the player snapshot to the server
func (c *Client) PutPlayerState(ctx context.Context, snapshot *types.PlayerSnapshot) error {
	return c.sendJSON(ctx, http.MethodPut, "/player/state", snapshot, nil)
}
