package api

import (
	"context"
	"errors"
	"fmt"
)

// ErrRejected is returned when an admin endpoint answers {"success": false}.
var ErrRejected = errors.New("request rejected by interface")

const (
	acceptConfigUpdatePath = "/admin/acceptAliceConfigUpdate/"
	refuseConfigUpdatePath = "/admin/refuseAliceConfigUpdate/"
)

// AcceptConfigUpdate applies the core configuration changes a skill requested.
func (c *Client) AcceptConfigUpdate(ctx context.Context) error {
	return c.adminAction(ctx, acceptConfigUpdatePath)
}

// RefuseConfigUpdate discards the core configuration changes a skill requested.
func (c *Client) RefuseConfigUpdate(ctx context.Context) error {
	return c.adminAction(ctx, refuseConfigUpdatePath)
}

func (c *Client) adminAction(ctx context.Context, path string) error {
	var resp SuccessResponse
	if err := c.postWithRetry(ctx, path, &resp); err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	if !resp.Success {
		return fmt.Errorf("post %s: %w", path, ErrRejected)
	}
	return nil
}
