package http

import (
	"context"
	"fmt"
	"time"
)

// WaitFor polls path until it answers with a 2xx status or ctx expires.
// It is the preflight used before a run so that an unreachable backend is
// reported once instead of as a failure of every scenario.
func (c *Client) WaitFor(ctx context.Context, path string, interval time.Duration) error {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	var lastErr error
	var lastStatus int

	for {
		resp, err := c.Send(ctx, NewRequest("GET", path), interval*4)
		if err == nil {
			if resp.IsSuccess() {
				return nil
			}
			lastStatus = resp.StatusCode
		} else {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("service %s%s not ready: %w", c.baseURL, path, lastErr)
			}
			return fmt.Errorf("service %s%s not ready: got status %d", c.baseURL, path, lastStatus)
		case <-time.After(interval):
		}
	}
}
