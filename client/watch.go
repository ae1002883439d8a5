package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrStreamClosed is returned by Watch when the stream ends before a
// terminal event.
var ErrStreamClosed = errors.New("event stream closed before the withdrawal finished")

// Watch streams status events for a withdrawal, calling fn for each one,
// and returns the terminal event. With replay set, events published before
// the call are delivered first. fn may be nil.
func (c *Client) Watch(ctx context.Context, id string, replay bool, fn func(*StatusEvent)) (*StatusEvent, error) {
	u := fmt.Sprintf("%s/api/v1/withdrawals/%s/events", c.baseURL, url.PathEscape(id))
	if replay {
		u += "?replay=true"
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The shared client's timeout would cut the stream.
	stream := *c.httpClient
	stream.Timeout = 0
	resp, err := stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to event stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventType, data string
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line indicates end of event
		if line == "" {
			if eventType == "status" && data != "" {
				var event StatusEvent
				if err := json.Unmarshal([]byte(data), &event); err != nil {
					c.logger.Warn("skipping malformed status event", "error", err)
				} else {
					if fn != nil {
						fn(&event)
					}
					if event.Terminal() {
						return &event, nil
					}
				}
			}
			eventType, data = "", ""
			continue
		}

		if v, ok := strings.CutPrefix(line, "event:"); ok {
			eventType = strings.TrimSpace(v)
		} else if v, ok := strings.CutPrefix(line, "data:"); ok {
			data = strings.TrimSpace(v)
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("error reading event stream: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, ErrStreamClosed
}
