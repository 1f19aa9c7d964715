package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jdelaire/pollbot/core"
)

type updatesResponse struct {
	OK          bool              `json:"ok"`
	Description string            `json:"description"`
	Result      []json.RawMessage `json:"result"`
}

// FetchUpdates long-polls getUpdates. When cursor is set the request asks
// for updates after it (offset = cursor + 1).
func (c *Client) FetchUpdates(ctx context.Context, cursor *int64, limit, timeout int) ([]core.Update, bool) {
	query := url.Values{
		"limit":   {strconv.Itoa(limit)},
		"timeout": {strconv.Itoa(timeout)},
	}
	if cursor != nil {
		query.Set("offset", strconv.FormatInt(*cursor+1, 10))
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second+pollSlack)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint(methodGetUpdates, query), nil)
	if err != nil {
		c.logger.Error("build getUpdates request", "error", redact(err))
		return nil, false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("poll failed", "error", redact(err))
		}
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("poll failed", "status", resp.StatusCode)
		return nil, false
	}

	var body updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("decode updates", "error", err)
		return nil, false
	}
	if !body.OK {
		c.logger.Warn("api returned ok=false", "description", body.Description)
		return nil, false
	}
	if body.Result == nil {
		c.logger.Warn("response has no result")
		return nil, false
	}

	updates := make([]core.Update, len(body.Result))
	for i, raw := range body.Result {
		updates[i] = core.ParseUpdate(raw)
	}
	return updates, true
}
