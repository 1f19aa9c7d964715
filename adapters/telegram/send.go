package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jdelaire/pollbot/core"
)

// SendReply posts r through sendMessage. The parameters travel in the query
// string with the text URL-encoded; Markdown formatting is always on.
func (c *Client) SendReply(ctx context.Context, r core.Reply) bool {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(methodSendMessage, replyQuery(r)), nil)
	if err != nil {
		c.logger.Error("build sendMessage request", "error", redact(err))
		return false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("send failed", "chat_id", r.ChatID, "error", redact(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Description string `json:"description"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		c.logger.Warn("send rejected", "chat_id", r.ChatID, "status", resp.StatusCode, "description", body.Description)
		return false
	}

	return true
}

func replyQuery(r core.Reply) url.Values {
	query := url.Values{
		"chat_id":    {strconv.FormatInt(r.ChatID, 10)},
		"text":       {r.Text},
		"parse_mode": {parseMode},
	}
	if r.Threaded {
		query.Set("reply_to_message_id", strconv.FormatInt(r.MessageID, 10))
	}
	return query
}
