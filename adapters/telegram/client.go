package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jdelaire/pollbot/core"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	methodGetUpdates  = "getUpdates"
	methodSendMessage = "sendMessage"

	// pollSlack is added to the long-poll timeout to get the request deadline.
	pollSlack   = 10 * time.Second
	sendTimeout = 10 * time.Second
	parseMode   = "Markdown"
)

var _ core.Transport = (*Client)(nil)

// Client talks to the Telegram Bot API. It never returns network failures
// as errors: retrievals report "no data" and sends report false.
type Client struct {
	botToken string
	logger   *slog.Logger
	client   *http.Client
	baseURL  string
}

// New creates a Telegram client for the given bot token.
func New(botToken string, logger *slog.Logger) *Client {
	return &Client{
		botToken: botToken,
		logger:   logger,
		// Deadlines are set per request.
		client:   &http.Client{},
		baseURL:  DefaultBaseURL,
	}
}

// WithBaseURL overrides the Telegram API base URL. An empty url keeps the
// default.
func (c *Client) WithBaseURL(url string) *Client {
	if url != "" {
		c.baseURL = url
	}
	return c
}

// WithHTTPClient replaces the underlying HTTP client. Every request
// carries its own context deadline (long-poll timeout plus pollSlack, or
// sendTimeout), so hc needs no Timeout; one shorter than the long poll cuts
// retrievals short.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

func (c *Client) endpoint(method string, query url.Values) string {
	return fmt.Sprintf("%s/bot%s/%s?%s", c.baseURL, c.botToken, method, query.Encode())
}

// redact drops the request URL from transport errors; it carries the token.
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
