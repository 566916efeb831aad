// Package groupme talks to the GroupMe bot API and renders the bot's
// reply texts.
package groupme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	appLog "askcoach/internal/log"
)

const (
	defaultPostURL = "https://api.groupme.com/v3/bots/post"

	// maxMessageLen is GroupMe's hard limit on message text.
	maxMessageLen = 1000
)

// Client posts messages to a GroupMe group through a bot id. Delivery
// failures are returned to the caller and never retried here.
type Client struct {
	botID   string
	postURL string
	httpc   *http.Client
}

// NewClient creates a Client for the given bot id.
func NewClient(botID string) *Client {
	return &Client{
		botID:   botID,
		postURL: defaultPostURL,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// postPayload is the bot-post request body.
type postPayload struct {
	BotID string `json:"bot_id"`
	Text  string `json:"text"`
}

// Send posts text to the group. Text longer than the channel limit is
// truncated before sending. GroupMe acknowledges with 202 Accepted.
func (c *Client) Send(ctx context.Context, text string) error {
	if c.botID == "" {
		return errors.New("groupme: bot id not configured")
	}

	payload, err := json.Marshal(postPayload{
		BotID: c.botID,
		Text:  Truncate(text, maxMessageLen),
	})
	if err != nil {
		return fmt.Errorf("groupme: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("groupme: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("groupme: post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("groupme: unexpected status %d: %s", resp.StatusCode, body)
	}

	appLog.Debug("message posted", "len", len(text))
	return nil
}

// Truncate cuts text to at most limit runes.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
