package dialogue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ============================================
// DIALOGUE GATEWAY CLIENT
// Rasa-style REST webhook: utterance in, reply fragments out
// ============================================

// ErrEmptyReply is returned when the engine answers with no speakable text
var ErrEmptyReply = errors.New("dialogue engine returned no reply")

// ErrUpstreamStatus is wrapped by StatusError
var ErrUpstreamStatus = errors.New("dialogue engine returned non-success status")

// StatusError carries the upstream status and a body excerpt
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dialogue engine error (%d): %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstreamStatus
}

// Gateway forwards caller utterances to the dialogue engine
type Gateway interface {
	Send(ctx context.Context, callID, text string, metadata map[string]string) ([]string, error)
}

// Client talks to the dialogue engine's REST channel
type Client struct {
	webhookURL string
	httpClient *http.Client
}

// Request is the webhook payload
type Request struct {
	Sender   string            `json:"sender"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Reply is one element of the webhook response
type Reply struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text,omitempty"`
	Image       string `json:"image,omitempty"`
}

// unknownSender is used when the provider did not give us a call id
const unknownSender = "unknown_call"

// NewClient creates a dialogue client with a bounded timeout
func NewClient(webhookURL string, timeout time.Duration) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// URL returns the configured webhook endpoint
func (c *Client) URL() string {
	return c.webhookURL
}

// Send posts an utterance and returns the ordered text fragments of the reply
func (c *Client) Send(ctx context.Context, callID, text string, metadata map[string]string) ([]string, error) {
	if callID == "" {
		callID = unknownSender
	}

	payload, err := json.Marshal(Request{
		Sender:   callID,
		Message:  text,
		Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var replies []Reply
	if err := json.NewDecoder(resp.Body).Decode(&replies); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	fragments := make([]string, 0, len(replies))
	for _, r := range replies {
		if t := strings.TrimSpace(r.Text); t != "" {
			fragments = append(fragments, t)
		}
	}
	if len(fragments) == 0 {
		return nil, ErrEmptyReply
	}

	return fragments, nil
}
