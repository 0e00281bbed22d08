package resend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"mailtrack/internal/domain"
)

// ErrAPIKeyMissing is returned before any network call when the client was
// constructed without a credential. There is no safe default key.
var ErrAPIKeyMissing = errors.New("resend API key is not configured")

// APIError is a non-2xx answer from the provider API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resend API error: %d %s - %s", e.StatusCode, e.Status, e.Body)
}

// Client fetches received messages from the Resend HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetReceivedEmail fetches the full inbound message for a webhook-delivered
// identifier via GET <base>/emails/receiving/<email_id> with bearer auth.
func (c *Client) GetReceivedEmail(ctx context.Context, emailID string) (*domain.InboundMessage, error) {
	if c.apiKey == "" {
		return nil, ErrAPIKeyMissing
	}

	url := fmt.Sprintf("%s/emails/receiving/%s", c.baseURL, emailID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	var email domain.InboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&email); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	return &email, nil
}
