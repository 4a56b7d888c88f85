package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const textbeltURL = "https://textbelt.com/text"

// ErrNotDelivered is returned when the provider accepted the request but
// refused the message.
var ErrNotDelivered = errors.New("message not delivered")

// Textbelt sends SMS through textbelt.com.
type Textbelt struct {
	client   *http.Client
	endpoint string
	apiKey   string
	testMode bool
}

// NewTextbelt creates a Textbelt gateway. In test mode Textbelt validates the
// request without delivering it.
func NewTextbelt(client *http.Client, apiKey string, testMode bool) *Textbelt {
	return &Textbelt{
		client:   client,
		endpoint: textbeltURL,
		apiKey:   apiKey,
		testMode: testMode,
	}
}

func (t *Textbelt) key() string {
	if t.testMode {
		return t.apiKey + "_test"
	}
	return t.apiKey
}

// Send posts one message. It never retries.
func (t *Textbelt) Send(ctx context.Context, phone, message string) (Result, error) {
	form := url.Values{}
	form.Set("phone", phone)
	form.Set("message", message)
	form.Set("key", t.key())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("textbelt: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("textbelt: request failed: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Success        bool        `json:"success"`
		TextID         json.Number `json:"textId"`
		QuotaRemaining int         `json:"quotaRemaining"`
		Error          string      `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("textbelt: decode response (status %d): %w", resp.StatusCode, err)
	}

	res := Result{
		Success:        payload.Success,
		TextID:         payload.TextID.String(),
		QuotaRemaining: payload.QuotaRemaining,
		Error:          payload.Error,
	}
	if !res.Success {
		return res, fmt.Errorf("textbelt: %w: %s", ErrNotDelivered, res.Error)
	}
	return res, nil
}
