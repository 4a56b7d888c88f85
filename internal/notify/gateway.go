package notify

import "context"

// Result is what the SMS provider reported for one message.
type Result struct {
	Success        bool   `json:"success"`
	TextID         string `json:"textId,omitempty"`
	QuotaRemaining int    `json:"quotaRemaining"`
	Error          string `json:"error,omitempty"`
}

// Gateway delivers a text message. Implementations make a single attempt.
type Gateway interface {
	Send(ctx context.Context, phone, message string) (Result, error)
}
