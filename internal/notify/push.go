package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tablr/orderwatch/internal/domain"
)

// PushSender delivers device pushes through an Expo-compatible push gateway.
// One gateway request carries the push to every registered recipient token.
type PushSender struct {
	gatewayURL  string
	accessToken string
	recipients  []string
	client      *http.Client
}

// NewPushSender creates a PushSender for the given gateway URL and recipient
// tokens. It uses a default HTTP client with a 10-second timeout.
func NewPushSender(gatewayURL, accessToken string, recipients []string) *PushSender {
	return &PushSender{
		gatewayURL:  gatewayURL,
		accessToken: accessToken,
		recipients:  recipients,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// pushMessage is the gateway wire format for one push.
type pushMessage struct {
	To    []string        `json:"to"`
	Title string          `json:"title"`
	Body  string          `json:"body"`
	Data  domain.PushData `json:"data"`
	Sound string          `json:"sound"`
}

// Send posts the push to the gateway addressed to all recipients. The data
// payload rides along so the client app can deep-link on tap.
func (p *PushSender) Send(ctx context.Context, n domain.PushNotification) error {
	if len(p.recipients) == 0 {
		return nil
	}

	body, err := json.Marshal(pushMessage{
		To:    p.recipients,
		Title: n.Title,
		Body:  n.Body,
		Data:  n.Data,
		Sound: "default",
	})
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.gatewayURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("push: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if p.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.accessToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("push: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("push: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (p *PushSender) Name() string {
	return "push"
}
