package notifier

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

const CallbackSecretHeader = "X-Callback-Secret"

// Webhook posts payment events to the merchant's notify url.
type Webhook struct {
	secret string
	http   *http.Client
}

func NewWebhook(secret string, client *http.Client) *Webhook {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Webhook{secret: secret, http: client}
}

func (w *Webhook) Send(ctx context.Context, url string, event PaymentEvent) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("webhook url is empty")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if w.secret != "" {
		req.Header.Set(CallbackSecretHeader, w.secret)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("webhook %s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
