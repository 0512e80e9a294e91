package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Telegram sends operator messages through the Bot API sendMessage method.
type Telegram struct {
	baseURL string
	token   string
	chatID  string
	http    *http.Client
	limiter *rate.Limiter
}

type TelegramOption func(*Telegram)

func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) { t.http = c }
}

// WithRateLimit overrides the default of one message per second, burst 5.
func WithRateLimit(l *rate.Limiter) TelegramOption {
	return func(t *Telegram) { t.limiter = l }
}

func NewTelegram(baseURL, token, chatID string, opts ...TelegramOption) (*Telegram, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(chatID) == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	t := &Telegram{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		chatID:  chatID,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}
	payload, err := json.Marshal(telegramSendMessage{ChatID: t.chatID, Text: text, ParseMode: "Markdown"})
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed telegramResponse
	if err := json.Unmarshal(body, &parsed); err == nil && !parsed.Ok {
		return fmt.Errorf("telegram api rejected message: %s", parsed.Description)
	}
	return nil
}
