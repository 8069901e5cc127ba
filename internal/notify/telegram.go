// Package notify delivers terminal hunt outcomes out of band. Delivery is
// fire-and-forget: a failed notification never affects the hunt result.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iphunt/iphunt/internal/config"
	"github.com/iphunt/iphunt/internal/logging"
)

// Notifier receives terminal success/failure events.
type Notifier interface {
	Success(ctx context.Context, address, portID string)
	Failure(ctx context.Context, reason string)
}

// Nop discards all events. Used when no notifier is configured.
type Nop struct{}

func (Nop) Success(context.Context, string, string) {}
func (Nop) Failure(context.Context, string)         {}

// Telegram posts messages to the Telegram Bot API.
type Telegram struct {
	baseURL    string
	botToken   string
	chatID     string
	httpClient *http.Client
}

// NewTelegram builds a Telegram notifier.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		baseURL:  "https://api.telegram.org",
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FromConfig returns a Telegram notifier when both token and chat id are set,
// a Nop otherwise.
func FromConfig(cfg config.TelegramConfig) Notifier {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return Nop{}
	}
	return NewTelegram(cfg)
}

func (t *Telegram) Success(ctx context.Context, address, portID string) {
	t.send(ctx, fmt.Sprintf("✨ Matched address found: %s (port %s)", address, portID))
}

func (t *Telegram) Failure(ctx context.Context, reason string) {
	t.send(ctx, "❌ Hunt finished without a match: "+reason)
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// send posts one message. Every failure is logged and swallowed.
func (t *Telegram) send(ctx context.Context, text string) {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.chatID, Text: text})
	if err != nil {
		logging.Warn("telegram: marshal message", logging.Err(err))
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		logging.Warn("telegram: create request", logging.Err(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		logging.Warn("telegram: send failed", logging.Err(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Warn("telegram: unexpected status", "status", resp.StatusCode)
	}
}
