package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iphunt/iphunt/internal/config"
)

func testTelegram(t *testing.T, handler http.Handler) *Telegram {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tg := NewTelegram(config.TelegramConfig{BotToken: "bot-token", ChatID: "chat-1"})
	tg.baseURL = srv.URL
	return tg
}

func TestSuccess_PostsSendMessage(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	tg := testTelegram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))

	tg.Success(context.Background(), "95.163.248.15", "p-1")

	if gotPath != "/botbot-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.ChatID != "chat-1" {
		t.Errorf("chat id = %q", gotBody.ChatID)
	}
	if !strings.Contains(gotBody.Text, "95.163.248.15") {
		t.Errorf("message text missing address: %q", gotBody.Text)
	}
}

func TestFailure_DeliveryErrorsAreSwallowed(t *testing.T) {
	tg := testTelegram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	// Must not panic or propagate anything.
	tg.Failure(context.Background(), "retries exhausted")
}

func TestFromConfig(t *testing.T) {
	if _, ok := FromConfig(config.TelegramConfig{}).(Nop); !ok {
		t.Error("unconfigured notifier should be Nop")
	}
	if _, ok := FromConfig(config.TelegramConfig{BotToken: "t"}).(Nop); !ok {
		t.Error("partial configuration should still be Nop")
	}
	if _, ok := FromConfig(config.TelegramConfig{BotToken: "t", ChatID: "c"}).(*Telegram); !ok {
		t.Error("full configuration should build a Telegram notifier")
	}
}
