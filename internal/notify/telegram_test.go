package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flow-alerts/internal/model"
)

func telegramNote() Notification {
	return ViewOf(model.Alert{
		ID:         "17 Apr-call-SPY",
		ExpiryDate: "17 Apr",
		Side:       model.SideCall,
		Symbol:     "SPY",
		TotalValue: decimal.NewFromInt(900000),
		Entries: []model.Record{
			{Strike: decimal.NewFromInt(440)},
			{Strike: decimal.NewFromInt(450)},
			{Strike: decimal.NewFromInt(460)},
		},
		Timestamp: time.Date(2024, time.April, 10, 15, 0, 0, 0, time.UTC),
	}, false)
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("路径应包含 sendMessage, 实际 %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), telegramNote()); err != nil {
		t.Fatalf("Telegram Notify 应成功: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id 不正确: %#v", received)
	}
	if !strings.Contains(received["text"], "SPY CALL") {
		t.Fatalf("text 应包含 symbol 与方向: %q", received["text"])
	}
	if !strings.Contains(received["text"], "900,000") {
		t.Fatalf("text 应包含格式化后的金额: %q", received["text"])
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), telegramNote()); err == nil {
		t.Fatal("ok=false 应报错")
	}
}
