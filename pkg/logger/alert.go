package logger

import (
	"ashare-backtest/pkg/common"
	"ashare-backtest/pkg/httpclient"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type AlertSender interface {
	SendAlert(ctx context.Context, text string) error
}

type AlertCore struct {
	core     zapcore.Core
	sender   AlertSender
	minLevel zapcore.Level
}

func NewAlertCore(core zapcore.Core, sender AlertSender, minLevel zapcore.Level) *AlertCore {
	return &AlertCore{core: core, sender: sender, minLevel: minLevel}
}

func (a *AlertCore) Enabled(lvl zapcore.Level) bool {
	return a.core.Enabled(lvl)
}

func (a *AlertCore) With(fields []zapcore.Field) zapcore.Core {
	return &AlertCore{
		core:     a.core.With(fields),
		sender:   a.sender,
		minLevel: a.minLevel,
	}
}

func (a *AlertCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if a.Enabled(entry.Level) {
		return checkedEntry.AddCore(entry, a)
	}
	return checkedEntry
}

func (a *AlertCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if entry.Level >= a.minLevel && shouldAlert(fields) {
		go a.send(entry, fields) // async, never block the caller
	}
	return a.core.Write(entry, fields)
}

func (a *AlertCore) Sync() error {
	return a.core.Sync()
}

func shouldAlert(fields []zapcore.Field) bool {
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT && f.Type == zapcore.BoolType && f.Integer == 1 {
			return true
		}
	}
	return false
}

func (a *AlertCore) send(entry zapcore.Entry, fields []zapcore.Field) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.sender.SendAlert(ctx, FormatAlert(entry, fields))
}

// FormatAlert renders a log entry as a plain text chat message.
func FormatAlert(entry zapcore.Entry, fields []zapcore.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		if f.Key == common.KEY_LOG_HOOK_SEND_ALERT {
			continue
		}
		f.AddTo(enc)
	}

	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "🚨 %s Alert\n\n", entry.Level.CapitalString())
	fmt.Fprintf(&b, "Message: %s\n", entry.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, "• %s: %v\n", k, enc.Fields[k])
	}
	fmt.Fprintf(&b, "Time: %s", entry.Time.Format("2006-01-02 15:04:05"))
	return b.String()
}

// WebhookAlertSender posts alerts as text messages to a Feishu group webhook.
type WebhookAlertSender struct {
	client     httpclient.HTTPClient
	webhookURL string
}

func NewWebhookAlertSender(webhookURL string, timeout time.Duration) *WebhookAlertSender {
	return &WebhookAlertSender{
		client:     httpclient.New("", timeout, ""),
		webhookURL: webhookURL,
	}
}

func (w *WebhookAlertSender) SendAlert(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"msg_type": "text",
		"content":  map[string]string{"text": text},
	}
	resp, err := w.client.Post(ctx, w.webhookURL, payload, nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alert webhook returned status: %d", resp.StatusCode)
	}
	return nil
}
