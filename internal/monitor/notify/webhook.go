package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	monitor "reachstacker-monitor/internal/monitor/domain"
)

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookSink posts rendered notifications to a chat-style webhook.
type WebhookSink struct {
	url      string
	client   *http.Client
	template *Template
	logger   *log.Logger
}

// NewWebhookSink constructs a webhook sink. A nil template uses DefaultTemplate.
func NewWebhookSink(url string, tpl *Template, logger *log.Logger) (*WebhookSink, error) {
	if url == "" {
		return nil, errors.New("webhook sink: empty url")
	}
	if tpl == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		tpl = defaultTemplate
	}
	return &WebhookSink{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		template: tpl,
		logger:   logger,
	}, nil
}

// Notify implements Sink. Delivery failures are logged and dropped.
func (w *WebhookSink) Notify(ctx context.Context, notification monitor.Notification) {
	if w == nil {
		return
	}
	if err := w.Send(ctx, notification); err != nil && w.logger != nil {
		w.logger.Printf("notify: webhook failed id=%s err=%v", notification.ID, err)
	}
}

// Send renders and posts one notification.
func (w *WebhookSink) Send(ctx context.Context, notification monitor.Notification) error {
	content, err := w.template.Render(buildTemplateData(notification))
	if err != nil {
		return err
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook sink: http %d", resp.StatusCode)
	}
	return nil
}
