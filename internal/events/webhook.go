package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

type Webhook struct {
	URL     string
	Secret  string
	Timeout time.Duration
	// Events limits delivery to these types; empty means all.
	Events []string
}

// Webhooks posts each fact to every configured URL.
type Webhooks struct {
	Hooks  []Webhook
	Client *http.Client
}

func (w Webhooks) Publish(ctx context.Context, evt TurnCompleted) error {
	data, err := Encode(evt)
	if err != nil {
		return err
	}
	var failed []string
	for _, hook := range w.Hooks {
		if strings.TrimSpace(hook.URL) == "" || !newEventFilter(hook.Events).match(evt.Type()) {
			continue
		}
		if err := w.post(ctx, hook, evt, data); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", hook.URL, err))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("webhook delivery failed: %s", strings.Join(failed, "; "))
	}
	return nil
}

func (w Webhooks) post(ctx context.Context, hook Webhook, evt TurnCompleted, data []byte) error {
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Colonies-Event", evt.Type())
	req.Header.Set("X-Colonies-Game", evt.GameID)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-Colonies-Secret", hook.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		if key := strings.TrimSpace(t); key != "" {
			set[key] = struct{}{}
		}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(t string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[t]
	return ok
}
