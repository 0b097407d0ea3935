package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookPurger forwards invalidations to the hosting environment's purge
// endpoint as POST {"tags": [...], "paths": [...]}.
type WebhookPurger struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewWebhookPurger(url, token string, timeout time.Duration) *WebhookPurger {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookPurger{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	}
}

type purgeRequest struct {
	Tags  []string `json:"tags,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

func (w *WebhookPurger) InvalidateTag(ctx context.Context, tag string) error {
	return w.send(ctx, purgeRequest{Tags: []string{tag}})
}

func (w *WebhookPurger) InvalidatePath(ctx context.Context, path string) error {
	return w.send(ctx, purgeRequest{Paths: []string{path}})
}

func (w *WebhookPurger) send(ctx context.Context, body purgeRequest) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode purge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("build purge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if w.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.Token)
	}

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("purge request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("purge request: unexpected status %s", resp.Status)
	}
	return nil
}
