package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// compile-time interface check
var _ Receiver = (*Webhook)(nil)

// Webhook delivers notifications as a JSON POST and reads the verdict from
// the response body.
type Webhook struct {
	URL    string
	Header http.Header
	Client *http.Client
}

// NewWebhook returns a webhook receiver posting to url.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

// OnTransfer implements Receiver. Any non-2xx response is an error; an empty
// 2xx body accepts every token.
func (w *Webhook) OnTransfer(ctx context.Context, n *Notification) (*Verdict, error) {
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("receiver: encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("receiver: build request: %w", err)
	}
	for k, vs := range w.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("receiver: post %s: %w", w.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("receiver: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("receiver: %s returned %d", w.URL, resp.StatusCode)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return Accept(), nil
	}

	v := new(Verdict)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("receiver: decode verdict: %w", err)
	}
	return v, nil
}
