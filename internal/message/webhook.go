// internal/message/webhook.go
//
// Outbound JSON webhooks.
//
// Context
//   CRMs and chat integrations receive leads as a JSON POST.  Any transport
//   error or non-2xx status, rate limiting (429) included, is returned to the
//   caller.  Retries belong to the user, not to this client.
//
//   Hook URLs often embed credentials, so errors name only scheme and host.
//
//------------------------------------------------------------------------------

package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Webhook describes one endpoint.
type Webhook struct {
	URL     string
	Method  string            // defaults to POST
	Headers map[string]string // extra request headers
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes, for logs
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook: unexpected status %d", e.StatusCode)
}

// WebhookClient posts payloads.  The zero value uses a client with a 10 s
// timeout.
type WebhookClient struct {
	HTTP *http.Client
}

var defaultHTTP = &http.Client{Timeout: 10 * time.Second}

// Post marshals payload as JSON and sends it to hook.
func (c *WebhookClient) Post(ctx context.Context, hook Webhook, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook marshal: %w", err)
	}

	method := hook.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, hook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request %s: %w", redactURL(hook.URL), stripURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hook.Headers {
		req.Header.Set(k, v)
	}

	hc := c.HTTP
	if hc == nil {
		hc = defaultHTTP
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", redactURL(hook.URL), stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// redactURL reduces raw to scheme://host.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host
}

// stripURL drops the *url.Error wrapper, whose message repeats the full URL.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}
