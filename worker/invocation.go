package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	EventsPath = "/worker/events"

	formContentType = "application/x-www-form-urlencoded"
)

// Invocation is a request replayed against the worker process.
type Invocation struct {
	ID      string            `json:"id"`
	Path    string            `json:"path"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// EncodePayload builds the form body interaction payloads arrive in. The
// result is what gets signed and forwarded, byte for byte.
func EncodePayload(raw string) string {
	return "payload=" + url.QueryEscape(raw)
}

// NewInvocation targets the worker events endpoint. Only the first value of
// each header is kept and Content-Length is recomputed on replay.
func NewInvocation(body string, headers http.Header) Invocation {
	flat := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 && http.CanonicalHeaderKey(k) != "Content-Length" {
			flat[k] = v[0]
		}
	}
	return Invocation{
		ID:      uuid.NewString(),
		Path:    EventsPath,
		Method:  http.MethodPost,
		Headers: flat,
		Body:    body,
	}
}

// Request builds the HTTP request for inv against baseURL. An empty baseURL
// yields a server-relative request for in-process dispatch.
func (inv Invocation) Request(ctx context.Context, baseURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, inv.Method, strings.TrimSuffix(baseURL, "/")+inv.Path, strings.NewReader(inv.Body))
	if err != nil {
		return nil, fmt.Errorf("Request: %w", err)
	}
	for k, v := range inv.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", formContentType)
	}
	return req, nil
}

// Invoker hands an invocation to the worker without waiting for it to run.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) error
}
