// Package gateway issues authenticated HTTP calls against the application's
// API surface. It injects the standard header set derived from a Session and
// normalizes every response body into a single parsed value.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
)

// Content type selectors for request payload serialization.
const (
	ContentTypeForm = "form"
	ContentTypeJSON = "json"
)

// DefaultTimeout bounds a single API call unless overridden per request.
const DefaultTimeout = 30 * time.Second

const acceptHeader = "application/json, text/plain, */*"

// Options is the per-request options bag.
type Options struct {
	// ContentType selects payload serialization: ContentTypeForm (default for
	// POST/PUT) or ContentTypeJSON.
	ContentType string

	// Headers are merged over the standard header set and may override it.
	Headers map[string]string

	// Timeout overrides DefaultTimeout for this call.
	Timeout time.Duration

	// Body carries a JSON request body for DELETE. The target API has at
	// least one DELETE endpoint that demands one.
	Body any
}

// Gateway performs API calls using a shared transport. It is stateless per
// call; the Session argument supplies all authentication material.
type Gateway struct {
	client *http.Client
	logger *zap.Logger
}

// New creates a Gateway. The client's own timeout should be zero; each call
// manages its deadline through its context.
func New(client *http.Client, logger *zap.Logger) *Gateway {
	if client == nil {
		client = http.DefaultClient
	}
	return &Gateway{client: client, logger: logger.Named("gateway")}
}

// Get issues a GET request.
func (g *Gateway) Get(ctx context.Context, session *schemas.Session, path string, opts *Options) (*Result, error) {
	return g.do(ctx, http.MethodGet, session, path, nil, opts)
}

// Post issues a POST request. The payload is form-encoded unless the options
// select JSON.
func (g *Gateway) Post(ctx context.Context, session *schemas.Session, path string, payload any, opts *Options) (*Result, error) {
	return g.do(ctx, http.MethodPost, session, path, payload, opts)
}

// Put issues a PUT request with the same payload handling as Post.
func (g *Gateway) Put(ctx context.Context, session *schemas.Session, path string, payload any, opts *Options) (*Result, error) {
	return g.do(ctx, http.MethodPut, session, path, payload, opts)
}

// Delete issues a DELETE request. A JSON body is attached when opts.Body is
// set.
func (g *Gateway) Delete(ctx context.Context, session *schemas.Session, path string, opts *Options) (*Result, error) {
	var payload any
	if opts != nil && opts.Body != nil {
		payload = opts.Body
		if opts.ContentType == "" {
			o := *opts
			o.ContentType = ContentTypeJSON
			opts = &o
		}
	}
	return g.do(ctx, http.MethodDelete, session, path, payload, opts)
}

func (g *Gateway) do(ctx context.Context, method string, session *schemas.Session, path string, payload any, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	targetURL := ResolveURL(session.BaseURL, path)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, contentType, err := encodePayload(method, payload, opts.ContentType)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload for %s: %w", method, targetURL, err)
	}

	req, err := http.NewRequestWithContext(callCtx, method, targetURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request for %s: %w", method, targetURL, err)
	}
	g.applyHeaders(req, session, contentType, opts.Headers)

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		// Transport failures (DNS, refused, timeout) propagate unmodified.
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s %s: %w", method, targetURL, err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Header,
		Method:     method,
		URL:        targetURL,
		Raw:        string(raw),
		Body:       g.parseBody(raw, resp.Header.Get("Content-Type"), targetURL),
	}

	g.logger.Debug("API call complete",
		zap.String("method", method),
		zap.String("url", targetURL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

// parseBody applies the uniform body-parsing policy: a JSON-declared response
// is parsed with a raw-text fallback; anything else still gets a best-effort
// JSON parse before being returned as text.
func (g *Gateway) parseBody(raw []byte, contentType, targetURL string) any {
	if len(raw) == 0 {
		return ""
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		if strings.Contains(contentType, "application/json") {
			g.logger.Warn("Response declared JSON but did not parse, returning raw text",
				zap.String("url", targetURL), zap.Error(err))
		}
		return string(raw)
	}
	return parsed
}

func (g *Gateway) applyHeaders(req *http.Request, session *schemas.Session, contentType string, extra map[string]string) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-Service-Type", "api")
	if session.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+session.BearerToken)
	}
	if session.CookieHeader != "" {
		req.Header.Set("Cookie", session.CookieHeader)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for name, value := range extra {
		req.Header.Set(name, value)
	}
}

// encodePayload serializes the payload per the content-type selector and
// returns the body reader plus the Content-Type header value.
func encodePayload(method string, payload any, selector string) (io.Reader, string, error) {
	if payload == nil {
		return nil, "", nil
	}

	if selector == "" {
		switch method {
		case http.MethodPost, http.MethodPut:
			selector = ContentTypeForm
		default:
			selector = ContentTypeJSON
		}
	}

	switch selector {
	case ContentTypeForm:
		values, err := toFormValues(payload)
		if err != nil {
			return nil, "", err
		}
		return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", nil
	case ContentTypeJSON:
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "", fmt.Errorf("unsupported content type selector %q", selector)
	}
}

func toFormValues(payload any) (url.Values, error) {
	switch p := payload.(type) {
	case url.Values:
		return p, nil
	case map[string]string:
		values := url.Values{}
		for k, v := range p {
			values.Set(k, v)
		}
		return values, nil
	default:
		return nil, fmt.Errorf("form payload must be url.Values or map[string]string, got %T", payload)
	}
}

// ResolveURL joins a path to the base URL with exactly one separating slash.
// Paths that already carry a scheme are used verbatim.
func ResolveURL(baseURL, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
