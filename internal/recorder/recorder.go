// Package recorder captures every HTTP transaction made through the gateway
// as a transcript, for scenario reports and post-mortem debugging.
package recorder

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
)

// maxCapturedBody bounds how much of a body the transcript retains.
const maxCapturedBody = 64 * 1024

// Recorder is RoundTripper middleware. Wrap the gateway transport with one
// Recorder per scenario to get an isolated transcript.
type Recorder struct {
	next          http.RoundTripper
	logger        *zap.Logger
	captureBodies bool

	mu      sync.Mutex
	entries []schemas.TranscriptEntry
}

var _ http.RoundTripper = (*Recorder)(nil)

// New creates a Recorder wrapping the given transport.
func New(next http.RoundTripper, logger *zap.Logger, captureBodies bool) *Recorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Recorder{
		next:          next,
		logger:        logger.Named("recorder"),
		captureBodies: captureBodies,
	}
}

// RoundTrip executes the request and records the transaction. Bodies are
// buffered and restored so downstream consumers see them untouched.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	var requestBody []byte
	if r.captureBodies && req.Body != nil {
		var err error
		requestBody, err = io.ReadAll(req.Body)
		if err != nil {
			r.logger.Warn("Failed to buffer request body for transcript", zap.Error(err))
		}
		req.Body = io.NopCloser(bytes.NewReader(requestBody))
	}

	resp, err := r.next.RoundTrip(req)
	entry := schemas.TranscriptEntry{
		StartedAt:   start,
		DurationMs:  float64(time.Since(start).Microseconds()) / 1000,
		Method:      req.Method,
		URL:         req.URL.String(),
		RequestBody: clip(string(requestBody)),
	}

	if err != nil {
		entry.Error = err.Error()
		r.append(entry)
		return resp, err
	}

	entry.Status = resp.StatusCode
	if r.captureBodies && resp.Body != nil && isTextMime(resp.Header.Get("Content-Type")) {
		responseBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			r.logger.Warn("Failed to buffer response body for transcript", zap.Error(readErr))
		}
		resp.Body = io.NopCloser(bytes.NewReader(responseBody))
		entry.ResponseBody = clip(string(responseBody))
	}

	r.append(entry)
	return resp, nil
}

// Transcript returns a copy of everything recorded so far.
func (r *Recorder) Transcript() []schemas.TranscriptEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schemas.TranscriptEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Reset discards the transcript.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

func (r *Recorder) append(entry schemas.TranscriptEntry) {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

func clip(s string) string {
	if len(s) > maxCapturedBody {
		return s[:maxCapturedBody] + "...[truncated]"
	}
	return s
}

func isTextMime(mimeType string) bool {
	lower := strings.ToLower(mimeType)
	return strings.HasPrefix(lower, "text/") ||
		strings.Contains(lower, "json") ||
		strings.Contains(lower, "javascript") ||
		strings.Contains(lower, "xml")
}
