// Package workflows wraps the application's /api2 endpoints in typed clients.
// Each wrapper reproduces the exact wire shape the server expects, including
// its quirks (string-typed booleans, bare-scalar response bodies, a DELETE
// endpoint that requires a JSON body).
package workflows

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/gateway"
)

// Client bundles one authenticated session with the gateway for a group of
// workflow calls.
type Client struct {
	gw      *gateway.Gateway
	session *schemas.Session
	logger  *zap.Logger
}

// NewClient creates a workflow client bound to a session.
func NewClient(gw *gateway.Gateway, session *schemas.Session, logger *zap.Logger) *Client {
	return &Client{
		gw:      gw,
		session: session,
		logger:  logger.Named("workflows"),
	}
}

// decode unmarshals a successful result's raw body into v.
func decode(result *gateway.Result, v any) error {
	if err := json.Unmarshal([]byte(result.Raw), v); err != nil {
		return fmt.Errorf("unexpected response shape from %s %s: %w", result.Method, result.URL, err)
	}
	return nil
}

// decodeID extracts a bare positive integer response body, the shape several
// creation endpoints return instead of an object.
func decodeID(result *gateway.Result) (int64, error) {
	var id int64
	if err := decode(result, &id); err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("%s %s returned non-positive id %d", result.Method, result.URL, id)
	}
	return id, nil
}

// decodeBool extracts a bare boolean response body.
func decodeBool(result *gateway.Result) (bool, error) {
	var b bool
	if err := decode(result, &b); err != nil {
		return false, err
	}
	return b, nil
}
