// Package mailbox reads a test inbox through the Nylas API to verify workflow
// side effects delivered by email: invite links, verification codes, invoice
// notifications.
package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/internal/config"
)

// Message is one inbox message as returned by the messages endpoints.
type Message struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	Date    int64  `json:"date"`
	From    []struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"from"`
}

type listResponse struct {
	Data []Message `json:"data"`
}

type getResponse struct {
	Data Message `json:"data"`
}

// Client is a thin Nylas v3 client scoped to one grant.
type Client struct {
	httpClient *http.Client
	cfg        config.MailboxConfig
	logger     *zap.Logger
}

// NewClient creates a mailbox client. A nil httpClient gets a default with a
// 30s timeout.
func NewClient(httpClient *http.Client, cfg config.MailboxConfig, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		logger:     logger.Named("mailbox"),
	}
}

// ListMessages returns up to limit recent messages, newest first, optionally
// filtered by subject.
func (c *Client) ListMessages(ctx context.Context, subject string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{}
	query.Set("limit", fmt.Sprintf("%d", limit))
	if subject != "" {
		query.Set("subject", subject)
	}
	path := fmt.Sprintf("/v3/grants/%s/messages?%s", c.cfg.GrantID, query.Encode())

	var out listResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetMessage fetches one message by id, including its full body.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	path := fmt.Sprintf("/v3/grants/%s/messages/%s", c.cfg.GrantID, messageID)

	var out getResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// WaitForMessage polls the inbox until a message matching the subject filter
// arrives or the context expires.
func (c *Client) WaitForMessage(ctx context.Context, subject string) (*Message, error) {
	interval := c.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		messages, err := c.ListMessages(ctx, subject, 1)
		if err != nil {
			return nil, err
		}
		if len(messages) > 0 {
			c.logger.Info("Matching message arrived",
				zap.String("subject", messages[0].Subject), zap.String("message_id", messages[0].ID))
			return &messages[0], nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("no message matching subject %q before deadline: %w", subject, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create mailbox request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailbox request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read mailbox response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mailbox API returned %s: %s", resp.Status, string(body))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse mailbox response: %w", err)
	}
	return nil
}
