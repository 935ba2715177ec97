package workflows

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/internal/gateway"
)

// MatterInput describes a new matter.
type MatterInput struct {
	Name         string
	ClientID     int64
	PracticeArea string
}

// CreateMatter creates a matter and returns its id. The endpoint responds
// with a bare number, not an object.
func (c *Client) CreateMatter(ctx context.Context, input MatterInput) (int64, error) {
	payload := map[string]string{
		"MatterName":   input.Name,
		"ClientId":     fmt.Sprintf("%d", input.ClientID),
		"PracticeArea": input.PracticeArea,
	}
	result, err := c.gw.Post(ctx, c.session, "/api2/Matter/", payload, nil)
	if err != nil {
		return 0, err
	}
	if err := result.Err(); err != nil {
		return 0, err
	}

	id, err := decodeID(result)
	if err != nil {
		return 0, err
	}
	c.logger.Info("Created matter", zap.Int64("matter_id", id), zap.String("name", input.Name))
	return id, nil
}

// DeleteMatter removes a matter. The endpoint uses the DELETE verb but
// requires a JSON body carrying the id, and answers with the literal boolean
// true on success.
func (c *Client) DeleteMatter(ctx context.Context, matterID int64) error {
	result, err := c.gw.Delete(ctx, c.session, "/api2/DeleteMatter", &gateway.Options{
		Body: map[string]int64{"MatterId": matterID},
	})
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}

	ok, err := decodeBool(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("DELETE /api2/DeleteMatter reported failure for matter %d", matterID)
	}
	c.logger.Info("Deleted matter", zap.Int64("matter_id", matterID))
	return nil
}
