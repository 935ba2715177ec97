package workflows

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TimeEntryInput describes a billable time entry on a matter.
type TimeEntryInput struct {
	MatterID    int64
	Description string
	Hours       string // decimal hours as the form expects, e.g. "1.5"
	Date        string // MM/DD/YYYY
	Rate        string
}

type timeEntryResponse struct {
	TienID int64 `json:"tien_id"`
}

// CreateTimeEntry records a time entry and returns its tien_id.
func (c *Client) CreateTimeEntry(ctx context.Context, input TimeEntryInput) (int64, error) {
	payload := map[string]string{
		"MatterId":    fmt.Sprintf("%d", input.MatterID),
		"Description": input.Description,
		"Hours":       input.Hours,
		"Date":        input.Date,
		"Rate":        input.Rate,
		"IsBillable":  "true",
	}
	result, err := c.gw.Post(ctx, c.session, "/api2/time/", payload, nil)
	if err != nil {
		return 0, err
	}
	if err := result.Err(); err != nil {
		return 0, err
	}

	var entry timeEntryResponse
	if err := decode(result, &entry); err != nil {
		return 0, err
	}
	if entry.TienID <= 0 {
		return 0, fmt.Errorf("time entry response missing tien_id: %s", result.Raw)
	}
	c.logger.Info("Created time entry", zap.Int64("tien_id", entry.TienID), zap.Int64("matter_id", input.MatterID))
	return entry.TienID, nil
}

// DeleteTimeEntry removes a time entry by id. The id travels in the path; no
// body.
func (c *Client) DeleteTimeEntry(ctx context.Context, tienID int64) error {
	result, err := c.gw.Delete(ctx, c.session, fmt.Sprintf("/api2/Time/%d", tienID), nil)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}
	c.logger.Info("Deleted time entry", zap.Int64("tien_id", tienID))
	return nil
}
