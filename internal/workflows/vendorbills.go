package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

// VendorBillDetail is one line item on a vendor bill.
type VendorBillDetail struct {
	Description string `json:"Description"`
	Amount      string `json:"Amount"`
	ExpenseCode string `json:"ExpenseCode"`
}

// VendorBillInput describes a new vendor bill.
type VendorBillInput struct {
	BillNo   string
	VendorID int64
	BillDate string // MM/DD/YYYY
	Details  []VendorBillDetail
}

type vendorBillResponse struct {
	ID int64 `json:"vebi_id"`
}

// ValidateBillNumber checks whether a proposed bill number is free for the
// vendor. The server answers with a bare boolean where false means the number
// is AVAILABLE and true means it is already taken; this wrapper returns the
// un-inverted availability so callers never have to remember the convention.
func (c *Client) ValidateBillNumber(ctx context.Context, billNo string, vendorID int64) (bool, error) {
	path := fmt.Sprintf("/api2/VendorBill/ValidateVendorNo?BillNo=%s&BillVendorId=%d",
		url.QueryEscape(billNo), vendorID)
	result, err := c.gw.Get(ctx, c.session, path, nil)
	if err != nil {
		return false, err
	}
	if err := result.Err(); err != nil {
		return false, err
	}

	taken, err := decodeBool(result)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

// CreateVendorBill creates a vendor bill. The line-item details travel as a
// JSON-stringified array inside an otherwise form-encoded payload.
func (c *Client) CreateVendorBill(ctx context.Context, input VendorBillInput) (int64, error) {
	details, err := json.Marshal(input.Details)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize vendor bill details: %w", err)
	}

	payload := map[string]string{
		"BillNo":       input.BillNo,
		"BillVendorId": fmt.Sprintf("%d", input.VendorID),
		"BillDate":     input.BillDate,
		"Details":      string(details),
	}
	result, err := c.gw.Post(ctx, c.session, "/api2/vendorbill/", payload, nil)
	if err != nil {
		return 0, err
	}
	if err := result.Err(); err != nil {
		return 0, err
	}

	var bill vendorBillResponse
	if err := decode(result, &bill); err != nil {
		return 0, err
	}
	if bill.ID <= 0 {
		return 0, fmt.Errorf("vendor bill response missing vebi_id: %s", result.Raw)
	}
	c.logger.Info("Created vendor bill", zap.Int64("vendor_bill_id", bill.ID), zap.String("bill_no", input.BillNo))
	return bill.ID, nil
}

// DeleteVendorBill removes a vendor bill by id.
func (c *Client) DeleteVendorBill(ctx context.Context, billID int64) error {
	result, err := c.gw.Delete(ctx, c.session, fmt.Sprintf("/api2/VendorBill/%d", billID), nil)
	if err != nil {
		return err
	}
	if err := result.Err(); err != nil {
		return err
	}
	c.logger.Info("Deleted vendor bill", zap.Int64("vendor_bill_id", billID))
	return nil
}
