package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/caretqa/internal/workflows"
)

// BuiltIn returns the stock end-to-end scenarios.
func BuiltIn() []Scenario {
	return []Scenario{
		{Name: "matter-lifecycle", Run: matterLifecycle},
		{Name: "vendor-bill-number-validation", Run: vendorBillValidation},
		{Name: "time-entry-lifecycle", Run: timeEntryLifecycle},
		{Name: "expired-session-reauth", Run: expiredSessionReauth},
	}
}

// matterLifecycle creates a matter via the form-encoded endpoint, verifies
// the bare-integer response shape, and removes it through the JSON-body
// DELETE endpoint.
func matterLifecycle(ctx context.Context, env *Env) error {
	contact, err := env.Workflows.CreatePerson(ctx, personFixture())
	if err != nil {
		return err
	}

	matterID, err := env.Workflows.CreateMatter(ctx, matterFixture(contact.ID))
	if err != nil {
		return err
	}
	if matterID <= 0 {
		return fmt.Errorf("matter creation returned non-positive id %d", matterID)
	}

	return env.Workflows.DeleteMatter(ctx, matterID)
}

// timeEntryLifecycle books a time entry on a fresh matter and deletes both.
func timeEntryLifecycle(ctx context.Context, env *Env) error {
	contact, err := env.Workflows.CreatePerson(ctx, personFixture())
	if err != nil {
		return err
	}
	matterID, err := env.Workflows.CreateMatter(ctx, matterFixture(contact.ID))
	if err != nil {
		return err
	}
	defer func() {
		if delErr := env.Workflows.DeleteMatter(ctx, matterID); delErr != nil {
			env.Logger.Warn("Failed to clean up scenario matter", zap.Int64("matter_id", matterID), zap.Error(delErr))
		}
	}()

	tienID, err := env.Workflows.CreateTimeEntry(ctx, timeEntryFixture(matterID))
	if err != nil {
		return err
	}
	return env.Workflows.DeleteTimeEntry(ctx, tienID)
}

// vendorBillValidation exercises the inverted-boolean bill-number check: an
// unused number must validate as available, and the same number must stop
// validating once a bill claims it.
func vendorBillValidation(ctx context.Context, env *Env) error {
	const vendorID = 1
	billNo := "QA-" + uuid.New().String()[:8]

	available, err := env.Workflows.ValidateBillNumber(ctx, billNo, vendorID)
	if err != nil {
		return err
	}
	if !available {
		return fmt.Errorf("fresh bill number %s reported as taken", billNo)
	}

	billID, err := env.Workflows.CreateVendorBill(ctx, vendorBillFixture(billNo, vendorID))
	if err != nil {
		return err
	}
	defer func() {
		if delErr := env.Workflows.DeleteVendorBill(ctx, billID); delErr != nil {
			env.Logger.Warn("Failed to clean up scenario vendor bill", zap.Int64("vendor_bill_id", billID), zap.Error(delErr))
		}
	}()

	available, err = env.Workflows.ValidateBillNumber(ctx, billNo, vendorID)
	if err != nil {
		return err
	}
	if available {
		return fmt.Errorf("claimed bill number %s still reported as available", billNo)
	}
	return nil
}

// expiredSessionReauth plants a stale session in the cache and verifies that
// resolving the identity again performs a real re-authentication instead of
// returning the stale entry.
func expiredSessionReauth(ctx context.Context, env *Env) error {
	stale := *env.Session
	stale.CreatedAt = time.Now().Add(-50 * time.Minute)
	if err := env.Cache.Put(&stale); err != nil {
		return err
	}

	refreshed, err := env.Cache.GetOrCreate(ctx, env.Creds)
	if err != nil {
		return fmt.Errorf("re-authentication after expiry failed: %w", err)
	}
	if !refreshed.CreatedAt.After(stale.CreatedAt) {
		return fmt.Errorf("cache returned the stale session (created %s)", refreshed.CreatedAt)
	}
	return nil
}

func personFixture() workflows.PersonInput {
	suffix := uuid.New().String()[:8]
	return workflows.PersonInput{
		FirstName: "QA",
		LastName:  "Contact-" + suffix,
		Email:     "qa+" + suffix + "@example.test",
	}
}

func matterFixture(clientID int64) workflows.MatterInput {
	return workflows.MatterInput{
		Name:         "QA Matter " + uuid.New().String()[:8],
		ClientID:     clientID,
		PracticeArea: "General",
	}
}

func timeEntryFixture(matterID int64) workflows.TimeEntryInput {
	return workflows.TimeEntryInput{
		MatterID:    matterID,
		Description: "Automated billing check",
		Hours:       "1.5",
		Date:        time.Now().Format("01/02/2006"),
		Rate:        "250",
	}
}

func vendorBillFixture(billNo string, vendorID int64) workflows.VendorBillInput {
	return workflows.VendorBillInput{
		BillNo:   billNo,
		VendorID: vendorID,
		BillDate: time.Now().Format("01/02/2006"),
		Details: []workflows.VendorBillDetail{
			{Description: "Filing fee", Amount: "125.00", ExpenseCode: "FEE"},
		},
	}
}
