package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-reservation-engine/internal/models"
	"stock-reservation-engine/internal/store"
)

// recordingReporter captures consistency violation signals for assertions.
type recordingReporter struct {
	mu         sync.Mutex
	violations []int
}

func (r *recordingReporter) RecordConsistencyViolation(ctx context.Context, itemID string, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, available)
}

func newTestCalculator(t *testing.T, reporter ConsistencyReporter) (*AvailabilityCalculator, *store.FileLedger, *ReservationIndex) {
	t.Helper()
	ledger, err := store.NewFileLedger("", false)
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	orders, err := store.NewMemoryOrderStore("", false)
	require.NoError(t, err)

	reservations := NewReservationIndex(orders)
	return NewAvailabilityCalculator(ledger, reservations, reporter), ledger, reservations
}

// TestAvailabilityCalculator_Report tests the available-to-sell formula
func TestAvailabilityCalculator_Report(t *testing.T) {
	// Arrange - two ledger events totaling 15, 5 confirmed, 4+3 pending
	calc, ledger, reservations := newTestCalculator(t, nil)
	ctx := context.Background()
	_, err := ledger.Append(ctx, "widget", 10)
	require.NoError(t, err)
	_, err = ledger.Append(ctx, "widget", 5)
	require.NoError(t, err)

	reservations.RegisterItem(models.OrderItem{ID: "li-a", ItemID: "widget", Quantity: 5, Status: models.StatusConfirmed})
	reservations.RegisterItem(models.OrderItem{ID: "li-b", ItemID: "widget", Quantity: 4, Status: models.StatusPending})
	reservations.RegisterItem(models.OrderItem{ID: "li-c", ItemID: "widget", Quantity: 3, Status: models.StatusPending})

	// Act
	report, err := calc.Report(ctx, "widget")

	// Assert - available = 15 - 5 - 7 = 3
	require.NoError(t, err)
	assert.Equal(t, 15, report.TotalStock)
	assert.Equal(t, 5, report.ConfirmedQty)
	assert.Equal(t, 7, report.PendingQty)
	assert.Equal(t, 3, report.Available)
	assert.Equal(t, 3, report.AvailableDisplay)
}

// TestAvailabilityCalculator_ReportUnknownItem tests the all-zero report
func TestAvailabilityCalculator_ReportUnknownItem(t *testing.T) {
	calc, _, _ := newTestCalculator(t, nil)

	report, err := calc.Report(context.Background(), "never-seen")

	require.NoError(t, err)
	assert.Equal(t, 0, report.TotalStock)
	assert.Equal(t, 0, report.Available)
}

// TestAvailabilityCalculator_NegativeAvailability tests the oversold case:
// the raw value stays negative, the display floors at zero and the
// violation is reported
func TestAvailabilityCalculator_NegativeAvailability(t *testing.T) {
	// Arrange - 10 units but 12 already confirmed
	reporter := &recordingReporter{}
	calc, ledger, reservations := newTestCalculator(t, reporter)
	ctx := context.Background()
	_, err := ledger.Append(ctx, "widget", 10)
	require.NoError(t, err)
	reservations.RegisterItem(models.OrderItem{ID: "li-a", ItemID: "widget", Quantity: 12, Status: models.StatusConfirmed})

	// Act
	report, err := calc.Report(ctx, "widget")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, -2, report.Available, "Raw availability keeps the negative value")
	assert.Equal(t, 0, report.AvailableDisplay, "Display value floors at zero")
	assert.Equal(t, []int{-2}, reporter.violations, "Violation should be reported once")
}

// TestAvailabilityCalculator_ConfirmHeadroom tests that an item's own
// pending quantity does not count against its Confirm
func TestAvailabilityCalculator_ConfirmHeadroom(t *testing.T) {
	// Arrange - 15 total, 5 confirmed, pending 4 (li-b) + 3 (li-c)
	calc, ledger, reservations := newTestCalculator(t, nil)
	ctx := context.Background()
	_, err := ledger.Append(ctx, "widget", 15)
	require.NoError(t, err)
	reservations.RegisterItem(models.OrderItem{ID: "li-a", ItemID: "widget", Quantity: 5, Status: models.StatusConfirmed})
	reservations.RegisterItem(models.OrderItem{ID: "li-b", ItemID: "widget", Quantity: 4, Status: models.StatusPending})
	reservations.RegisterItem(models.OrderItem{ID: "li-c", ItemID: "widget", Quantity: 3, Status: models.StatusPending})

	// Act - headroom for li-b excludes its own pending 4
	headroom, err := calc.ConfirmHeadroom(ctx, models.OrderItem{ID: "li-b", ItemID: "widget", Quantity: 4, Status: models.StatusPending})

	// Assert - 15 - 5 - 3 = 7
	require.NoError(t, err)
	assert.Equal(t, 7, headroom)
}

// TestAvailabilityCalculator_ConfirmHeadroomClamp tests the clamp when the
// index holds less pending than the item claims
func TestAvailabilityCalculator_ConfirmHeadroomClamp(t *testing.T) {
	calc, ledger, _ := newTestCalculator(t, nil)
	ctx := context.Background()
	_, err := ledger.Append(ctx, "widget", 10)
	require.NoError(t, err)

	// The item was never registered, so pending-others would be negative
	headroom, err := calc.ConfirmHeadroom(ctx, models.OrderItem{ID: "li-x", ItemID: "widget", Quantity: 4, Status: models.StatusPending})

	require.NoError(t, err)
	assert.Equal(t, 10, headroom, "Missing index entries must not inflate headroom past total stock")
}
