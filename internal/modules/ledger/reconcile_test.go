package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiodesk/internal/domain"
)

func TestReconcile_BalancedAfterEveryOperation(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	bank := openAccount(t, svc, "Bank", "1000")
	cash := openAccount(t, svc, "Cash", "50")

	created, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: newBooking("10:00"), Deposit: dec("200"), AccountID: bank.ID}, nil)
	require.NoError(t, err)
	_, err = svc.Settle(ctx, tc, SettleInput{BookingID: created.Booking.ID, AccountID: cash.ID, Amount: dec("75.25")})
	require.NoError(t, err)
	_, err = svc.Settle(ctx, tc, SettleInput{BookingID: created.Booking.ID, AccountID: bank.ID, Amount: dec("-25")})
	require.NoError(t, err)
	_, err = svc.RecordExpense(ctx, tc, EntryInput{AccountID: cash.ID, Amount: dec("500")})
	require.NoError(t, err)
	_, err = svc.RecordIncome(ctx, tc, EntryInput{AccountID: cash.ID, Amount: dec("10")})
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, tc, TransferInput{FromAccountID: bank.ID, ToAccountID: cash.ID, Amount: dec("400")})
	require.NoError(t, err)

	reports, err := svc.Reconcile(ctx, tc)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	for _, r := range reports {
		assert.True(t, r.Balanced(), "%s drifted by %s", r.Name, r.Drift)
	}
}

func TestReconcile_DetectsDrift(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	bank := openAccount(t, svc, "Bank", "100")
	_, err := svc.RecordIncome(ctx, tc, EntryInput{AccountID: bank.ID, Amount: dec("20")})
	require.NoError(t, err)

	// a write that bypassed the ledger
	require.NoError(t, db.Model(&domain.Account{}).Where("id = ?", bank.ID).Update("balance", dec("150")).Error)

	reports, err := svc.Reconcile(ctx, tc)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Balanced())
	assertDecimal(t, "30", reports[0].Drift)
	assertDecimal(t, "20", reports[0].LedgerSum)
	assert.Equal(t, 1, reports[0].Entries)

	drifted, err := svc.RunScheduledReconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, drifted)
}

func TestReconcileAll_CoversEveryTenant(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	openAccount(t, svc, "Bank", "0")

	other := domain.TenantContext{TenantID: "t2", ActorID: "u2"}
	_, err := svc.CreateAccount(ctx, other, NewAccount{Name: "Other"})
	require.NoError(t, err)

	reports, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	own, err := svc.Reconcile(ctx, tc)
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestScheduleReconcile_Disabled(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	assert.Nil(t, svc.ScheduleReconcile(context.Background(), ReconcileConfig{Enabled: false}))
}
