package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"studiodesk/internal/domain"
	"studiodesk/internal/modules/scheduling"
	"studiodesk/internal/realtime"
	"studiodesk/internal/repository"
)

var tc = domain.TenantContext{TenantID: "t1", ActorID: "u1", Role: "owner"}

type recordingChanges struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *recordingChanges) Publish(_ context.Context, ch realtime.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recordingChanges) collections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.changes))
	for _, ch := range r.changes {
		out = append(out, ch.Collection)
	}
	return out
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))

	// one connection makes sqlite serialize concurrent transactions the way
	// row locks do on a server database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func setupTestService(t *testing.T, policy ExpensePolicy) (*Service, *gorm.DB, *recordingChanges) {
	t.Helper()
	db := setupTestDB(t)
	changes := &recordingChanges{}
	return NewService(db, policy, nil, changes), db, changes
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func openAccount(t *testing.T, svc *Service, name, opening string) *domain.Account {
	t.Helper()
	acct, err := svc.CreateAccount(context.Background(), tc, NewAccount{
		Name:           name,
		Type:           domain.AccountBank,
		OpeningBalance: dec(opening),
	})
	require.NoError(t, err)
	return acct
}

func newBooking(start string) *domain.Booking {
	return &domain.Booking{
		ClientName:    "Aigerim",
		Date:          "2025-03-14",
		StartTime:     start,
		DurationHours: 2,
		Room:          "Main Studio",
		Price:         dec("800000"),
	}
}

func reload(t *testing.T, db *gorm.DB, acct *domain.Account) *domain.Account {
	t.Helper()
	got, err := repository.NewAccountRepository(db).GetByID(context.Background(), tc.TenantID, acct.ID)
	require.NoError(t, err)
	return got
}

func countTransactions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Transaction{}).Count(&n).Error)
	return n
}

func TestCreateBookingWithDeposit(t *testing.T) {
	svc, db, changes := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	acct := openAccount(t, svc, "Kaspi", "0")

	res, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{
		Booking:   newBooking("10:00"),
		Deposit:   dec("500000"),
		AccountID: acct.ID,
	}, nil)
	require.NoError(t, err)

	assertDecimal(t, "500000", reload(t, db, acct).Balance)

	stored, err := repository.NewBookingRepository(db).GetByID(ctx, tc.TenantID, res.Booking.ID)
	require.NoError(t, err)
	assertDecimal(t, "500000", stored.PaidAmount)
	assert.Equal(t, domain.BookingBooked, stored.Status)
	assert.Equal(t, "u1", stored.CreatedBy)

	txns, err := repository.NewTransactionRepository(db).List(ctx, tc.TenantID, repository.TransactionFilter{BookingID: res.Booking.ID})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, domain.TransactionIncome, txns[0].Kind)
	assert.Equal(t, domain.CategoryBookingSale, txns[0].Category)
	assert.Equal(t, acct.ID, txns[0].AccountID)
	assertDecimal(t, "500000", txns[0].Amount)

	assert.Contains(t, changes.collections(), realtime.CollectionBookings)
	assert.Contains(t, changes.collections(), realtime.CollectionTransactions)
}

func TestCreateBookingWithoutDeposit(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	acct := openAccount(t, svc, "Kaspi", "100")

	res, err := svc.CreateBookingWithDeposit(context.Background(), tc, DepositBooking{
		Booking:   newBooking("10:00"),
		Deposit:   decimal.Zero,
		AccountID: acct.ID,
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Transaction)
	assertDecimal(t, "0", res.Booking.PaidAmount)
	assertDecimal(t, "100", reload(t, db, acct).Balance)
	assert.Equal(t, int64(0), countTransactions(t, db))
}

func TestCreateBookingWithDeposit_Validation(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()

	_, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: newBooking("10:00"), Deposit: dec("10")}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: newBooking("10:00"), Deposit: dec("-1"), AccountID: "x"}, nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateBookingWithDeposit(ctx, domain.TenantContext{}, DepositBooking{Booking: newBooking("10:00")}, nil)
	assert.ErrorIs(t, err, domain.ErrNoTenant)

	var n int64
	require.NoError(t, db.Model(&domain.Booking{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
}

func TestCreateBookingWithDeposit_MissingAccountWritesNothing(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})

	_, err := svc.CreateBookingWithDeposit(context.Background(), tc, DepositBooking{
		Booking:   newBooking("10:00"),
		Deposit:   dec("1000"),
		AccountID: "missing",
	}, nil)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	var n int64
	require.NoError(t, db.Model(&domain.Booking{}).Count(&n).Error)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, int64(0), countTransactions(t, db))
}

func TestCreateBookingWithDeposit_ConflictAbortsCommit(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	acct := openAccount(t, svc, "Kaspi", "0")

	sched := scheduling.NewService(repository.NewBookingRepository(db), repository.NewStudioConfigRepository(db), nil, 30)

	first := newBooking("10:00")
	_, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: first, Deposit: dec("500000"), AccountID: acct.ID},
		sched.Guard(tc, first, 30))
	require.NoError(t, err)

	second := newBooking("12:15")
	second.ClientName = "Dana"
	_, err = svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: second, Deposit: dec("200000"), AccountID: acct.ID},
		sched.Guard(tc, second, 30))
	require.ErrorIs(t, err, scheduling.ErrConflict)
	assert.Contains(t, err.Error(), "Aigerim")

	assertDecimal(t, "500000", reload(t, db, acct).Balance)
	assert.Equal(t, int64(1), countTransactions(t, db))

	third := newBooking("12:30")
	_, err = svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: third}, sched.Guard(tc, third, 30))
	assert.NoError(t, err)
}

func TestSettle_PaymentAndRefund(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	acct := openAccount(t, svc, "Cash", "0")

	created, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: newBooking("10:00"), Deposit: dec("100"), AccountID: acct.ID}, nil)
	require.NoError(t, err)
	id := created.Booking.ID

	paid, err := svc.Settle(ctx, tc, SettleInput{BookingID: id, AccountID: acct.ID, Amount: dec("250")})
	require.NoError(t, err)
	assertDecimal(t, "350", paid.Booking.PaidAmount)
	assertDecimal(t, "350", paid.Account.Balance)
	assert.Equal(t, domain.TransactionIncome, paid.Transaction.Kind)
	assert.Contains(t, paid.Transaction.Description, "Payment")

	refund, err := svc.Settle(ctx, tc, SettleInput{BookingID: id, AccountID: acct.ID, Amount: dec("-50")})
	require.NoError(t, err)
	assertDecimal(t, "300", refund.Booking.PaidAmount)
	assertDecimal(t, "300", refund.Account.Balance)
	assert.Equal(t, domain.TransactionExpense, refund.Transaction.Kind)
	assert.Equal(t, domain.CategoryBookingRefund, refund.Transaction.Category)
	assertDecimal(t, "50", refund.Transaction.Amount)
	assert.Contains(t, refund.Transaction.Description, "Refund")

	stored, err := repository.NewBookingRepository(db).GetByID(ctx, tc.TenantID, id)
	require.NoError(t, err)
	assertDecimal(t, "300", stored.PaidAmount)
}

func TestSettle_Errors(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	acct := openAccount(t, svc, "Cash", "0")
	created, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: newBooking("10:00"), Deposit: dec("100"), AccountID: acct.ID}, nil)
	require.NoError(t, err)
	id := created.Booking.ID

	_, err = svc.Settle(ctx, tc, SettleInput{BookingID: id, AccountID: acct.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Settle(ctx, tc, SettleInput{BookingID: "missing", AccountID: acct.ID, Amount: dec("10")})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = svc.Settle(ctx, tc, SettleInput{BookingID: id, AccountID: "missing", Amount: dec("10")})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.Settle(ctx, tc, SettleInput{BookingID: id, AccountID: acct.ID, Amount: dec("-150")})
	assert.ErrorIs(t, err, ErrValidation)

	other := domain.TenantContext{TenantID: "t2", ActorID: "u2"}
	_, err = svc.Settle(ctx, other, SettleInput{BookingID: id, AccountID: acct.ID, Amount: dec("10")})
	assert.ErrorIs(t, err, ErrBookingNotFound)

	assertDecimal(t, "100", reload(t, db, acct).Balance)
	assert.Equal(t, int64(1), countTransactions(t, db))
}

func TestSettle_ConcurrentPaymentsBothApply(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	acct := openAccount(t, svc, "Cash", "0")
	created, err := svc.CreateBookingWithDeposit(ctx, tc, DepositBooking{Booking: newBooking("10:00")}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Settle(ctx, tc, SettleInput{BookingID: created.Booking.ID, AccountID: acct.ID, Amount: dec("100")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := repository.NewBookingRepository(db).GetByID(ctx, tc.TenantID, created.Booking.ID)
	require.NoError(t, err)
	assertDecimal(t, "200", stored.PaidAmount)
	assertDecimal(t, "200", reload(t, db, acct).Balance)
	assert.Equal(t, int64(2), countTransactions(t, db))
}

func TestRecordExpense_AllowsNegativeBalanceByDefault(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	acct := openAccount(t, svc, "Cash", "100")

	res, err := svc.RecordExpense(context.Background(), tc, EntryInput{
		AccountID:   acct.ID,
		Amount:      dec("150"),
		Description: "Backdrop paper",
		Category:    "Supplies",
	})
	require.NoError(t, err)
	assertDecimal(t, "-50", res.Account.Balance)
	assertDecimal(t, "-50", reload(t, db, acct).Balance)
	assert.Equal(t, domain.TransactionExpense, res.Transaction.Kind)
	assert.Equal(t, "Supplies", res.Transaction.Category)
}

func TestRecordExpense_FloorPolicy(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{EnforceFloor: true})
	acct := openAccount(t, svc, "Cash", "100")

	_, err := svc.RecordExpense(context.Background(), tc, EntryInput{AccountID: acct.ID, Amount: dec("150")})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assertDecimal(t, "100", reload(t, db, acct).Balance)
	assert.Equal(t, int64(0), countTransactions(t, db))

	res, err := svc.RecordExpense(context.Background(), tc, EntryInput{AccountID: acct.ID, Amount: dec("100")})
	require.NoError(t, err)
	assertDecimal(t, "0", res.Account.Balance)
}

func TestRecordExpense_Errors(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	acct := openAccount(t, svc, "Cash", "100")
	ctx := context.Background()

	_, err := svc.RecordExpense(ctx, tc, EntryInput{AccountID: "missing", Amount: dec("1")})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.RecordExpense(ctx, tc, EntryInput{AccountID: acct.ID, Amount: dec("0")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.RecordExpense(ctx, tc, EntryInput{AccountID: acct.ID, Amount: dec("1"), BookingID: "missing"})
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestRecordIncome(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	acct := openAccount(t, svc, "Cash", "10")

	res, err := svc.RecordIncome(context.Background(), tc, EntryInput{AccountID: acct.ID, Amount: dec("40.50"), Description: "Prints"})
	require.NoError(t, err)
	assertDecimal(t, "50.50", res.Account.Balance)
	assert.Equal(t, defaultCategory, res.Transaction.Category)
	assert.Nil(t, res.Transaction.BookingID)
}

func TestTransfer(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()
	bank := openAccount(t, svc, "Bank", "1000")
	cash := openAccount(t, svc, "Cash", "0")

	res, err := svc.Transfer(ctx, tc, TransferInput{FromAccountID: bank.ID, ToAccountID: cash.ID, Amount: dec("300")})
	require.NoError(t, err)
	assertDecimal(t, "700", reload(t, db, bank).Balance)
	assertDecimal(t, "300", reload(t, db, cash).Balance)
	assert.Equal(t, domain.TransactionTransfer, res.Transaction.Kind)
	assert.Equal(t, bank.ID, res.Transaction.AccountID)
	require.NotNil(t, res.Transaction.DestinationAccountID)
	assert.Equal(t, cash.ID, *res.Transaction.DestinationAccountID)

	// the reverse direction locks the same two rows in the same order
	_, err = svc.Transfer(ctx, tc, TransferInput{FromAccountID: cash.ID, ToAccountID: bank.ID, Amount: dec("100")})
	require.NoError(t, err)
	assertDecimal(t, "800", reload(t, db, bank).Balance)
	assertDecimal(t, "200", reload(t, db, cash).Balance)
}

func TestTransfer_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	svc, db, _ := setupTestService(t, ExpensePolicy{})
	bank := openAccount(t, svc, "Bank", "100")
	cash := openAccount(t, svc, "Cash", "5")

	_, err := svc.Transfer(context.Background(), tc, TransferInput{FromAccountID: bank.ID, ToAccountID: cash.ID, Amount: dec("100.01")})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assertDecimal(t, "100", reload(t, db, bank).Balance)
	assertDecimal(t, "5", reload(t, db, cash).Balance)
	assert.Equal(t, int64(0), countTransactions(t, db))
}

func TestTransfer_Validation(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	bank := openAccount(t, svc, "Bank", "100")
	ctx := context.Background()

	_, err := svc.Transfer(ctx, tc, TransferInput{FromAccountID: bank.ID, ToAccountID: bank.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Transfer(ctx, tc, TransferInput{FromAccountID: bank.ID, ToAccountID: "missing", Amount: dec("1")})
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = svc.Transfer(ctx, tc, TransferInput{FromAccountID: bank.ID, ToAccountID: "other", Amount: dec("-1")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateAccount_Validation(t *testing.T) {
	svc, _, _ := setupTestService(t, ExpensePolicy{})
	ctx := context.Background()

	_, err := svc.CreateAccount(ctx, tc, NewAccount{Name: " "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateAccount(ctx, tc, NewAccount{Name: "Card", Type: "crypto"})
	assert.ErrorIs(t, err, ErrValidation)

	acct, err := svc.CreateAccount(ctx, tc, NewAccount{Name: "Card"})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountBank, acct.Type)

	_, err = svc.GetAccount(ctx, tc, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
