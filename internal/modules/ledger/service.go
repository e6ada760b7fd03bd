package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"studiodesk/internal/domain"
	"studiodesk/internal/events"
	"studiodesk/internal/metrics"
	"studiodesk/internal/realtime"
	"studiodesk/internal/repository"
)

const defaultCategory = "Uncategorized"

// Service is the only writer of account balances and booking paid amounts.
// Every operation is one database transaction: the ledger entry and the
// balance it moves commit together or not at all. Nothing is retried.
type Service struct {
	db      *gorm.DB
	policy  ExpensePolicy
	events  events.Publisher
	changes realtime.Publisher
}

func NewService(db *gorm.DB, policy ExpensePolicy, pub events.Publisher, changes realtime.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if changes == nil {
		changes = realtime.Discard{}
	}
	return &Service{
		db:      db,
		policy:  policy,
		events:  pub,
		changes: changes,
	}
}

func (s *Service) Policy() ExpensePolicy { return s.policy }

// CreateBookingWithDeposit writes a booking and, when a deposit is taken, the
// income entry and the balance increase that go with it. The guard runs first
// inside the same transaction; if it fails nothing is written.
func (s *Service) CreateBookingWithDeposit(ctx context.Context, tc domain.TenantContext, in DepositBooking, guard Guard) (*BookingResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if in.Booking == nil {
		return nil, fmt.Errorf("%w: booking is required", ErrValidation)
	}
	if in.Deposit.IsNegative() {
		return nil, fmt.Errorf("%w: deposit cannot be negative", ErrValidation)
	}
	if in.Deposit.IsPositive() && strings.TrimSpace(in.AccountID) == "" {
		return nil, fmt.Errorf("%w: a deposit needs an account", ErrValidation)
	}

	b := in.Booking
	b.TenantID = tc.TenantID
	b.PaidAmount = in.Deposit
	if b.Status == "" {
		b.Status = domain.BookingBooked
	}
	if b.CreatedBy == "" {
		b.CreatedBy = tc.ActorID
	}

	res := &BookingResult{Booking: b}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if guard != nil {
			if err := guard(ctx, tx); err != nil {
				return err
			}
		}

		var acct *domain.Account
		if in.Deposit.IsPositive() {
			var err error
			if acct, err = lockAccount(ctx, tx, tc.TenantID, in.AccountID); err != nil {
				return err
			}
		}

		if err := repository.NewBookingRepository(tx).Create(ctx, b); err != nil {
			return err
		}
		if acct == nil {
			return nil
		}

		txn := &domain.Transaction{
			TenantID:    tc.TenantID,
			Description: fmt.Sprintf("Deposit for booking %s", b.ClientName),
			Amount:      in.Deposit,
			Kind:        domain.TransactionIncome,
			AccountID:   acct.ID,
			Category:    domain.CategoryBookingSale,
			BookingID:   &b.ID,
			CreatedBy:   tc.ActorID,
		}
		if err := repository.NewTransactionRepository(tx).Create(ctx, txn); err != nil {
			return err
		}

		acct.Balance = acct.Balance.Add(in.Deposit)
		if err := repository.NewAccountRepository(tx).SetBalance(ctx, tc.TenantID, acct.ID, acct.Balance); err != nil {
			return err
		}

		res.Transaction = txn
		res.Account = acct
		return nil
	})
	metrics.ObserveLedgerOp("create_booking", err)
	if err != nil {
		return nil, err
	}

	metrics.IncBookingCreated(res.Transaction != nil)
	changes := []realtime.Change{bookingChange(realtime.OpAdded, b)}
	if res.Transaction != nil {
		changes = append(changes, accountChange(res.Account), transactionChange(res.Transaction))
	}
	s.afterCommit(ctx, changes, res.Transaction)
	return res, nil
}

// Settle posts a payment (positive amount) or a refund (negative amount)
// against a booking. PaidAmount and the account balance move by the same
// signed amount.
func (s *Service) Settle(ctx context.Context, tc domain.TenantContext, in SettleInput) (*SettleResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if in.Amount.IsZero() {
		return nil, fmt.Errorf("%w: amount must not be zero", ErrValidation)
	}
	if in.BookingID == "" || in.AccountID == "" {
		return nil, fmt.Errorf("%w: booking and account are required", ErrValidation)
	}

	res := &SettleResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bookings := repository.NewBookingRepository(tx)
		b, err := bookings.GetForUpdate(ctx, tc.TenantID, in.BookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrBookingNotFound, in.BookingID)
		}
		if err != nil {
			return err
		}

		acct, err := lockAccount(ctx, tx, tc.TenantID, in.AccountID)
		if err != nil {
			return err
		}

		paid := b.PaidAmount.Add(in.Amount)
		if paid.IsNegative() {
			return fmt.Errorf("%w: refund of %s exceeds the %s paid", ErrValidation, in.Amount.Abs(), b.PaidAmount)
		}
		balance := acct.Balance.Add(in.Amount)
		if in.Amount.IsNegative() && s.policy.EnforceFloor && balance.IsNegative() {
			return fmt.Errorf("%w: %s holds %s", ErrInsufficientFunds, acct.Name, acct.Balance)
		}

		txn := &domain.Transaction{
			TenantID:    tc.TenantID,
			Description: in.Description,
			Amount:      in.Amount.Abs(),
			AccountID:   acct.ID,
			BookingID:   &b.ID,
			OccurredAt:  in.OccurredAt,
			CreatedBy:   tc.ActorID,
		}
		if in.Amount.IsPositive() {
			txn.Kind = domain.TransactionIncome
			txn.Category = domain.CategoryBookingSale
			if txn.Description == "" {
				txn.Description = fmt.Sprintf("Payment for booking %s", b.ClientName)
			}
		} else {
			txn.Kind = domain.TransactionExpense
			txn.Category = domain.CategoryBookingRefund
			if txn.Description == "" {
				txn.Description = fmt.Sprintf("Refund for booking %s", b.ClientName)
			}
		}

		if err := bookings.SetPaidAmount(ctx, tc.TenantID, b.ID, paid); err != nil {
			return err
		}
		if err := repository.NewAccountRepository(tx).SetBalance(ctx, tc.TenantID, acct.ID, balance); err != nil {
			return err
		}
		if err := repository.NewTransactionRepository(tx).Create(ctx, txn); err != nil {
			return err
		}

		b.PaidAmount = paid
		acct.Balance = balance
		res.Booking, res.Account, res.Transaction = b, acct, txn
		return nil
	})
	metrics.ObserveLedgerOp("settle", err)
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, []realtime.Change{
		bookingChange(realtime.OpModified, res.Booking),
		accountChange(res.Account),
		transactionChange(res.Transaction),
	}, res.Transaction)
	return res, nil
}

// RecordExpense takes money out of an account. Whether the balance may go
// negative is decided by the ExpensePolicy.
func (s *Service) RecordExpense(ctx context.Context, tc domain.TenantContext, in EntryInput) (*EntryResult, error) {
	res, err := s.post(ctx, tc, in, domain.TransactionExpense)
	metrics.ObserveLedgerOp("expense", err)
	return res, err
}

// RecordIncome puts money into an account for anything that is not a booking
// payment, such as print sales.
func (s *Service) RecordIncome(ctx context.Context, tc domain.TenantContext, in EntryInput) (*EntryResult, error) {
	res, err := s.post(ctx, tc, in, domain.TransactionIncome)
	metrics.ObserveLedgerOp("income", err)
	return res, err
}

func (s *Service) post(ctx context.Context, tc domain.TenantContext, in EntryInput, kind domain.TransactionKind) (*EntryResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if in.AccountID == "" {
		return nil, fmt.Errorf("%w: account is required", ErrValidation)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = defaultCategory
	}

	res := &EntryResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(ctx, tx, tc.TenantID, in.AccountID)
		if err != nil {
			return err
		}

		var bookingID *string
		if in.BookingID != "" {
			if _, err := repository.NewBookingRepository(tx).GetByID(ctx, tc.TenantID, in.BookingID); err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("%w: %s", ErrBookingNotFound, in.BookingID)
				}
				return err
			}
			id := in.BookingID
			bookingID = &id
		}

		balance := acct.Balance.Add(in.Amount)
		if kind == domain.TransactionExpense {
			balance = acct.Balance.Sub(in.Amount)
			if s.policy.EnforceFloor && balance.IsNegative() {
				return fmt.Errorf("%w: %s holds %s", ErrInsufficientFunds, acct.Name, acct.Balance)
			}
		}

		txn := &domain.Transaction{
			TenantID:    tc.TenantID,
			Description: in.Description,
			Amount:      in.Amount,
			Kind:        kind,
			AccountID:   acct.ID,
			Category:    category,
			BookingID:   bookingID,
			OccurredAt:  in.OccurredAt,
			CreatedBy:   tc.ActorID,
		}
		if err := repository.NewTransactionRepository(tx).Create(ctx, txn); err != nil {
			return err
		}
		if err := repository.NewAccountRepository(tx).SetBalance(ctx, tc.TenantID, acct.ID, balance); err != nil {
			return err
		}

		acct.Balance = balance
		res.Account, res.Transaction = acct, txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, []realtime.Change{accountChange(res.Account), transactionChange(res.Transaction)}, res.Transaction)
	return res, nil
}

// Transfer moves money between two accounts of the same studio. The source
// may never go below zero, whatever the expense policy says.
func (s *Service) Transfer(ctx context.Context, tc domain.TenantContext, in TransferInput) (*TransferResult, error) {
	res, err := s.transfer(ctx, tc, in)
	metrics.ObserveLedgerOp("transfer", err)
	return res, err
}

func (s *Service) transfer(ctx context.Context, tc domain.TenantContext, in TransferInput) (*TransferResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if in.FromAccountID == "" || in.ToAccountID == "" {
		return nil, fmt.Errorf("%w: source and destination accounts are required", ErrValidation)
	}
	if in.FromAccountID == in.ToAccountID {
		return nil, fmt.Errorf("%w: cannot transfer to the same account", ErrValidation)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	res := &TransferResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock in id order so two opposite transfers cannot deadlock
		firstID, secondID := in.FromAccountID, in.ToAccountID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}
		first, err := lockAccount(ctx, tx, tc.TenantID, firstID)
		if err != nil {
			return err
		}
		second, err := lockAccount(ctx, tx, tc.TenantID, secondID)
		if err != nil {
			return err
		}
		src, dst := first, second
		if src.ID != in.FromAccountID {
			src, dst = second, first
		}

		if src.Balance.LessThan(in.Amount) {
			return fmt.Errorf("%w: %s holds %s", ErrInsufficientFunds, src.Name, src.Balance)
		}

		accounts := repository.NewAccountRepository(tx)
		src.Balance = src.Balance.Sub(in.Amount)
		dst.Balance = dst.Balance.Add(in.Amount)
		if err := accounts.SetBalance(ctx, tc.TenantID, src.ID, src.Balance); err != nil {
			return err
		}
		if err := accounts.SetBalance(ctx, tc.TenantID, dst.ID, dst.Balance); err != nil {
			return err
		}

		desc := in.Description
		if desc == "" {
			desc = fmt.Sprintf("Transfer from %s to %s", src.Name, dst.Name)
		}
		destID := dst.ID
		txn := &domain.Transaction{
			TenantID:             tc.TenantID,
			Description:          desc,
			Amount:               in.Amount,
			Kind:                 domain.TransactionTransfer,
			AccountID:            src.ID,
			DestinationAccountID: &destID,
			Category:             domain.CategoryTransfer,
			OccurredAt:           in.OccurredAt,
			CreatedBy:            tc.ActorID,
		}
		if err := repository.NewTransactionRepository(tx).Create(ctx, txn); err != nil {
			return err
		}

		res.From, res.To, res.Transaction = src, dst, txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCommit(ctx, []realtime.Change{
		accountChange(res.From),
		accountChange(res.To),
		transactionChange(res.Transaction),
	}, res.Transaction)
	return res, nil
}

// CreateAccount opens an account. The opening balance is not a ledger entry,
// reconciliation measures against it.
func (s *Service) CreateAccount(ctx context.Context, tc domain.TenantContext, in NewAccount) (*domain.Account, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: account name is required", ErrValidation)
	}
	typ := in.Type
	if typ == "" {
		typ = domain.AccountBank
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: unknown account type %q", ErrValidation, typ)
	}

	acct := &domain.Account{
		TenantID:       tc.TenantID,
		Name:           name,
		Type:           typ,
		OpeningBalance: in.OpeningBalance,
		Balance:        in.OpeningBalance,
	}
	if err := repository.NewAccountRepository(s.db).Create(ctx, acct); err != nil {
		return nil, err
	}

	s.afterCommit(ctx, []realtime.Change{{
		Collection: realtime.CollectionAccounts,
		TenantID:   acct.TenantID,
		Op:         realtime.OpAdded,
		ID:         acct.ID,
		Doc:        acct,
	}}, nil)
	return acct, nil
}

func (s *Service) ListAccounts(ctx context.Context, tc domain.TenantContext) ([]domain.Account, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return repository.NewAccountRepository(s.db).List(ctx, tc.TenantID)
}

func (s *Service) GetAccount(ctx context.Context, tc domain.TenantContext, id string) (*domain.Account, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	acct, err := repository.NewAccountRepository(s.db).GetByID(ctx, tc.TenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acct, err
}

func (s *Service) ListTransactions(ctx context.Context, tc domain.TenantContext, f repository.TransactionFilter) ([]domain.Transaction, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return repository.NewTransactionRepository(s.db).List(ctx, tc.TenantID, f)
}

func lockAccount(ctx context.Context, tx *gorm.DB, tenantID, id string) (*domain.Account, error) {
	acct, err := repository.NewAccountRepository(tx).GetForUpdate(ctx, tenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return acct, err
}

// afterCommit fans out the committed writes. Failures here are logged by the
// publishers and never reach the caller: the write already happened.
func (s *Service) afterCommit(ctx context.Context, changes []realtime.Change, posted *domain.Transaction) {
	ctx = context.WithoutCancel(ctx)
	for _, ch := range changes {
		s.changes.Publish(ctx, ch)
	}
	if posted == nil {
		return
	}

	ev := events.LedgerPosted{
		TenantID:      posted.TenantID,
		TransactionID: posted.ID,
		Kind:          string(posted.Kind),
		Amount:        posted.Amount,
		AccountID:     posted.AccountID,
		OccurredAt:    posted.OccurredAt,
	}
	if posted.BookingID != nil {
		ev.BookingID = *posted.BookingID
	}
	events.PublishAsync(s.events, events.KeyLedgerPosted, ev)
}

func bookingChange(op realtime.Op, b *domain.Booking) realtime.Change {
	return realtime.Change{
		Collection: realtime.CollectionBookings,
		TenantID:   b.TenantID,
		Op:         op,
		ID:         b.ID,
		Date:       b.Date,
		Doc:        b,
	}
}

func accountChange(a *domain.Account) realtime.Change {
	return realtime.Change{
		Collection: realtime.CollectionAccounts,
		TenantID:   a.TenantID,
		Op:         realtime.OpModified,
		ID:         a.ID,
		Doc:        a,
	}
}

func transactionChange(t *domain.Transaction) realtime.Change {
	return realtime.Change{
		Collection: realtime.CollectionTransactions,
		TenantID:   t.TenantID,
		Op:         realtime.OpAdded,
		ID:         t.ID,
		Date:       t.OccurredAt.UTC().Format(domain.DateLayout),
		Doc:        t,
	}
}

// Total is a small helper for callers summing amounts of one kind.
func Total(txns []domain.Transaction, kind domain.TransactionKind) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txns {
		if t.Kind == kind {
			sum = sum.Add(t.Amount)
		}
	}
	return sum
}
