package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"studiodesk/internal/domain"
	"studiodesk/internal/logging"
	"studiodesk/internal/metrics"
	"studiodesk/internal/repository"
)

// Reconcile checks, for every account of the tenant, that the signed sum of
// its ledger entries equals balance minus opening balance.
func (s *Service) Reconcile(ctx context.Context, tc domain.TenantContext) ([]AccountReport, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	accounts, err := repository.NewAccountRepository(s.db).List(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}
	return s.reportAll(ctx, accounts)
}

// ReconcileAll walks every tenant.
func (s *Service) ReconcileAll(ctx context.Context) ([]AccountReport, error) {
	accounts, err := repository.NewAccountRepository(s.db).ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.reportAll(ctx, accounts)
}

func (s *Service) reportAll(ctx context.Context, accounts []domain.Account) ([]AccountReport, error) {
	out := make([]AccountReport, 0, len(accounts))
	for _, a := range accounts {
		r, err := s.report(ctx, a.TenantID, a.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}

// report locks the account so the balance and the entries are read at the
// same point in time.
func (s *Service) report(ctx context.Context, tenantID, accountID string) (*AccountReport, error) {
	var r AccountReport
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		acct, err := lockAccount(ctx, tx, tenantID, accountID)
		if err != nil {
			return err
		}
		txns, err := repository.NewTransactionRepository(tx).ListForAccount(ctx, tenantID, accountID)
		if err != nil {
			return err
		}

		sum := decimal.Zero
		for i := range txns {
			sum = sum.Add(txns[i].SignedFor(accountID))
		}
		r = AccountReport{
			AccountID:      acct.ID,
			TenantID:       acct.TenantID,
			Name:           acct.Name,
			OpeningBalance: acct.OpeningBalance,
			Balance:        acct.Balance,
			LedgerSum:      sum,
			Drift:          acct.Balance.Sub(acct.OpeningBalance).Sub(sum),
			Entries:        len(txns),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ReconcileConfig controls the background reconciliation job.
type ReconcileConfig struct {
	Interval time.Duration
	Enabled  bool
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Interval: 6 * time.Hour,
		Enabled:  true,
	}
}

// RunScheduledReconcile reconciles every account once, logs each drifted one
// and returns how many drifted.
func (s *Service) RunScheduledReconcile(ctx context.Context) (int, error) {
	log := logging.GetLogger()
	start := time.Now()

	reports, err := s.ReconcileAll(ctx)
	if err != nil {
		logging.LogError(log, "ledger", "RunScheduledReconcile", "reconcile failed", nil, err)
		return 0, err
	}

	drifted := 0
	for _, r := range reports {
		if r.Balanced() {
			continue
		}
		drifted++
		log.WithFields(logrus.Fields{
			"tenant_id":  r.TenantID,
			"account_id": r.AccountID,
			"balance":    r.Balance.String(),
			"ledger_sum": r.LedgerSum.String(),
			"drift":      r.Drift.String(),
		}).Warn("account balance does not match its ledger")
	}
	metrics.SetDriftedAccounts(drifted)

	log.WithFields(logrus.Fields{
		"accounts": len(reports),
		"drifted":  drifted,
		"took":     time.Since(start).String(),
	}).Info("ledger reconcile completed")
	return drifted, nil
}

// ScheduleReconcile starts a background goroutine that reconciles on every
// tick. Close the returned channel or cancel ctx to stop it.
func (s *Service) ScheduleReconcile(ctx context.Context, cfg ReconcileConfig) chan struct{} {
	log := logging.GetLogger()
	if !cfg.Enabled || cfg.Interval <= 0 {
		log.Info("scheduled ledger reconcile is disabled")
		return nil
	}

	stopCh := make(chan struct{})

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				_, _ = s.RunScheduledReconcile(ctx)
			case <-stopCh:
				log.Info("scheduled ledger reconcile stopped")
				return
			case <-ctx.Done():
				log.Info("scheduled ledger reconcile stopped (context done)")
				return
			}
		}
	}()

	log.WithFields(logrus.Fields{"interval": cfg.Interval.String()}).Info("scheduled ledger reconcile started")
	return stopCh
}
