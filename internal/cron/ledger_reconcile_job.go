package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/clubledger-backend/internal/ledger"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
)

type ledgerReconciler interface {
	ListClubIDs(ctx context.Context) ([]string, error)
	Reconcile(ctx context.Context, clubID string, repair bool) (*ledger.ReconcileReport, error)
}

type LedgerReconcileJobParams struct {
	Logger *logger.Logger
	Ledger ledgerReconciler
	Repair bool
}

// NewLedgerReconcileJob replays every club ledger and, when Repair is set,
// rewrites balances that drifted from the replay.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerReconcileJob{
		logg:   params.Logger,
		ledger: params.Ledger,
		repair: params.Repair,
	}, nil
}

type ledgerReconcileJob struct {
	logg   *logger.Logger
	ledger ledgerReconciler
	repair bool
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	clubIDs, err := j.ledger.ListClubIDs(ctx)
	if err != nil {
		return fmt.Errorf("list clubs: %w", err)
	}

	var (
		errs     error
		drifted  int
		repaired int
	)
	for _, clubID := range clubIDs {
		report, err := j.ledger.Reconcile(ctx, clubID, j.repair)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("club %s: %w", clubID, err))
			continue
		}
		if report.Consistent() {
			continue
		}
		drifted++
		if report.Repaired {
			repaired++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"clubs":          len(clubIDs),
		"clubs_drifted":  drifted,
		"clubs_repaired": repaired,
		"clubs_failed":   len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "ledger reconcile complete")
	return errs
}
