package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/payloads"
)

// DriftedEntry is a transaction whose stored balanceAfter disagrees with the replay.
type DriftedEntry struct {
	TransactionID uuid.UUID `json:"transactionId"`
	Sequence      int64     `json:"sequence"`
	Stored        int64     `json:"stored"`
	Expected      int64     `json:"expected"`
}

// ReconcileReport compares the stored balances of a club with a replay from zero.
type ReconcileReport struct {
	ClubID          string         `json:"clubId"`
	Entries         int            `json:"entries"`
	StoredBalance   int64          `json:"storedBalance"`
	ExpectedBalance int64          `json:"expectedBalance"`
	Drifted         []DriftedEntry `json:"drifted"`
	Repaired        bool           `json:"repaired"`
}

// Consistent reports whether neither rows nor the account drifted.
func (r *ReconcileReport) Consistent() bool {
	return len(r.Drifted) == 0 && r.StoredBalance == r.ExpectedBalance
}

// DriftCount counts drifted rows plus one when the account balance itself drifted.
func (r *ReconcileReport) DriftCount() int {
	n := len(r.Drifted)
	if r.StoredBalance != r.ExpectedBalance {
		n++
	}
	return n
}

// Reconcile replays the club ledger. With repair set, drifted balances are
// rewritten under the account version check.
func (s *service) Reconcile(ctx context.Context, clubID string, repair bool) (*ReconcileReport, error) {
	clubID = strings.TrimSpace(clubID)
	if clubID == "" {
		return nil, errClubIDRequired
	}
	ctx = s.logg.WithClubID(ctx, clubID)
	const op = "reconcile"

	var report *ReconcileReport
	err := s.commit(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := repo.FindAccount(ctx, clubID)
		if err != nil {
			return storeError(err, "load club account")
		}
		rows, err := repo.ListLedger(ctx, clubID)
		if err != nil {
			return storeError(err, "load club ledger")
		}
		state := stateOf(clubID, account)
		result := replay(rows)

		current := &ReconcileReport{
			ClubID:          clubID,
			Entries:         len(rows),
			StoredBalance:   state.balance,
			ExpectedBalance: result.balance,
			Drifted:         []DriftedEntry{},
		}
		for _, row := range result.drifted() {
			current.Drifted = append(current.Drifted, DriftedEntry{
				TransactionID: row.ID,
				Sequence:      row.Sequence,
				Stored:        row.Stored,
				Expected:      row.Expected,
			})
		}
		report = current
		if !repair || current.Consistent() {
			return nil
		}

		next := state.next(result.balance, s.now())
		if err := s.advance(ctx, repo, state, next); err != nil {
			return err
		}
		if _, err := rewriteBalances(ctx, repo, result, uuid.Nil); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClubLedgerReconciled,
			AggregateType: enums.AggregateClubAccount,
			AggregateID:   clubID,
			Data: payloads.LedgerReconciledEvent{
				ClubID:          clubID,
				DriftedRows:     len(current.Drifted),
				PreviousBalance: state.balance,
				CurrentBalance:  next.CurrentBudget,
				AccountVersion:  next.Version,
			},
		}); err != nil {
			return storeError(err, "queue ledger event")
		}
		current.Repaired = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if drift := report.DriftCount(); drift > 0 {
		s.metrics.AddDrift(drift)
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"drifted_rows":     len(report.Drifted),
			"stored_balance":   report.StoredBalance,
			"expected_balance": report.ExpectedBalance,
			"repaired":         report.Repaired,
		})
		s.logg.Warn(logCtx, "ledger.drift_detected")
	}
	return report, nil
}
