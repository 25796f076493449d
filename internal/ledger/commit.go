package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

const sequenceConstraint = "ux_club_transactions_club_sequence"

// errVersionConflict means the account moved between read and write; the attempt is rolled back.
var errVersionConflict = errors.New("club account version changed")

// accountState is the account as read at the start of one attempt.
type accountState struct {
	clubID       string
	exists       bool
	version      int64
	balance      int64
	lastSequence int64
	lastEntryAt  *time.Time
}

func stateOf(clubID string, account *models.ClubAccount) accountState {
	if account == nil {
		return accountState{clubID: clubID}
	}
	return accountState{
		clubID:       clubID,
		exists:       true,
		version:      account.Version,
		balance:      account.CurrentBudget,
		lastSequence: account.LastSequence,
		lastEntryAt:  account.LastEntryAt,
	}
}

// next is the account row this attempt wants to write.
func (a accountState) next(balance int64, now time.Time) *models.ClubAccount {
	return &models.ClubAccount{
		ClubID:        a.clubID,
		CurrentBudget: balance,
		Version:       a.version + 1,
		LastSequence:  a.lastSequence,
		LastEntryAt:   a.lastEntryAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// commit runs fn in a database transaction and repeats it while the account
// version check fails, up to Policy.MaxAttempts.
func (s *service) commit(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	start := time.Now()
	backoff := retry.WithMaxRetries(uint64(s.policy.MaxAttempts-1), retry.NewExponential(s.policy.RetryBaseDelay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return fn(ctx, tx)
		})
		if errors.Is(err, errVersionConflict) || db.IsSerializationFailure(err) {
			s.metrics.IncConflict(op)
			logCtx := s.logg.WithFields(ctx, map[string]any{"operation": op, "attempt": attempt})
			s.logg.Warn(logCtx, "ledger.version_conflict")
			return retry.RetryableError(errVersionConflict)
		}
		return err
	})

	switch {
	case err == nil:
		s.metrics.IncCommit(op)
		s.metrics.ObserveCommit(op, time.Since(start))
		return nil
	case errors.Is(err, errVersionConflict):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "club ledger changed concurrently, retries exhausted").
			WithDetails(map[string]any{"attempts": attempt})
	}
	return storeError(err, "commit ledger write")
}

// storeError tags untyped persistence failures as STORE_FAILURE. Typed errors pass through.
func storeError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, errVersionConflict) || pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func isSequenceClash(err error) bool {
	return db.IsUniqueViolation(err, sequenceConstraint)
}
