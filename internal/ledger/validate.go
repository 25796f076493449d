package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

var errClubIDRequired = pkgerrors.New(pkgerrors.CodeValidation, "club id is required")

func validateDraft(draft TransactionDraft) error {
	if draft.ClubID == "" {
		return errClubIDRequired
	}
	if !draft.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", draft.Type))
	}
	if err := validateAmount(draft.Type, draft.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(draft.ActorID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	return nil
}

// validateAmount requires a positive amount for income and expenses; adjustments may be zero.
func validateAmount(t enums.TransactionType, amount int64) error {
	if t == enums.TransactionTypeAdjustment {
		if amount < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
		}
		return nil
	}
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive integer")
	}
	return nil
}

func validateUpdate(input UpdateTransactionInput) error {
	if input.ClubID == "" {
		return errClubIDRequired
	}
	if input.TransactionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	if input.Amount == nil && input.Description == nil && input.ReceiptImageURL == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	return nil
}

func validatePeriod(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "period start and end are required")
	}
	if !start.Before(end) {
		return pkgerrors.New(pkgerrors.CodeValidation, "period start must be before end")
	}
	return nil
}

// deltaFor keeps the direction of the stored delta while taking the new magnitude.
// A zero adjustment that gains an amount is treated as an increase.
func deltaFor(t enums.TransactionType, current, amount int64) int64 {
	if d, ok := t.SignedDelta(amount); ok {
		return d
	}
	if current < 0 {
		return -amount
	}
	return amount
}
