package enums

import (
	"fmt"
	"strings"
)

// TransactionType maps to the club_transaction_type enum in Postgres.
type TransactionType string

const (
	TransactionTypeIncome     TransactionType = "INCOME"
	TransactionTypeExpense    TransactionType = "EXPENSE"
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeIncome,
	TransactionTypeExpense,
	TransactionTypeAdjustment,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical transaction type enum.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// SignedDelta returns the balance change an amount of this type produces.
// Adjustments carry their own signed delta and return false.
func (t TransactionType) SignedDelta(amount int64) (int64, bool) {
	switch t {
	case TransactionTypeIncome:
		return amount, true
	case TransactionTypeExpense:
		return -amount, true
	}
	return 0, false
}

// ParseTransactionType converts raw input into TransactionType. Matching is case-insensitive.
func ParseTransactionType(value string) (TransactionType, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validTransactionTypes {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
