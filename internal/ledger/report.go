package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/money"
)

// Summary aggregates the ledger over [From, To).
type Summary struct {
	ClubID         string           `json:"clubId"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
	Currency       string           `json:"currency"`
	OpeningBalance int64            `json:"openingBalance"`
	ClosingBalance int64            `json:"closingBalance"`
	TotalIncome    int64            `json:"totalIncome"`
	TotalExpense   int64            `json:"totalExpense"`
	NetAdjustments int64            `json:"netAdjustments"`
	NetChange      int64            `json:"netChange"`
	PercentChange  *decimal.Decimal `json:"percentChange,omitempty"`
	EntryCount     int              `json:"entryCount"`
	Display        SummaryDisplay   `json:"display"`
	Major          SummaryMajor     `json:"major"`
}

// SummaryMajor expresses the balances of a Summary in major currency units.
type SummaryMajor struct {
	OpeningBalance decimal.Decimal `json:"openingBalance"`
	ClosingBalance decimal.Decimal `json:"closingBalance"`
	NetChange      decimal.Decimal `json:"netChange"`
}

// SummaryDisplay carries the currency-formatted amounts of a Summary.
type SummaryDisplay struct {
	OpeningBalance string `json:"openingBalance"`
	ClosingBalance string `json:"closingBalance"`
	TotalIncome    string `json:"totalIncome"`
	TotalExpense   string `json:"totalExpense"`
	NetChange      string `json:"netChange"`
}

func (s *service) CalculateTotalIncome(ctx context.Context, clubID string) (int64, error) {
	return s.totalOf(ctx, clubID, enums.TransactionTypeIncome)
}

func (s *service) CalculateTotalExpense(ctx context.Context, clubID string) (int64, error) {
	return s.totalOf(ctx, clubID, enums.TransactionTypeExpense)
}

func (s *service) totalOf(ctx context.Context, clubID string, txType enums.TransactionType) (int64, error) {
	rows, err := s.GetTransactionsByType(ctx, clubID, txType)
	if err != nil {
		return 0, err
	}
	return sumAmounts(rows), nil
}

func (s *service) Summarize(ctx context.Context, clubID string, start, end time.Time) (*Summary, error) {
	clubID = strings.TrimSpace(clubID)
	rows, err := s.GetTransactionsByPeriod(ctx, clubID, start, end)
	if err != nil {
		return nil, err
	}
	previous, err := s.repo.LastBefore(ctx, clubID, start)
	if err != nil {
		return nil, storeError(err, "load opening balance")
	}

	summary := &Summary{
		ClubID:     clubID,
		From:       start.UTC(),
		To:         end.UTC(),
		Currency:   s.money.Currency(),
		EntryCount: len(rows),
	}
	if previous != nil {
		summary.OpeningBalance = previous.BalanceAfter
	}
	for _, row := range rows {
		switch row.Type {
		case enums.TransactionTypeIncome:
			summary.TotalIncome += row.Amount
		case enums.TransactionTypeExpense:
			summary.TotalExpense += row.Amount
		case enums.TransactionTypeAdjustment:
			summary.NetAdjustments += row.Delta
		}
		summary.NetChange += row.Delta
	}
	summary.ClosingBalance = summary.OpeningBalance + summary.NetChange
	summary.PercentChange = money.PercentChange(summary.OpeningBalance, summary.ClosingBalance)
	summary.Display = SummaryDisplay{
		OpeningBalance: s.money.Format(summary.OpeningBalance),
		ClosingBalance: s.money.Format(summary.ClosingBalance),
		TotalIncome:    s.money.Format(summary.TotalIncome),
		TotalExpense:   s.money.Format(summary.TotalExpense),
		NetChange:      s.money.Format(summary.NetChange),
	}
	summary.Major = SummaryMajor{
		OpeningBalance: s.money.Major(summary.OpeningBalance),
		ClosingBalance: s.money.Major(summary.ClosingBalance),
		NetChange:      s.money.Major(summary.NetChange),
	}
	return summary, nil
}

func sumAmounts(rows []models.ClubTransaction) int64 {
	var total int64
	for _, row := range rows {
		total += row.Amount
	}
	return total
}
