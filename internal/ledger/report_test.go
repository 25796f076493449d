package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
)

func TestQueries(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.clock.Set(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	jan := env.income(t, 100000, "january dues")
	env.clock.Set(time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC))
	feb := env.expense(t, 30000, "february hall")
	env.clock.Set(time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC))
	febIncome := env.income(t, 50000, "february dues")
	env.clock.Set(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	env.adjust(t, 100000, "count")

	all, err := env.svc.GetTransactions(ctx, testClub)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, jan.ID, all[3].ID, "newest first")

	period, err := env.svc.GetTransactionsByPeriod(ctx, testClub,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, period, 2, "end is exclusive")
	assert.Equal(t, febIncome.ID, period[0].ID)
	assert.Equal(t, feb.ID, period[1].ID)

	_, err = env.svc.GetTransactionsByPeriod(ctx, testClub, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	incomes, err := env.svc.GetTransactionsByType(ctx, testClub, enums.TransactionTypeIncome)
	require.NoError(t, err)
	assert.Len(t, incomes, 2)
	_, err = env.svc.GetTransactionsByType(ctx, testClub, "REFUND")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	recent, err := env.svc.GetRecentTransactions(ctx, testClub, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	recent, err = env.svc.GetRecentTransactions(ctx, testClub, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 4)

	got, err := env.svc.GetTransaction(ctx, testClub, feb.ID)
	require.NoError(t, err)
	assert.Equal(t, "february hall", got.Description)

	_, err = env.svc.GetTransactions(ctx, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetCurrentBalanceForUnknownClub(t *testing.T) {
	env := newTestEnv(t, nil)
	balance, err := env.svc.GetCurrentBalance(context.Background(), "no-such-club")
	require.NoError(t, err)
	assert.Zero(t, balance)

	rows, err := env.svc.GetTransactions(context.Background(), "no-such-club")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTotalsAndSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.clock.Set(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	env.adjust(t, 1000000, "opening balance")
	env.clock.Set(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	env.income(t, 500000, "membership fee")
	env.expense(t, 200000, "printing")
	env.adjust(t, 1000000, "correction")
	env.clock.Set(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	env.expense(t, 1, "after period")

	income, err := env.svc.CalculateTotalIncome(ctx, testClub)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), income)
	expense, err := env.svc.CalculateTotalExpense(ctx, testClub)
	require.NoError(t, err)
	assert.Equal(t, int64(200001), expense)

	summary, err := env.svc.Summarize(ctx, testClub,
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "KRW", summary.Currency)
	assert.Equal(t, int64(1000000), summary.OpeningBalance)
	assert.Equal(t, int64(1000000), summary.ClosingBalance)
	assert.Equal(t, int64(500000), summary.TotalIncome)
	assert.Equal(t, int64(200000), summary.TotalExpense)
	assert.Equal(t, int64(-300000), summary.NetAdjustments)
	assert.Equal(t, int64(0), summary.NetChange)
	assert.Equal(t, 3, summary.EntryCount)
	require.NotNil(t, summary.PercentChange)
	assert.True(t, summary.PercentChange.IsZero())
	assert.Equal(t, "₩500,000", summary.Display.TotalIncome)
	assert.Equal(t, "₩1,000,000", summary.Display.ClosingBalance)
	assert.Equal(t, "1000000", summary.Major.ClosingBalance.String())

	empty, err := env.svc.Summarize(ctx, testClub,
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, empty.OpeningBalance)
	assert.Nil(t, empty.PercentChange)
}

func TestSummaryInMajorUnits(t *testing.T) {
	env := newTestEnv(t, func(p *ServiceParams) { p.Currency = "usd" })
	ctx := context.Background()

	env.clock.Set(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	env.income(t, 10000, "dues")
	env.clock.Set(time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC))
	env.expense(t, 2566, "pizza")

	summary, err := env.svc.Summarize(ctx, testClub,
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "USD", summary.Currency)
	assert.Equal(t, "100", summary.Major.OpeningBalance.String())
	assert.Equal(t, "74.34", summary.Major.ClosingBalance.String())
	assert.Equal(t, "-25.66", summary.Major.NetChange.String())
	assert.Equal(t, "$74.34", summary.Display.ClosingBalance)
}

func TestReconcileDetectsAndRepairsDrift(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	env.income(t, 1000, "a")
	second := env.expense(t, 200, "b")
	env.income(t, 50, "c")

	clean, err := env.svc.Reconcile(ctx, testClub, true)
	require.NoError(t, err)
	assert.True(t, clean.Consistent())
	assert.False(t, clean.Repaired)
	eventsBefore := env.outboxCount(t)

	require.NoError(t, env.conn.Exec("UPDATE club_transactions SET balance_after = ? WHERE id = ?", 999, second.ID).Error)
	require.NoError(t, env.conn.Exec("UPDATE club_accounts SET current_budget = ? WHERE club_id = ?", 1, testClub).Error)

	report, err := env.svc.Reconcile(ctx, testClub, false)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	require.Len(t, report.Drifted, 1)
	assert.Equal(t, second.ID, report.Drifted[0].TransactionID)
	assert.Equal(t, int64(800), report.Drifted[0].Expected)
	assert.Equal(t, int64(1), report.StoredBalance)
	assert.Equal(t, int64(850), report.ExpectedBalance)
	assert.Equal(t, 2, report.DriftCount())
	assert.Equal(t, int64(1), env.balance(t), "dry run writes nothing")

	repaired, err := env.svc.Reconcile(ctx, testClub, true)
	require.NoError(t, err)
	assert.True(t, repaired.Repaired)
	assert.Equal(t, int64(850), env.balance(t))
	requireConsistent(t, env)
	assert.Equal(t, eventsBefore+1, env.outboxCount(t))

	_, err = env.svc.Reconcile(ctx, " ", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReplay(t *testing.T) {
	result := replay(nil)
	assert.Zero(t, result.balance)
	assert.Empty(t, result.drifted())
}

func TestQueryTransactionsPages(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		env.income(t, int64(i)*1000, "dues")
	}
	env.expense(t, 500, "cups")

	income := enums.TransactionTypeIncome
	first, err := env.svc.QueryTransactions(ctx, TransactionQuery{ClubID: testClub, Type: &income, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, int64(5000), first.Items[0].Amount)
	require.NotEmpty(t, first.NextCursor)

	second, err := env.svc.QueryTransactions(ctx, TransactionQuery{ClubID: testClub, Type: &income, Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, int64(3000), second.Items[0].Amount)

	last, err := env.svc.QueryTransactions(ctx, TransactionQuery{ClubID: testClub, Type: &income, Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Empty(t, last.NextCursor)

	_, err = env.svc.QueryTransactions(ctx, TransactionQuery{ClubID: testClub, Cursor: "%%%"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	bad := enums.TransactionType("REFUND")
	_, err = env.svc.QueryTransactions(ctx, TransactionQuery{ClubID: testClub, Type: &bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
