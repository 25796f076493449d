package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/migrate"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
)

const testClub = "club-1"

type testEnv struct {
	conn   *gorm.DB
	repo   Repository
	svc    Service
	clock  *stepClock
	reg    *prometheus.Registry
	params ServiceParams
}

// stepClock returns whole-second UTC instants, one second apart.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = t
}

func newTestEnv(t *testing.T, mutate func(*ServiceParams)) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.AutoMigrate(conn))

	env := &testEnv{
		conn:  conn,
		repo:  NewRepository(conn),
		clock: newStepClock(),
		reg:   prometheus.NewRegistry(),
	}
	params := ServiceParams{
		Repo:     env.repo,
		Tx:       db.Wrap(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics:  metrics.NewLedgerMetrics(env.reg),
		Policy:   Policy{MaxAttempts: 3, RetryBaseDelay: time.Millisecond, AllowOverdraft: true},
		Currency: "KRW",
		Clock:    env.clock.Now,
	}
	if mutate != nil {
		mutate(&params)
	}
	env.params = params
	env.svc, err = NewService(params)
	require.NoError(t, err)
	return env
}

// withPolicy builds a second service over the same store with a different policy.
func (e *testEnv) withPolicy(t *testing.T, policy Policy) Service {
	t.Helper()
	params := e.params
	params.Policy = policy
	params.Metrics = nil
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

func (e *testEnv) income(t *testing.T, amount int64, desc string) *models.ClubTransaction {
	t.Helper()
	txn, err := e.svc.AddIncome(context.Background(), e.entry(t, amount, desc))
	require.NoError(t, err)
	return txn
}

func (e *testEnv) expense(t *testing.T, amount int64, desc string) *models.ClubTransaction {
	t.Helper()
	txn, err := e.svc.AddExpense(context.Background(), e.entry(t, amount, desc))
	require.NoError(t, err)
	return txn
}

func (e *testEnv) adjust(t *testing.T, newBalance int64, desc string) *models.ClubTransaction {
	t.Helper()
	txn, err := e.svc.AdjustBalance(context.Background(), AdjustInput{
		ClubID:         testClub,
		NewBalance:     newBalance,
		Description:    desc,
		ActorID:        "user-1",
		ActorName:      "Kim Treasurer",
		CurrentBalance: e.balance(t),
	})
	require.NoError(t, err)
	return txn
}

func (e *testEnv) entry(t *testing.T, amount int64, desc string) EntryInput {
	t.Helper()
	return EntryInput{
		ClubID:         testClub,
		Amount:         amount,
		Description:    desc,
		ActorID:        "user-1",
		ActorName:      "Kim Treasurer",
		CurrentBalance: e.balance(t),
	}
}

func (e *testEnv) balance(t *testing.T) int64 {
	t.Helper()
	b, err := e.svc.GetCurrentBalance(context.Background(), testClub)
	require.NoError(t, err)
	return b
}

func (e *testEnv) ledger(t *testing.T) []models.ClubTransaction {
	t.Helper()
	rows, err := e.repo.ListLedger(context.Background(), testClub)
	require.NoError(t, err)
	return rows
}

func (e *testEnv) outboxCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.conn.Model(&models.OutboxEvent{}).Count(&n).Error)
	return n
}

// requireConsistent asserts the running-balance chain and the account balance.
func requireConsistent(t *testing.T, e *testEnv) {
	t.Helper()
	var running int64
	for i, row := range e.ledger(t) {
		running += row.Delta
		require.Equalf(t, running, row.BalanceAfter, "row %d (seq %d) balanceAfter", i, row.Sequence)
	}
	require.Equal(t, running, e.balance(t), "account balance")
}

// swapFailingRepo reports a version conflict for the first failures account swaps.
type swapFailingRepo struct {
	Repository
	mu       *sync.Mutex
	failures *int
}

func newSwapFailingRepo(inner Repository, failures int) *swapFailingRepo {
	return &swapFailingRepo{Repository: inner, mu: &sync.Mutex{}, failures: &failures}
}

func (r *swapFailingRepo) WithTx(tx *gorm.DB) Repository {
	return &swapFailingRepo{Repository: r.Repository.WithTx(tx), mu: r.mu, failures: r.failures}
}

func (r *swapFailingRepo) SwapAccount(ctx context.Context, account *models.ClubAccount, expected int64) (bool, error) {
	r.mu.Lock()
	if *r.failures != 0 {
		*r.failures--
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()
	return r.Repository.SwapAccount(ctx, account, expected)
}

// autocommitTx runs each statement on its own so a paused writer holds no connection.
type autocommitTx struct {
	conn *gorm.DB
}

func (a autocommitTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(a.conn.WithContext(ctx))
}

// pausingRepo stops the first in-transaction account read until resume is closed.
type pausingRepo struct {
	Repository
	inTx   bool
	mu     *sync.Mutex
	reads  *int
	read   chan struct{}
	resume chan struct{}
}

func newPausingRepo(inner Repository) *pausingRepo {
	return &pausingRepo{
		Repository: inner,
		mu:         &sync.Mutex{},
		reads:      new(int),
		read:       make(chan struct{}),
		resume:     make(chan struct{}),
	}
}

func (r *pausingRepo) WithTx(tx *gorm.DB) Repository {
	clone := *r
	clone.Repository = r.Repository.WithTx(tx)
	clone.inTx = true
	return &clone
}

func (r *pausingRepo) FindAccount(ctx context.Context, clubID string) (*models.ClubAccount, error) {
	account, err := r.Repository.FindAccount(ctx, clubID)
	if !r.inTx {
		return account, err
	}
	r.mu.Lock()
	*r.reads++
	first := *r.reads == 1
	r.mu.Unlock()
	if first {
		close(r.read)
		<-r.resume
	}
	return account, err
}

func (r *pausingRepo) accountReads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.reads
}

func dbTx(e *testEnv) txRunner {
	return db.Wrap(e.conn)
}

func counterValue(t *testing.T, e *testEnv, name, operation string) float64 {
	t.Helper()
	families, err := e.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "operation" && label.GetValue() == operation {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}
