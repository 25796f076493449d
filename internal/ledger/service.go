package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/metrics"
	"github.com/angelmondragon/clubledger-backend/pkg/money"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service records club ledger entries and keeps the account balance in step with them.
type Service interface {
	AddTransaction(ctx context.Context, input AddTransactionInput) (*models.ClubTransaction, error)
	AddIncome(ctx context.Context, input EntryInput) (*models.ClubTransaction, error)
	AddExpense(ctx context.Context, input EntryInput) (*models.ClubTransaction, error)
	AdjustBalance(ctx context.Context, input AdjustInput) (*models.ClubTransaction, error)
	UpdateTransaction(ctx context.Context, input UpdateTransactionInput) (*models.ClubTransaction, error)
	DeleteTransaction(ctx context.Context, input DeleteTransactionInput) (int64, error)
	Reconcile(ctx context.Context, clubID string, repair bool) (*ReconcileReport, error)

	GetTransactions(ctx context.Context, clubID string) ([]models.ClubTransaction, error)
	GetTransactionsByPeriod(ctx context.Context, clubID string, start, end time.Time) ([]models.ClubTransaction, error)
	GetTransactionsByType(ctx context.Context, clubID string, txType enums.TransactionType) ([]models.ClubTransaction, error)
	GetRecentTransactions(ctx context.Context, clubID string, limit int) ([]models.ClubTransaction, error)
	GetTransaction(ctx context.Context, clubID string, id uuid.UUID) (*models.ClubTransaction, error)
	QueryTransactions(ctx context.Context, q TransactionQuery) (*TransactionPage, error)
	GetCurrentBalance(ctx context.Context, clubID string) (int64, error)
	ListClubIDs(ctx context.Context) ([]string, error)

	CalculateTotalIncome(ctx context.Context, clubID string) (int64, error)
	CalculateTotalExpense(ctx context.Context, clubID string) (int64, error)
	Summarize(ctx context.Context, clubID string, start, end time.Time) (*Summary, error)
}

// Policy tunes conflict retries and the overdraft rule.
type Policy struct {
	MaxAttempts    int
	RetryBaseDelay time.Duration
	AllowOverdraft bool
}

const (
	defaultMaxAttempts    = 5
	defaultRetryBaseDelay = 20 * time.Millisecond
)

// ServiceParams wires the ledger service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxEmitter
	Metrics  *metrics.LedgerMetrics
	Logger   *logger.Logger
	Policy   Policy
	Currency string
	Clock    func() time.Time
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxEmitter
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	policy  Policy
	money   *money.Formatter
	now     func() time.Time
}

// NewService wires a ledger service. Repo, Tx and Outbox are required.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	formatter, err := money.NewFormatter(params.Currency)
	if err != nil {
		return nil, err
	}

	policy := params.Policy
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.RetryBaseDelay <= 0 {
		policy.RetryBaseDelay = defaultRetryBaseDelay
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}

	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    logg,
		policy:  policy,
		money:   formatter,
		now:     func() time.Time { return clock().UTC() },
	}, nil
}

// TransactionDraft is a new entry before the ledger assigns its id, sequence,
// createdAt and balanceAfter.
type TransactionDraft struct {
	ClubID          string
	Type            enums.TransactionType
	Amount          int64
	Description     string
	ReceiptImageURL *string
	ActorID         string
	ActorName       string
	ActorRole       string
}

// AddTransactionInput pairs a draft with the balance the caller expects after it.
// For income and expenses the expectation is checked, not trusted; for
// adjustments it is the target balance.
type AddTransactionInput struct {
	Transaction        TransactionDraft
	ProposedNewBalance int64
}

// EntryInput records income or an expense.
type EntryInput struct {
	ClubID          string
	Amount          int64
	Description     string
	ReceiptImageURL *string
	ActorID         string
	ActorName       string
	ActorRole       string
	CurrentBalance  int64
}

// AdjustInput moves the balance to NewBalance.
type AdjustInput struct {
	ClubID         string
	NewBalance     int64
	Description    string
	ActorID        string
	ActorName      string
	ActorRole      string
	CurrentBalance int64
}

// UpdateTransactionInput edits an existing entry. Nil fields are left unchanged.
type UpdateTransactionInput struct {
	ClubID          string
	TransactionID   uuid.UUID
	Type            *enums.TransactionType
	Amount          *int64
	Description     *string
	ReceiptImageURL *string
	NewBalance      *int64
	ActorID         string
	ActorName       string
	ActorRole       string
}

// DeleteTransactionInput removes an entry. NewBalance is the caller's expectation.
type DeleteTransactionInput struct {
	ClubID        string
	TransactionID uuid.UUID
	NewBalance    *int64
	ActorID       string
	ActorName     string
	ActorRole     string
}

func (s *service) AddIncome(ctx context.Context, input EntryInput) (*models.ClubTransaction, error) {
	return s.addEntry(ctx, enums.TransactionTypeIncome, input)
}

func (s *service) AddExpense(ctx context.Context, input EntryInput) (*models.ClubTransaction, error) {
	return s.addEntry(ctx, enums.TransactionTypeExpense, input)
}

func (s *service) addEntry(ctx context.Context, txType enums.TransactionType, input EntryInput) (*models.ClubTransaction, error) {
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a positive integer")
	}
	delta, _ := txType.SignedDelta(input.Amount)
	return s.AddTransaction(ctx, AddTransactionInput{
		Transaction: TransactionDraft{
			ClubID:          input.ClubID,
			Type:            txType,
			Amount:          input.Amount,
			Description:     input.Description,
			ReceiptImageURL: input.ReceiptImageURL,
			ActorID:         input.ActorID,
			ActorName:       input.ActorName,
			ActorRole:       input.ActorRole,
		},
		ProposedNewBalance: input.CurrentBalance + delta,
	})
}

func (s *service) AdjustBalance(ctx context.Context, input AdjustInput) (*models.ClubTransaction, error) {
	return s.AddTransaction(ctx, AddTransactionInput{
		Transaction: TransactionDraft{
			ClubID:      input.ClubID,
			Type:        enums.TransactionTypeAdjustment,
			Amount:      abs(input.NewBalance - input.CurrentBalance),
			Description: input.Description,
			ActorID:     input.ActorID,
			ActorName:   input.ActorName,
			ActorRole:   input.ActorRole,
		},
		ProposedNewBalance: input.NewBalance,
	})
}

func (s *service) AddTransaction(ctx context.Context, input AddTransactionInput) (*models.ClubTransaction, error) {
	draft := input.Transaction
	draft.ClubID = strings.TrimSpace(draft.ClubID)
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	ctx = s.logg.WithClubID(ctx, draft.ClubID)
	op := opAdd(draft.Type)

	var created *models.ClubTransaction
	err := s.commit(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		account, err := repo.FindAccount(ctx, draft.ClubID)
		if err != nil {
			return storeError(err, "load club account")
		}
		state := stateOf(draft.ClubID, account)

		delta, ok := draft.Type.SignedDelta(draft.Amount)
		if !ok {
			delta = input.ProposedNewBalance - state.balance
		}
		balanceAfter := state.balance + delta
		if balanceAfter != input.ProposedNewBalance {
			s.warnStale(ctx, op, input.ProposedNewBalance, balanceAfter)
		}
		if balanceAfter < 0 && delta < 0 && !s.policy.AllowOverdraft {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "entry would overdraw the club balance").
				WithDetails(map[string]any{"currentBalance": state.balance, "balanceAfter": balanceAfter})
		}

		now := s.now()
		createdAt := now
		if state.lastEntryAt != nil && createdAt.Before(*state.lastEntryAt) {
			createdAt = *state.lastEntryAt
		}
		row := &models.ClubTransaction{
			ID:              uuid.New(),
			ClubID:          draft.ClubID,
			Sequence:        state.lastSequence + 1,
			Type:            draft.Type,
			Amount:          abs(delta),
			Delta:           delta,
			Description:     draft.Description,
			ReceiptImageURL: draft.ReceiptImageURL,
			CreatedBy:       draft.ActorID,
			CreatedByName:   draft.ActorName,
			BalanceAfter:    balanceAfter,
			CreatedAt:       createdAt,
			UpdatedAt:       now,
		}

		next := state.next(balanceAfter, now)
		next.LastSequence = row.Sequence
		next.LastEntryAt = &row.CreatedAt
		if err := s.advance(ctx, repo, state, next); err != nil {
			return err
		}
		if err := repo.InsertTransaction(ctx, row); err != nil {
			if isSequenceClash(err) {
				return errVersionConflict
			}
			return storeError(err, "insert club transaction")
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClubTransactionRecorded,
			AggregateType: enums.AggregateClubAccount,
			AggregateID:   draft.ClubID,
			Actor:         actorRef(draft.ActorID, draft.ActorName, draft.ActorRole),
			Data:          recordedPayload(row, next),
		}); err != nil {
			return storeError(err, "queue ledger event")
		}

		created = row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logCommitted(ctx, op, created.ID, created.BalanceAfter)
	return created, nil
}

func (s *service) UpdateTransaction(ctx context.Context, input UpdateTransactionInput) (*models.ClubTransaction, error) {
	input.ClubID = strings.TrimSpace(input.ClubID)
	if err := validateUpdate(input); err != nil {
		return nil, err
	}
	ctx = s.logg.WithClubID(ctx, input.ClubID)
	const op = "update"

	var updated *models.ClubTransaction
	err := s.commit(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		state, target, err := s.loadForMutation(ctx, repo, input.ClubID, input.TransactionID)
		if err != nil {
			return err
		}
		if input.Type != nil && *input.Type != target.Type {
			return pkgerrors.New(pkgerrors.CodeValidation, "transaction type cannot be changed")
		}

		previousAmount := target.Amount
		edited := *target
		if input.Amount != nil {
			if err := validateAmount(target.Type, *input.Amount); err != nil {
				return err
			}
			edited.Amount = *input.Amount
			edited.Delta = deltaFor(target.Type, target.Delta, *input.Amount)
		}
		if input.Description != nil {
			edited.Description = *input.Description
		}
		if input.ReceiptImageURL != nil {
			if url := strings.TrimSpace(*input.ReceiptImageURL); url != "" {
				edited.ReceiptImageURL = &url
			} else {
				edited.ReceiptImageURL = nil
			}
		}
		edited.UpdatedAt = s.now()

		rows, err := repo.ListLedger(ctx, input.ClubID)
		if err != nil {
			return storeError(err, "load club ledger")
		}
		for i := range rows {
			if rows[i].ID == edited.ID {
				rows[i] = edited
			}
		}
		result := replay(rows)
		if !s.policy.AllowOverdraft && result.overdraws(state.balance) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "edit would overdraw the club balance").
				WithDetails(map[string]any{"currentBalance": state.balance, "balanceAfter": result.balance})
		}

		next := state.next(result.balance, edited.UpdatedAt)
		if err := s.advance(ctx, repo, state, next); err != nil {
			return err
		}

		edited.BalanceAfter = result.balanceOf(edited.ID)
		if err := repo.SaveTransaction(ctx, &edited); err != nil {
			return storeError(err, "update club transaction")
		}
		rewritten, err := rewriteBalances(ctx, repo, result, edited.ID)
		if err != nil {
			return err
		}

		if input.NewBalance != nil && *input.NewBalance != result.balance {
			s.warnStale(ctx, op, *input.NewBalance, result.balance)
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClubTransactionUpdated,
			AggregateType: enums.AggregateClubAccount,
			AggregateID:   input.ClubID,
			Actor:         actorRef(input.ActorID, input.ActorName, input.ActorRole),
			Data:          updatedPayload(&edited, previousAmount, rewritten, next),
		}); err != nil {
			return storeError(err, "queue ledger event")
		}

		updated = &edited
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logCommitted(ctx, op, updated.ID, updated.BalanceAfter)
	return updated, nil
}

// DeleteTransaction returns the account balance committed with the removal.
func (s *service) DeleteTransaction(ctx context.Context, input DeleteTransactionInput) (int64, error) {
	input.ClubID = strings.TrimSpace(input.ClubID)
	if input.ClubID == "" {
		return 0, errClubIDRequired
	}
	if input.TransactionID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	ctx = s.logg.WithClubID(ctx, input.ClubID)
	const op = "delete"

	var balance int64
	err := s.commit(ctx, op, func(ctx context.Context, tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		state, target, err := s.loadForMutation(ctx, repo, input.ClubID, input.TransactionID)
		if err != nil {
			return err
		}

		rows, err := repo.ListLedger(ctx, input.ClubID)
		if err != nil {
			return storeError(err, "load club ledger")
		}
		remaining := rows[:0]
		for _, row := range rows {
			if row.ID != target.ID {
				remaining = append(remaining, row)
			}
		}
		result := replay(remaining)
		if !s.policy.AllowOverdraft && result.overdraws(state.balance) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delete would overdraw the club balance").
				WithDetails(map[string]any{"currentBalance": state.balance, "balanceAfter": result.balance})
		}

		next := state.next(result.balance, s.now())
		if err := s.advance(ctx, repo, state, next); err != nil {
			return err
		}
		if err := repo.DeleteTransaction(ctx, input.ClubID, target.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errVersionConflict
			}
			return storeError(err, "delete club transaction")
		}
		rewritten, err := rewriteBalances(ctx, repo, result, uuid.Nil)
		if err != nil {
			return err
		}

		if input.NewBalance != nil && *input.NewBalance != result.balance {
			s.warnStale(ctx, op, *input.NewBalance, result.balance)
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventClubTransactionDeleted,
			AggregateType: enums.AggregateClubAccount,
			AggregateID:   input.ClubID,
			Actor:         actorRef(input.ActorID, input.ActorName, input.ActorRole),
			Data:          deletedPayload(target, rewritten, next),
		}); err != nil {
			return storeError(err, "queue ledger event")
		}

		balance = result.balance
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logCommitted(ctx, op, input.TransactionID, balance)
	return balance, nil
}

// loadForMutation reads the account and the entry being edited or removed.
func (s *service) loadForMutation(ctx context.Context, repo Repository, clubID string, id uuid.UUID) (accountState, *models.ClubTransaction, error) {
	account, err := repo.FindAccount(ctx, clubID)
	if err != nil {
		return accountState{}, nil, storeError(err, "load club account")
	}
	target, err := repo.FindTransaction(ctx, clubID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return accountState{}, nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return accountState{}, nil, storeError(err, "load club transaction")
	}
	return stateOf(clubID, account), target, nil
}

// advance writes next over the account state read earlier in this attempt.
func (s *service) advance(ctx context.Context, repo Repository, state accountState, next *models.ClubAccount) error {
	var (
		ok  bool
		err error
	)
	if state.exists {
		ok, err = repo.SwapAccount(ctx, next, state.version)
	} else {
		ok, err = repo.InsertAccount(ctx, next)
	}
	if err != nil {
		return storeError(err, "write club account")
	}
	if !ok {
		return errVersionConflict
	}
	return nil
}

func (s *service) GetTransactions(ctx context.Context, clubID string) ([]models.ClubTransaction, error) {
	return s.list(ctx, ListFilter{ClubID: clubID})
}

// GetTransactionsByPeriod returns entries with start <= createdAt < end, newest first.
func (s *service) GetTransactionsByPeriod(ctx context.Context, clubID string, start, end time.Time) ([]models.ClubTransaction, error) {
	if err := validatePeriod(start, end); err != nil {
		return nil, err
	}
	return s.list(ctx, ListFilter{ClubID: clubID, From: &start, To: &end})
}

func (s *service) GetTransactionsByType(ctx context.Context, clubID string, txType enums.TransactionType) ([]models.ClubTransaction, error) {
	if !txType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", txType))
	}
	return s.list(ctx, ListFilter{ClubID: clubID, Type: &txType})
}

func (s *service) GetRecentTransactions(ctx context.Context, clubID string, limit int) ([]models.ClubTransaction, error) {
	return s.list(ctx, ListFilter{ClubID: clubID, Limit: pagination.NormalizeLimit(limit)})
}

func (s *service) list(ctx context.Context, filter ListFilter) ([]models.ClubTransaction, error) {
	filter.ClubID = strings.TrimSpace(filter.ClubID)
	if filter.ClubID == "" {
		return nil, errClubIDRequired
	}
	rows, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, storeError(err, "list club transactions")
	}
	return rows, nil
}

func (s *service) GetTransaction(ctx context.Context, clubID string, id uuid.UUID) (*models.ClubTransaction, error) {
	clubID = strings.TrimSpace(clubID)
	if clubID == "" {
		return nil, errClubIDRequired
	}
	txn, err := s.repo.FindTransaction(ctx, clubID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, storeError(err, "load club transaction")
	}
	return txn, nil
}

// GetCurrentBalance returns 0 for clubs that have no ledger yet.
func (s *service) GetCurrentBalance(ctx context.Context, clubID string) (int64, error) {
	clubID = strings.TrimSpace(clubID)
	if clubID == "" {
		return 0, errClubIDRequired
	}
	account, err := s.repo.FindAccount(ctx, clubID)
	if err != nil {
		return 0, storeError(err, "load club account")
	}
	if account == nil {
		return 0, nil
	}
	return account.CurrentBudget, nil
}

func (s *service) ListClubIDs(ctx context.Context) ([]string, error) {
	ids, err := s.repo.ListClubIDs(ctx)
	if err != nil {
		return nil, storeError(err, "list club accounts")
	}
	return ids, nil
}

func (s *service) warnStale(ctx context.Context, op string, expected, actual int64) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation":        op,
		"expected_balance": expected,
		"balance":          actual,
	})
	s.logg.Warn(logCtx, "ledger.stale_balance")
}

func (s *service) logCommitted(ctx context.Context, op string, id uuid.UUID, balance int64) {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation":      op,
		"transaction_id": id.String(),
		"balance":        balance,
	})
	s.logg.Info(logCtx, "ledger.committed")
}

func opAdd(t enums.TransactionType) string {
	switch t {
	case enums.TransactionTypeIncome:
		return "add_income"
	case enums.TransactionTypeExpense:
		return "add_expense"
	}
	return "adjust"
}

func actorRef(id, name, role string) *outbox.ActorRef {
	if id == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: id, Name: name, Role: role}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
