package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// Repository manages persistence for club accounts and their transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindAccount(ctx context.Context, clubID string) (*models.ClubAccount, error)
	InsertAccount(ctx context.Context, account *models.ClubAccount) (bool, error)
	SwapAccount(ctx context.Context, account *models.ClubAccount, expectedVersion int64) (bool, error)
	ListClubIDs(ctx context.Context) ([]string, error)

	InsertTransaction(ctx context.Context, txn *models.ClubTransaction) error
	SaveTransaction(ctx context.Context, txn *models.ClubTransaction) error
	SetBalanceAfter(ctx context.Context, id uuid.UUID, balance int64) error
	DeleteTransaction(ctx context.Context, clubID string, id uuid.UUID) error
	FindTransaction(ctx context.Context, clubID string, id uuid.UUID) (*models.ClubTransaction, error)
	ListLedger(ctx context.Context, clubID string) ([]models.ClubTransaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]models.ClubTransaction, error)
	LastBefore(ctx context.Context, clubID string, at time.Time) (*models.ClubTransaction, error)
}

// ListFilter narrows a newest-first transaction listing.
type ListFilter struct {
	ClubID string
	Type   *enums.TransactionType
	From   *time.Time
	To     *time.Time
	Before *pagination.Cursor
	Limit  int
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindAccount returns nil when the club has never been written to.
func (r *repository) FindAccount(ctx context.Context, clubID string) (*models.ClubAccount, error) {
	var account models.ClubAccount
	err := r.db.WithContext(ctx).Where("club_id = ?", clubID).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// InsertAccount creates the first account row. It reports false when another
// writer created the row first.
func (r *repository) InsertAccount(ctx context.Context, account *models.ClubAccount) (bool, error) {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SwapAccount writes the account only if its version is still expectedVersion.
// It reports false when the row moved on since it was read.
func (r *repository) SwapAccount(ctx context.Context, account *models.ClubAccount, expectedVersion int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ClubAccount{}).
		Where("club_id = ? AND version = ?", account.ClubID, expectedVersion).
		Updates(map[string]any{
			"current_budget": account.CurrentBudget,
			"version":        account.Version,
			"last_sequence":  account.LastSequence,
			"last_entry_at":  account.LastEntryAt,
			"updated_at":     account.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListClubIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&models.ClubAccount{}).
		Order("club_id ASC").
		Pluck("club_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) InsertTransaction(ctx context.Context, txn *models.ClubTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// SaveTransaction persists the mutable columns of an edited entry.
func (r *repository) SaveTransaction(ctx context.Context, txn *models.ClubTransaction) error {
	return r.db.WithContext(ctx).
		Model(&models.ClubTransaction{}).
		Where("club_id = ? AND id = ?", txn.ClubID, txn.ID).
		Updates(map[string]any{
			"amount":            txn.Amount,
			"delta":             txn.Delta,
			"description":       txn.Description,
			"receipt_image_url": txn.ReceiptImageURL,
			"balance_after":     txn.BalanceAfter,
			"updated_at":        txn.UpdatedAt,
		}).Error
}

func (r *repository) SetBalanceAfter(ctx context.Context, id uuid.UUID, balance int64) error {
	return r.db.WithContext(ctx).
		Model(&models.ClubTransaction{}).
		Where("id = ?", id).
		Update("balance_after", balance).Error
}

func (r *repository) DeleteTransaction(ctx context.Context, clubID string, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("club_id = ? AND id = ?", clubID, id).
		Delete(&models.ClubTransaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindTransaction returns gorm.ErrRecordNotFound when the entry is absent from the club's ledger.
func (r *repository) FindTransaction(ctx context.Context, clubID string, id uuid.UUID) (*models.ClubTransaction, error) {
	var txn models.ClubTransaction
	if err := r.db.WithContext(ctx).
		Where("club_id = ? AND id = ?", clubID, id).
		Take(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListLedger returns every entry of the club in ledger order (oldest first).
func (r *repository) ListLedger(ctx context.Context, clubID string) ([]models.ClubTransaction, error) {
	var rows []models.ClubTransaction
	if err := r.db.WithContext(ctx).
		Where("club_id = ?", clubID).
		Order("created_at ASC").
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListTransactions(ctx context.Context, filter ListFilter) ([]models.ClubTransaction, error) {
	query := r.db.WithContext(ctx).Where("club_id = ?", filter.ClubID)
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at < ?", filter.To.UTC())
	}
	if c := filter.Before; c != nil {
		at := c.CreatedAt.UTC()
		query = query.Where("(created_at < ? OR (created_at = ? AND sequence < ?))", at, at, c.Sequence)
	}
	query = query.Order("created_at DESC").Order("sequence DESC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.ClubTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// LastBefore returns the newest entry created strictly before at, or nil.
func (r *repository) LastBefore(ctx context.Context, clubID string, at time.Time) (*models.ClubTransaction, error) {
	var txn models.ClubTransaction
	err := r.db.WithContext(ctx).
		Where("club_id = ? AND created_at < ?", clubID, at.UTC()).
		Order("created_at DESC").
		Order("sequence DESC").
		Take(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}
