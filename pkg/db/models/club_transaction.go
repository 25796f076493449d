package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// ClubTransaction is one ledger entry. Delta is the signed balance change the
// entry contributes; BalanceAfter is the running balance once it is applied.
type ClubTransaction struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ClubID          string                `gorm:"column:club_id;type:text;not null;uniqueIndex:ux_club_transactions_club_sequence,priority:1"`
	Sequence        int64                 `gorm:"column:sequence;not null;uniqueIndex:ux_club_transactions_club_sequence,priority:2"`
	Type            enums.TransactionType `gorm:"column:type;type:club_transaction_type;not null"`
	Amount          int64                 `gorm:"column:amount;not null"`
	Delta           int64                 `gorm:"column:delta;not null"`
	Description     string                `gorm:"column:description;not null"`
	ReceiptImageURL *string               `gorm:"column:receipt_image_url"`
	CreatedBy       string                `gorm:"column:created_by;type:text;not null"`
	CreatedByName   string                `gorm:"column:created_by_name;not null"`
	BalanceAfter    int64                 `gorm:"column:balance_after;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (ClubTransaction) TableName() string { return "club_transactions" }
