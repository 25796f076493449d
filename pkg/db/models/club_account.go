package models

import "time"

// ClubAccount is the per-club running balance plus the optimistic-concurrency
// version every ledger write must advance.
type ClubAccount struct {
	ClubID        string     `gorm:"column:club_id;type:text;primaryKey"`
	CurrentBudget int64      `gorm:"column:current_budget;not null;default:0"`
	Version       int64      `gorm:"column:version;not null;default:0"`
	LastSequence  int64      `gorm:"column:last_sequence;not null;default:0"`
	LastEntryAt   *time.Time `gorm:"column:last_entry_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (ClubAccount) TableName() string { return "club_accounts" }
