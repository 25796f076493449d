package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// ClubMembership links a user with a club and captures their role.
type ClubMembership struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	ClubID    string         `gorm:"column:club_id;type:text;not null;uniqueIndex:ux_club_memberships_club_user,priority:1"`
	UserID    string         `gorm:"column:user_id;type:text;not null;uniqueIndex:ux_club_memberships_club_user,priority:2"`
	Role      enums.ClubRole `gorm:"column:role;type:club_role;not null"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (ClubMembership) TableName() string { return "club_memberships" }
