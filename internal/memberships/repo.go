package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Repository exposes club membership lookups. Memberships are owned by the
// club service; the ledger only reads them to authorise requests.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetMembership returns nil when the user does not belong to the club.
func (r *Repository) GetMembership(ctx context.Context, userID, clubID string) (*models.ClubMembership, error) {
	var membership models.ClubMembership
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND club_id = ?", userID, clubID).
		Take(&membership).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &membership, nil
}

// UpsertMembership records (or re-roles) a user's membership in a club.
func (r *Repository) UpsertMembership(ctx context.Context, clubID, userID string, role enums.ClubRole) (*models.ClubMembership, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid club role %q", role)
	}

	existing, err := r.GetMembership(ctx, userID, clubID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := r.db.WithContext(ctx).
			Model(existing).
			Update("role", role).Error; err != nil {
			return nil, err
		}
		existing.Role = role
		return existing, nil
	}

	membership := &models.ClubMembership{
		ID:     uuid.New(),
		ClubID: clubID,
		UserID: userID,
		Role:   role,
	}
	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// UserHasRole reports whether the user holds one of the provided roles for the club.
func (r *Repository) UserHasRole(ctx context.Context, userID, clubID string, roles ...enums.ClubRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ClubMembership{}).
		Where("user_id = ? AND club_id = ? AND role IN ?", userID, clubID, roles).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
