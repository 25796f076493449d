package memberships

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := conn.AutoMigrate(&models.ClubMembership{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestRepositoryMembershipFlow(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	missing, err := repo.GetMembership(ctx, "user-1", "club-1")
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected no membership, got %+v", missing)
	}

	created, err := repo.UpsertMembership(ctx, "club-1", "user-1", enums.ClubRoleMember)
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}

	ok, err := repo.UserHasRole(ctx, "user-1", "club-1", enums.LedgerWriterRoles...)
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if ok {
		t.Fatal("plain members must not hold a writer role")
	}

	promoted, err := repo.UpsertMembership(ctx, "club-1", "user-1", enums.ClubRoleTreasurer)
	if err != nil {
		t.Fatalf("promote membership: %v", err)
	}
	if promoted.ID != created.ID {
		t.Fatalf("upsert should keep the membership id")
	}

	ok, err = repo.UserHasRole(ctx, "user-1", "club-1", enums.LedgerWriterRoles...)
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if !ok {
		t.Fatal("treasurer should hold a writer role")
	}

	other, err := repo.UserHasRole(ctx, "user-1", "club-2", enums.LedgerWriterRoles...)
	if err != nil {
		t.Fatalf("has role: %v", err)
	}
	if other {
		t.Fatal("roles must not leak across clubs")
	}

	got, err := repo.GetMembership(ctx, "user-1", "club-1")
	if err != nil || got == nil || got.Role != enums.ClubRoleTreasurer {
		t.Fatalf("unexpected membership %+v err %v", got, err)
	}

	if _, err := repo.UpsertMembership(ctx, "club-1", "user-2", "president"); err == nil {
		t.Fatal("expected invalid role error")
	}
	if ok, _ := repo.UserHasRole(ctx, "user-1", "club-1"); ok {
		t.Fatal("no roles requested should be false")
	}
}
