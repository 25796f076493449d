package enums

import "fmt"

// ClubRole represents a club-level permissions role.
type ClubRole string

const (
	ClubRoleOwner     ClubRole = "owner"
	ClubRoleAdmin     ClubRole = "admin"
	ClubRoleTreasurer ClubRole = "treasurer"
	ClubRoleMember    ClubRole = "member"
)

var validClubRoles = []ClubRole{
	ClubRoleOwner,
	ClubRoleAdmin,
	ClubRoleTreasurer,
	ClubRoleMember,
}

// LedgerWriterRoles may record, edit, delete and reconcile ledger entries.
var LedgerWriterRoles = []ClubRole{ClubRoleOwner, ClubRoleAdmin, ClubRoleTreasurer}

// String implements fmt.Stringer.
func (r ClubRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ClubRole.
func (r ClubRole) IsValid() bool {
	for _, candidate := range validClubRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseClubRole converts raw input into a ClubRole.
func ParseClubRole(value string) (ClubRole, error) {
	for _, candidate := range validClubRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid club role %q", value)
}
