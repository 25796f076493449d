package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
)

const clubIDParam = "clubId"

type MembershipChecker interface {
	GetMembership(ctx context.Context, userID, clubID string) (*models.ClubMembership, error)
}

// ClubMember resolves {clubId} and rejects callers without a membership in that club.
// The caller's role is placed on the context for RequireClubRoles.
func ClubMember(checker MembershipChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if checker == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership checker unavailable"))
				return
			}

			userID := UserIDFromContext(ctx)
			if userID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
				return
			}

			clubID := strings.TrimSpace(chi.URLParam(r, clubIDParam))
			if clubID == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "club id is required"))
				return
			}

			membership, err := checker.GetMembership(ctx, userID, clubID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check club membership"))
				return
			}
			if membership == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "not a member of this club"))
				return
			}

			ctx = WithClubID(ctx, clubID)
			ctx = WithClubRole(ctx, membership.Role.String())
			if logg != nil {
				ctx = logg.WithClubID(ctx, clubID)
				ctx = logg.WithActorRole(ctx, membership.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireClubRoles filters requests by the membership role ClubMember resolved.
func RequireClubRoles(logg *logger.Logger, allowed ...enums.ClubRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if len(allowed) == 0 {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "allowed roles missing"))
				return
			}
			role := enums.ClubRole(ClubRoleFromContext(ctx))
			for _, candidate := range allowed {
				if candidate == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient club role"))
		})
	}
}
