package middleware

import "context"

type contextKey string

const (
	ctxUserID   contextKey = "user_id"
	ctxUserName contextKey = "user_name"
	ctxClubID   contextKey = "club_id"
	ctxClubRole contextKey = "club_role"
)

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func UserNameFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserName)
}

func ClubIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxClubID)
}

// ClubRoleFromContext is the caller's membership role in the club of the request.
func ClubRoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxClubRole)
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withValue(ctx, ctxUserID, userID)
}

func WithUserName(ctx context.Context, name string) context.Context {
	return withValue(ctx, ctxUserName, name)
}

// WithClubID injects the club identifier for downstream handlers.
func WithClubID(ctx context.Context, clubID string) context.Context {
	return withValue(ctx, ctxClubID, clubID)
}

func WithClubRole(ctx context.Context, role string) context.Context {
	return withValue(ctx, ctxClubRole, role)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}
