package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// TransactionQuery combines the listing filters into one newest-first page request.
type TransactionQuery struct {
	ClubID string
	Type   *enums.TransactionType
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor string
}

// TransactionPage is one page of a newest-first listing.
type TransactionPage struct {
	Items      []models.ClubTransaction
	NextCursor string
}

func (s *service) QueryTransactions(ctx context.Context, q TransactionQuery) (*TransactionPage, error) {
	if q.Type != nil && !q.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", *q.Type))
	}
	if q.From != nil && q.To != nil {
		if err := validatePeriod(*q.From, *q.To); err != nil {
			return nil, err
		}
	}
	cursor, err := pagination.ParseCursor(q.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(q.Limit)
	rows, err := s.list(ctx, ListFilter{
		ClubID: strings.TrimSpace(q.ClubID),
		Type:   q.Type,
		From:   q.From,
		To:     q.To,
		Before: cursor,
		Limit:  pagination.LimitWithBuffer(limit),
	})
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, Sequence: last.Sequence})
	}
	return page, nil
}
