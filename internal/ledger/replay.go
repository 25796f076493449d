package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
)

type replayedRow struct {
	ID       uuid.UUID
	Sequence int64
	Stored   int64
	Expected int64
}

// replayResult is the running balance of a ledger recomputed from zero.
type replayResult struct {
	balance int64
	rows    []replayedRow
	index   map[uuid.UUID]int
}

// replay folds delta over rows, which must be in ledger order.
func replay(rows []models.ClubTransaction) replayResult {
	result := replayResult{
		rows:  make([]replayedRow, 0, len(rows)),
		index: make(map[uuid.UUID]int, len(rows)),
	}
	var running int64
	for _, row := range rows {
		running += row.Delta
		result.index[row.ID] = len(result.rows)
		result.rows = append(result.rows, replayedRow{
			ID:       row.ID,
			Sequence: row.Sequence,
			Stored:   row.BalanceAfter,
			Expected: running,
		})
	}
	result.balance = running
	return result
}

func (r replayResult) balanceOf(id uuid.UUID) int64 {
	if i, ok := r.index[id]; ok {
		return r.rows[i].Expected
	}
	return 0
}

// overdraws reports whether the replay takes the account or any entry below
// zero at a point where it now sits lower than before.
func (r replayResult) overdraws(previousBalance int64) bool {
	if r.balance < 0 && r.balance < previousBalance {
		return true
	}
	for _, row := range r.rows {
		if row.Expected < 0 && row.Expected < row.Stored {
			return true
		}
	}
	return false
}

func (r replayResult) drifted() []replayedRow {
	var out []replayedRow
	for _, row := range r.rows {
		if row.Stored != row.Expected {
			out = append(out, row)
		}
	}
	return out
}

// rewriteBalances stores the replayed balanceAfter of every drifted row except skip.
func rewriteBalances(ctx context.Context, repo Repository, result replayResult, skip uuid.UUID) (int, error) {
	count := 0
	for _, row := range result.drifted() {
		if row.ID == skip {
			continue
		}
		if err := repo.SetBalanceAfter(ctx, row.ID, row.Expected); err != nil {
			return count, storeError(err, "rewrite balance after")
		}
		count++
	}
	return count, nil
}
