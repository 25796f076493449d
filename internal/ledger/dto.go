package ledger

import (
	"time"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
)

// TransactionDTO is the wire shape of a ledger entry.
type TransactionDTO struct {
	ID              string    `json:"id"`
	ClubID          string    `json:"clubId"`
	Sequence        int64     `json:"sequence"`
	Type            string    `json:"type"`
	Amount          int64     `json:"amount"`
	Delta           int64     `json:"delta"`
	Description     string    `json:"description"`
	ReceiptImageURL *string   `json:"receiptImageUrl"`
	CreatedBy       string    `json:"createdBy"`
	CreatedByName   string    `json:"createdByName"`
	CreatedAt       time.Time `json:"createdAt"`
	BalanceAfter    int64     `json:"balanceAfter"`
}

// BalanceDTO reports the current club balance.
type BalanceDTO struct {
	ClubID         string `json:"clubId"`
	CurrentBalance int64  `json:"currentBalance"`
}

// TotalsDTO pairs the all-time totals with a period summary.
type TotalsDTO struct {
	TotalIncome  int64    `json:"totalIncome"`
	TotalExpense int64    `json:"totalExpense"`
	Period       *Summary `json:"period,omitempty"`
}

func FromModel(m models.ClubTransaction) TransactionDTO {
	return TransactionDTO{
		ID:              m.ID.String(),
		ClubID:          m.ClubID,
		Sequence:        m.Sequence,
		Type:            m.Type.String(),
		Amount:          m.Amount,
		Delta:           m.Delta,
		Description:     m.Description,
		ReceiptImageURL: m.ReceiptImageURL,
		CreatedBy:       m.CreatedBy,
		CreatedByName:   m.CreatedByName,
		CreatedAt:       m.CreatedAt.UTC(),
		BalanceAfter:    m.BalanceAfter,
	}
}

func FromModels(rows []models.ClubTransaction) []TransactionDTO {
	out := make([]TransactionDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
