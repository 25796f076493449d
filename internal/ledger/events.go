package ledger

import (
	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/outbox/payloads"
)

func recordedPayload(row *models.ClubTransaction, account *models.ClubAccount) payloads.TransactionRecordedEvent {
	return payloads.TransactionRecordedEvent{
		ClubID:         row.ClubID,
		TransactionID:  row.ID.String(),
		Sequence:       row.Sequence,
		Type:           row.Type.String(),
		Amount:         row.Amount,
		Delta:          row.Delta,
		BalanceAfter:   row.BalanceAfter,
		CurrentBalance: account.CurrentBudget,
		AccountVersion: account.Version,
		CreatedAt:      row.CreatedAt,
	}
}

func updatedPayload(row *models.ClubTransaction, previousAmount int64, rewritten int, account *models.ClubAccount) payloads.TransactionUpdatedEvent {
	return payloads.TransactionUpdatedEvent{
		ClubID:         row.ClubID,
		TransactionID:  row.ID.String(),
		PreviousAmount: previousAmount,
		Amount:         row.Amount,
		RewrittenRows:  rewritten,
		CurrentBalance: account.CurrentBudget,
		AccountVersion: account.Version,
	}
}

func deletedPayload(row *models.ClubTransaction, rewritten int, account *models.ClubAccount) payloads.TransactionDeletedEvent {
	return payloads.TransactionDeletedEvent{
		ClubID:         row.ClubID,
		TransactionID:  row.ID.String(),
		Type:           row.Type.String(),
		Amount:         row.Amount,
		Delta:          row.Delta,
		RewrittenRows:  rewritten,
		CurrentBalance: account.CurrentBudget,
		AccountVersion: account.Version,
	}
}
