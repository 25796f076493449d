package payloads

import "time"

// TransactionRecordedEvent is emitted when a new ledger entry commits.
type TransactionRecordedEvent struct {
	ClubID         string    `json:"clubId"`
	TransactionID  string    `json:"transactionId"`
	Sequence       int64     `json:"sequence"`
	Type           string    `json:"type"`
	Amount         int64     `json:"amount"`
	Delta          int64     `json:"delta"`
	BalanceAfter   int64     `json:"balanceAfter"`
	CurrentBalance int64     `json:"currentBalance"`
	AccountVersion int64     `json:"accountVersion"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TransactionUpdatedEvent is emitted after an edit and the balance rewrite it caused.
type TransactionUpdatedEvent struct {
	ClubID         string `json:"clubId"`
	TransactionID  string `json:"transactionId"`
	PreviousAmount int64  `json:"previousAmount"`
	Amount         int64  `json:"amount"`
	RewrittenRows  int    `json:"rewrittenRows"`
	CurrentBalance int64  `json:"currentBalance"`
	AccountVersion int64  `json:"accountVersion"`
}

// TransactionDeletedEvent is emitted after a removal and the balance rewrite it caused.
type TransactionDeletedEvent struct {
	ClubID         string `json:"clubId"`
	TransactionID  string `json:"transactionId"`
	Type           string `json:"type"`
	Amount         int64  `json:"amount"`
	Delta          int64  `json:"delta"`
	RewrittenRows  int    `json:"rewrittenRows"`
	CurrentBalance int64  `json:"currentBalance"`
	AccountVersion int64  `json:"accountVersion"`
}

// LedgerReconciledEvent is emitted when a reconciliation repaired stored balances.
type LedgerReconciledEvent struct {
	ClubID          string `json:"clubId"`
	DriftedRows     int    `json:"driftedRows"`
	PreviousBalance int64  `json:"previousBalance"`
	CurrentBalance  int64  `json:"currentBalance"`
	AccountVersion  int64  `json:"accountVersion"`
}
