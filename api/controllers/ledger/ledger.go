package ledger

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/api/middleware"
	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/api/validators"
	internalledger "github.com/angelmondragon/clubledger-backend/internal/ledger"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

const maxDescriptionLen = 500

type entryRequest struct {
	Amount          int64   `json:"amount" validate:"gt=0"`
	Description     string  `json:"description" validate:"max=500"`
	ReceiptImageURL *string `json:"receiptImageUrl" validate:"omitempty,url"`
	CurrentBalance  *int64  `json:"currentBalance"`
}

type adjustRequest struct {
	NewBalance     *int64 `json:"newBalance" validate:"required"`
	Description    string `json:"description" validate:"max=500"`
	CurrentBalance *int64 `json:"currentBalance"`
}

type updateRequest struct {
	Type            *string `json:"type"`
	Amount          *int64  `json:"amount" validate:"omitempty,gte=0"`
	Description     *string `json:"description" validate:"omitempty,max=500"`
	ReceiptImageURL *string `json:"receiptImageUrl" validate:"omitempty,url"`
	NewBalance      *int64  `json:"newBalance"`
}

type transactionPage struct {
	Items      []internalledger.TransactionDTO `json:"items"`
	NextCursor string                          `json:"nextCursor,omitempty"`
}

type deleteResponse struct {
	Deleted        bool   `json:"deleted"`
	TransactionID  string `json:"transactionId"`
	CurrentBalance int64  `json:"currentBalance"`
}

// Balance returns the current club balance.
func Balance(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		clubID := middleware.ClubIDFromContext(r.Context())
		balance, err := svc.GetCurrentBalance(r.Context(), clubID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalledger.BalanceDTO{ClubID: clubID, CurrentBalance: balance})
	}
}

// ListTransactions returns newest-first pages filtered by type and [from, to).
func ListTransactions(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		query := internalledger.TransactionQuery{
			ClubID: middleware.ClubIDFromContext(r.Context()),
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		rawType, err := validators.ParseQueryEnum(r, "type",
			enums.TransactionTypeIncome.String(),
			enums.TransactionTypeExpense.String(),
			enums.TransactionTypeAdjustment.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if rawType != "" {
			t := enums.TransactionType(rawType)
			query.Type = &t
		}

		if query.From, err = validators.ParseQueryTime(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if query.To, err = validators.ParseQueryTime(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if query.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.QueryTransactions(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionPage{
			Items:      internalledger.FromModels(page.Items),
			NextCursor: page.NextCursor,
		})
	}
}

// GetTransaction returns one ledger entry of the club.
func GetTransaction(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		txnID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.GetTransaction(r.Context(), middleware.ClubIDFromContext(r.Context()), txnID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalledger.FromModel(*txn))
	}
}

// RecordIncome appends an INCOME entry.
func RecordIncome(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordEntry(svc, logg, enums.TransactionTypeIncome)
}

// RecordExpense appends an EXPENSE entry.
func RecordExpense(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return recordEntry(svc, logg, enums.TransactionTypeExpense)
}

func recordEntry(svc internalledger.Service, logg *logger.Logger, txType enums.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		var body entryRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		clubID := middleware.ClubIDFromContext(ctx)
		current, err := currentBalance(r, svc, clubID, body.CurrentBalance)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		input := internalledger.EntryInput{
			ClubID:          clubID,
			Amount:          body.Amount,
			Description:     validators.SanitizeString(body.Description, maxDescriptionLen),
			ReceiptImageURL: trimmed(body.ReceiptImageURL),
			ActorID:         middleware.UserIDFromContext(ctx),
			ActorName:       middleware.UserNameFromContext(ctx),
			ActorRole:       middleware.ClubRoleFromContext(ctx),
			CurrentBalance:  current,
		}
		add := svc.AddIncome
		if txType == enums.TransactionTypeExpense {
			add = svc.AddExpense
		}
		txn, err := add(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalledger.FromModel(*txn))
	}
}

// Adjust records an ADJUSTMENT that moves the balance to newBalance.
func Adjust(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		var body adjustRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		clubID := middleware.ClubIDFromContext(ctx)
		current, err := currentBalance(r, svc, clubID, body.CurrentBalance)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		txn, err := svc.AdjustBalance(ctx, internalledger.AdjustInput{
			ClubID:         clubID,
			NewBalance:     *body.NewBalance,
			Description:    validators.SanitizeString(body.Description, maxDescriptionLen),
			ActorID:        middleware.UserIDFromContext(ctx),
			ActorName:      middleware.UserNameFromContext(ctx),
			ActorRole:      middleware.ClubRoleFromContext(ctx),
			CurrentBalance: current,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalledger.FromModel(*txn))
	}
}

// UpdateTransaction edits amount, description or receipt of an entry.
func UpdateTransaction(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		txnID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		input := internalledger.UpdateTransactionInput{
			ClubID:          middleware.ClubIDFromContext(ctx),
			TransactionID:   txnID,
			Amount:          body.Amount,
			ReceiptImageURL: body.ReceiptImageURL,
			NewBalance:      body.NewBalance,
			ActorID:         middleware.UserIDFromContext(ctx),
			ActorName:       middleware.UserNameFromContext(ctx),
			ActorRole:       middleware.ClubRoleFromContext(ctx),
		}
		if body.Type != nil {
			t, err := enums.ParseTransactionType(strings.ToUpper(strings.TrimSpace(*body.Type)))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction type"))
				return
			}
			input.Type = &t
		}
		if body.Description != nil {
			desc := validators.SanitizeString(*body.Description, maxDescriptionLen)
			input.Description = &desc
		}

		txn, err := svc.UpdateTransaction(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalledger.FromModel(*txn))
	}
}

// DeleteTransaction removes an entry; later balances are recomputed.
func DeleteTransaction(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		txnID, err := parseTransactionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		clubID := middleware.ClubIDFromContext(ctx)
		input := internalledger.DeleteTransactionInput{
			ClubID:        clubID,
			TransactionID: txnID,
			ActorID:       middleware.UserIDFromContext(ctx),
			ActorName:     middleware.UserNameFromContext(ctx),
			ActorRole:     middleware.ClubRoleFromContext(ctx),
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("newBalance")); raw != "" {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "newBalance must be an integer"))
				return
			}
			input.NewBalance = &value
		}

		balance, err := svc.DeleteTransaction(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, deleteResponse{Deleted: true, TransactionID: txnID.String(), CurrentBalance: balance})
	}
}

// Summary returns all-time income and expense totals plus an optional [from, to) summary.
func Summary(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		ctx := r.Context()
		clubID := middleware.ClubIDFromContext(ctx)

		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if (from == nil) != (to == nil) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from and to must be provided together"))
			return
		}

		var dto internalledger.TotalsDTO
		if dto.TotalIncome, err = svc.CalculateTotalIncome(ctx, clubID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if dto.TotalExpense, err = svc.CalculateTotalExpense(ctx, clubID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if from != nil {
			if dto.Period, err = svc.Summarize(ctx, clubID, *from, *to); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		responses.WriteSuccess(w, dto)
	}
}

// Reconcile replays the club ledger; repair defaults to true.
func Reconcile(svc internalledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		repair := true
		if raw := strings.TrimSpace(r.URL.Query().Get("repair")); raw != "" {
			value, err := strconv.ParseBool(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid repair value"))
				return
			}
			repair = value
		}
		report, err := svc.Reconcile(r.Context(), middleware.ClubIDFromContext(r.Context()), repair)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func parseTransactionID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "transactionId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction id")
	}
	return id, nil
}

// currentBalance is the balance the caller last saw, or the stored one when omitted.
func currentBalance(r *http.Request, svc internalledger.Service, clubID string, supplied *int64) (int64, error) {
	if supplied != nil {
		return *supplied, nil
	}
	return svc.GetCurrentBalance(r.Context(), clubID)
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
