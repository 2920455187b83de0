package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/txconsumer/internal/adapter/http/dto"
	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/usecase"
)

// LedgerQueryService serves read views of the ledger.
type LedgerQueryService interface {
	GetBalances(ctx context.Context, account string) (*usecase.AccountBalances, error)
	ListEvents(ctx context.Context, account string, limit, offset int) ([]*domain.EventRecord, error)
}

// Reconciler checks stored balances against the event log.
type Reconciler interface {
	ReconcileAccount(ctx context.Context, account string) ([]*usecase.ReconciliationResult, error)
}

// LedgerHandler handles account read requests.
type LedgerHandler struct {
	queries    LedgerQueryService
	reconciler Reconciler
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(queries LedgerQueryService, reconciler Reconciler) *LedgerHandler {
	return &LedgerHandler{queries: queries, reconciler: reconciler}
}

// GetBalances handles GET /accounts/{account}/balances.
func (h *LedgerHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	balances, err := h.queries.GetBalances(r.Context(), account)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get balances", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountBalancesFromDomain(balances))
}

// ListEvents handles GET /accounts/{account}/events.
func (h *LedgerHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	events, err := h.queries.ListEvents(r.Context(), account, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list events", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.EventsFromDomain(events))
}

// Reconcile handles GET /accounts/{account}/reconciliation.
func (h *LedgerHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")

	results, err := h.reconciler.ReconcileAccount(r.Context(), account)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromDomain(results))
}
