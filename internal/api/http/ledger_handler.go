package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"khazna-backend/internal/domain"
	"khazna-backend/internal/service"
)

type LedgerHandler struct {
	transfers service.TransferService
	ledger    service.LedgerService
}

func NewLedgerHandler(transfers service.TransferService, ledger service.LedgerService) *LedgerHandler {
	return &LedgerHandler{transfers: transfers, ledger: ledger}
}

type allocateRequest struct {
	Kind        service.TransferKind `json:"kind"`
	TargetID    int32                `json:"target_id"`
	Amount      decimal.Decimal      `json:"amount"`
	Description string               `json:"description"`
}

type movementRequest struct {
	Amount      decimal.Decimal      `json:"amount"`
	Method      domain.PaymentMethod `json:"method"`
	Description string               `json:"description"`
	CompanyID   int32                `json:"company_id"`
	StationID   int32                `json:"station_id"`
}

type pendingUpdateRequest struct {
	Amount      decimal.Decimal      `json:"amount"`
	Method      domain.PaymentMethod `json:"method"`
	Description string               `json:"description"`
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "unauthenticated", "authorization token is not provided")
	}
	return actor, ok
}

func (h *LedgerHandler) Allocate(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req allocateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.transfers.Allocate(r.Context(), actor, req.Kind, req.TargetID, req.Amount, req.Description)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *LedgerHandler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.ledger.RequestDeposit)
}

func (h *LedgerHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.ledger.RequestWithdrawal)
}

type movementFunc func(ctx context.Context, actor domain.Actor, req service.MovementRequest) (*domain.Transaction, error)

func (h *LedgerHandler) movement(w http.ResponseWriter, r *http.Request, fn movementFunc) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := fn(r.Context(), actor, service.MovementRequest{
		Amount:      req.Amount,
		Method:      req.Method,
		Description: req.Description,
		CompanyID:   req.CompanyID,
		StationID:   req.StationID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func transactionPath(w http.ResponseWriter, r *http.Request) (domain.Family, int64, bool) {
	family := domain.Family(mux.Vars(r)["family"])
	if !family.Valid() {
		badParam(w, "family")
		return "", 0, false
	}
	id, ok := pathInt64(r, "id")
	if !ok {
		badParam(w, "id")
		return "", 0, false
	}
	return family, id, true
}

func (h *LedgerHandler) UpdatePending(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	family, id, ok := transactionPath(w, r)
	if !ok {
		return
	}
	var req pendingUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	tx, err := h.ledger.UpdatePending(r.Context(), actor, family, id, service.PendingUpdate{
		Amount:      req.Amount,
		Method:      req.Method,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *LedgerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	family, id, ok := transactionPath(w, r)
	if !ok {
		return
	}
	tx, err := h.ledger.Approve(r.Context(), actor, family, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *LedgerHandler) Decline(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	family, id, ok := transactionPath(w, r)
	if !ok {
		return
	}
	tx, err := h.ledger.Decline(r.Context(), actor, family, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (h *LedgerHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	family, id, ok := transactionPath(w, r)
	if !ok {
		return
	}
	tx, err := h.ledger.GetTransaction(r.Context(), actor, family, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// transactionFilter reads the listing filter from the query string.
// It returns the name of the first malformed parameter.
func transactionFilter(r *http.Request) (domain.TransactionFilter, string) {
	q := r.URL.Query()
	f := domain.TransactionFilter{
		Family: domain.Family(q.Get("family")),
		Status: domain.TransactionStatus(q.Get("status")),
		Method: domain.PaymentMethod(q.Get("method")),
	}
	if f.Family != "" && !f.Family.Valid() {
		return f, "family"
	}

	ints := []struct {
		name string
		dst  *int32
	}{
		{"company_id", &f.CompanyID},
		{"company_branch_id", &f.CompanyBranchID},
		{"car_id", &f.CarID},
		{"station_id", &f.StationID},
		{"station_branch_id", &f.StationBranchID},
		{"page", &f.Page},
		{"page_size", &f.PageSize},
	}
	for _, p := range ints {
		v, err := queryInt32(r, p.name)
		if err != nil {
			return f, p.name
		}
		*p.dst = v
	}

	if raw := q.Get("is_internal"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, "is_internal"
		}
		f.IsInternal = &v
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &f.From}, {"to", &f.To}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, p.name
		}
		*p.dst = &t
	}
	return f, ""
}

func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	filter, bad := transactionFilter(r)
	if bad != "" {
		badParam(w, bad)
		return
	}
	txs, total, err := h.ledger.ListTransactions(r.Context(), actor, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.Transaction]{Items: txs, TotalCount: total})
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	holderType := domain.HolderType(mux.Vars(r)["type"])
	if !holderType.Valid() {
		badParam(w, "type")
		return
	}
	id, ok := pathInt32(r, "id")
	if !ok {
		badParam(w, "id")
		return
	}
	holder, err := h.ledger.GetBalance(r.Context(), actor, domain.HolderRef{Type: holderType, ID: id})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, holder)
}
