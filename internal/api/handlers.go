package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, message, class string) {
	writeJSON(w, status, models.ErrorResponse{Error: message, Class: class})
}

// statusFor maps an operation error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrReceiptNotFound), errors.Is(err, ledger.ErrOptionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrUnauthorized), errors.Is(err, ledger.ErrReceiverAuthorityMismatch),
		errors.Is(err, store.ErrNotHeld):
		return http.StatusForbidden
	}

	switch ledger.Classify(err) {
	case ledger.ClassValidation:
		return http.StatusBadRequest
	case ledger.ClassArithmetic:
		return http.StatusUnprocessableEntity
	case ledger.ClassConflict:
		return http.StatusConflict
	case ledger.ClassInconsistency:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeOperationError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error(), ledger.Classify(err))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error(), ledger.ClassValidation)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

type handlers struct {
	svc *LedgerService
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error(), "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actAs resolves the identity a user request acts for. A body may leave the
// identity empty or name the caller; naming anyone else is refused.
func actAs(w http.ResponseWriter, r *http.Request, named string) (string, bool) {
	caller := Caller(r.Context())
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing caller identity", "auth")
		return "", false
	}
	if named != "" && named != caller {
		writeError(w, http.StatusForbidden, "request names an identity other than the caller", "auth")
		return "", false
	}
	return caller, true
}

func (h *handlers) deposit(w http.ResponseWriter, r *http.Request) {
	var req models.DepositRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var ok bool
	if req.Depositor, ok = actAs(w, r, req.Depositor); !ok {
		return
	}
	result, err := h.svc.Deposit(r.Context(), req)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handlers) issueOption(w http.ResponseWriter, r *http.Request) {
	var req models.IssueOptionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var ok bool
	if req.Depositor, ok = actAs(w, r, req.Depositor); !ok {
		return
	}
	option, err := h.svc.IssueOption(r.Context(), req)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, option)
}

type convertBody struct {
	Holder string `json:"holder"`
	Amount uint64 `json:"amount"`
}

func (h *handlers) convert(w http.ResponseWriter, r *http.Request) {
	var body convertBody
	if !decodeBody(w, r, &body) {
		return
	}
	holder, ok := actAs(w, r, body.Holder)
	if !ok {
		return
	}
	result, err := h.svc.Convert(r.Context(), models.ConvertRequest{
		ClaimTokenId: chi.URLParam(r, "claimTokenId"),
		Holder:       holder,
		Amount:       body.Amount,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type transferBody struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Notes uint64 `json:"notes"`
}

func (h *handlers) transfer(w http.ResponseWriter, r *http.Request) {
	var body transferBody
	if !decodeBody(w, r, &body) {
		return
	}
	from, ok := actAs(w, r, body.From)
	if !ok {
		return
	}
	option, err := h.svc.TransferOption(r.Context(), models.TransferRequest{
		ClaimTokenId: chi.URLParam(r, "claimTokenId"),
		From:         from,
		To:           body.To,
		Notes:        body.Notes,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, option)
}

func (h *handlers) listOptions(w http.ResponseWriter, r *http.Request) {
	spentOnly, _ := strconv.ParseBool(r.URL.Query().Get("spent"))
	options, err := h.svc.ListOptions(r.Context(), spentOnly, r.URL.Query().Get("owner"), queryInt(r, "limit", 100))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if options == nil {
		options = []models.OptionRecord{}
	}
	writeJSON(w, http.StatusOK, options)
}

func (h *handlers) getOption(w http.ResponseWriter, r *http.Request) {
	option, err := h.svc.GetOption(r.Context(), chi.URLParam(r, "claimTokenId"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, option)
}

func (h *handlers) getReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.svc.GetReceipt(r.Context(), chi.URLParam(r, "depositor"))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *handlers) staleReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.svc.ListStaleReceipts(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if receipts == nil {
		receipts = []models.DepositReceipt{}
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (h *handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetConfig(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *handlers) getTreasury(w http.ResponseWriter, r *http.Request) {
	treasury, err := h.svc.GetTreasury(r.Context())
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, treasury)
}

func (h *handlers) reconcile(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.Reconcile(r.Context())
	if err != nil && result == nil {
		writeOperationError(w, err)
		return
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.svc.ListEvents(r.Context(), r.URL.Query().Get("subject"), queryInt(r, "limit", 50))
	if err != nil {
		writeOperationError(w, err)
		return
	}
	if events == nil {
		events = []models.LedgerEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *handlers) balances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.svc.GetAccountBalances(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if balances == nil {
		balances = []models.AccountBalance{}
	}
	writeJSON(w, http.StatusOK, balances)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.GetTransactionHistory(r.Context(),
		chi.URLParam(r, "accountId"), chi.URLParam(r, "asset"),
		queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	if history == nil {
		history = []models.Transaction{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *handlers) updateLocks(w http.ResponseWriter, r *http.Request) {
	var update models.LockUpdate
	if !decodeBody(w, r, &update) {
		return
	}
	cfg, err := h.svc.UpdateLocks(r.Context(), Caller(r.Context()), update)
	if err != nil {
		writeOperationError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type closeBody struct {
	Receiver string `json:"receiver"`
}

func (h *handlers) closeOption(w http.ResponseWriter, r *http.Request) {
	var body closeBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Receiver == "" {
		body.Receiver = Caller(r.Context())
	}
	err := h.svc.CloseOption(r.Context(), models.CloseRequest{
		ClaimTokenId: chi.URLParam(r, "claimTokenId"),
		Receiver:     body.Receiver,
	})
	if err != nil {
		writeOperationError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
