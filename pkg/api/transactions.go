package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subledger/pkg/ledger"
)

func (h *handlers) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var in ledger.RecordInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	tx, err := h.Ledger.Record(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	created(w, tx, "transaction recorded")
}

// listTransactions serves GET /transactions with optional type, status,
// user_id, plan_id, subscription_id, from and to filters.
func (h *handlers) listTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseLedgerFilter(r)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	txs, err := h.Ledger.Query(r.Context(), f)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, txs)
}

func parseLedgerFilter(r *http.Request) (ledger.Filter, error) {
	q := r.URL.Query()
	f := ledger.Filter{
		Type:           ledger.Type(q.Get("type")),
		Status:         ledger.Status(q.Get("status")),
		UserID:         q.Get("user_id"),
		PlanID:         q.Get("plan_id"),
		SubscriptionID: q.Get("subscription_id"),
	}
	switch f.Type {
	case "", ledger.TypePayment, ledger.TypeRefund:
	default:
		return ledger.Filter{}, fmt.Errorf("%w: unknown type %q", ErrInvalidParam, f.Type)
	}
	switch f.Status {
	case "", ledger.StatusPending, ledger.StatusCompleted, ledger.StatusFailed:
	default:
		return ledger.Filter{}, fmt.Errorf("%w: unknown status %q", ErrInvalidParam, f.Status)
	}
	var err error
	if f.From, err = queryTime(q, "from"); err != nil {
		return ledger.Filter{}, err
	}
	if f.To, err = queryTime(q, "to"); err != nil {
		return ledger.Filter{}, err
	}
	return f, nil
}

func (h *handlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Ledger.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, tx)
}

func (h *handlers) completeTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Ledger.Complete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, tx, "transaction completed")
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h *handlers) failTransaction(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	tx, err := h.Ledger.Fail(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, tx, "transaction failed")
}

type refundRequest struct {
	Description string `json:"description"`
}

// refundTransaction records a refund against a completed payment. The
// response carries the new refund transaction.
func (h *handlers) refundTransaction(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	tx, err := h.Ledger.Refund(r.Context(), chi.URLParam(r, "id"), req.Description)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	created(w, tx, "refund recorded")
}

type annotateRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (h *handlers) annotateTransaction(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	tx, err := h.Ledger.Annotate(r.Context(), chi.URLParam(r, "id"), req.Key, req.Value)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, tx, "metadata added")
}
