package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subledger/pkg/subscription"
)

func (h *handlers) createSubscription(w http.ResponseWriter, r *http.Request) {
	var in subscription.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	sub, err := h.Subscriptions.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	created(w, sub, "subscription created")
}

// listSubscriptions serves GET /subscriptions?user_id=&status=.
func (h *handlers) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	status := subscription.Status(q.Get("status"))
	if status != "" && !slices.Contains(subscription.Statuses, status) {
		h.fail(w, r, fmt.Errorf("%w: unknown status %q", ErrInvalidParam, status), "")
		return
	}

	var (
		subs []subscription.Subscription
		err  error
	)
	switch {
	case userID != "":
		subs, err = h.Subscriptions.ListByUser(r.Context(), userID)
	case status != "":
		subs, err = h.Subscriptions.ListByStatus(r.Context(), status)
	default:
		subs, err = h.Subscriptions.List(r.Context())
	}
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	if userID != "" && status != "" {
		subs = slices.DeleteFunc(subs, func(s subscription.Subscription) bool { return s.Status != status })
	}
	ok(w, subs)
}

func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, sub)
}

type activeResponse struct {
	SubscriptionID string               `json:"subscription_id"`
	Status         subscription.Status  `json:"status"`
	Active         bool                 `json:"active"`
	HasAccess      bool                 `json:"has_access"`
	AllowedEvents  []subscription.Event `json:"allowed_events"`
}

func (h *handlers) subscriptionActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	sub, err := h.Subscriptions.Get(ctx, id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	active, err := h.Subscriptions.IsActive(ctx, id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	access, err := h.Subscriptions.HasAccess(ctx, id)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, activeResponse{
		SubscriptionID: id,
		Status:         sub.Status,
		Active:         active,
		HasAccess:      access,
		AllowedEvents:  subscription.AllowedEvents(sub.Status),
	})
}

func (h *handlers) subscriptionTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Ledger.BySubscription(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	ok(w, txs)
}

func (h *handlers) activateSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.Activate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "subscription active")
}

func (h *handlers) markPaymentFailed(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.MarkPaymentFailed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "subscription marked payment_failed")
}

func (h *handlers) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "subscription cancelled")
}

type renewRequest struct {
	Intervals int `json:"intervals"`
}

// renewSubscription extends the period by the requested number of
// intervals, one when the body is empty.
func (h *handlers) renewSubscription(w http.ResponseWriter, r *http.Request) {
	req := renewRequest{Intervals: 1}
	if err := decodeOptionalJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	sub, err := h.Subscriptions.Renew(r.Context(), chi.URLParam(r, "id"), req.Intervals)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "subscription renewed")
}

func (h *handlers) expireSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.Expire(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "subscription expired")
}

func (h *handlers) expireDue(w http.ResponseWriter, r *http.Request) {
	expired, err := h.Subscriptions.ExpireDue(r.Context())
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, expired, fmt.Sprintf("%d subscriptions expired", len(expired)))
}

type autoRenewRequest struct {
	AutoRenew *bool `json:"auto_renew"`
}

func (h *handlers) setAutoRenew(w http.ResponseWriter, r *http.Request) {
	var req autoRenewRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	if req.AutoRenew == nil {
		h.fail(w, r, fmt.Errorf("%w: auto_renew is required", ErrInvalidParam), "")
		return
	}
	sub, err := h.Subscriptions.SetAutoRenew(r.Context(), chi.URLParam(r, "id"), *req.AutoRenew)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "auto-renew updated")
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *handlers) setPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	sub, err := h.Subscriptions.UpdatePaymentMethod(r.Context(), chi.URLParam(r, "id"), req.PaymentMethod)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, sub, "payment method updated")
}
