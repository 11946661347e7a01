package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrymomot/subledger/pkg/billing"
	"github.com/dmitrymomot/subledger/pkg/subscription"
	"github.com/dmitrymomot/subledger/pkg/webhook"
)

// simulatePayment serves POST /payment/simulate: checkout through the
// simulated attempter. A declined charge is still a 201 since the
// subscription and its failed transaction were created.
func (h *handlers) simulatePayment(w http.ResponseWriter, r *http.Request) {
	var in subscription.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err, "")
		return
	}
	res, err := h.Billing.Checkout(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	created(w, res, chargeMessage(res))
}

type chargeRequest struct {
	SubscriptionID string `json:"subscription_id"`
}

func (h *handlers) retryPayment(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	res, err := h.Billing.RetryPayment(r.Context(), req.SubscriptionID)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, res, chargeMessage(res))
}

func (h *handlers) chargeRenewal(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err, "")
		return
	}
	res, err := h.Billing.ChargeRenewal(r.Context(), req.SubscriptionID)
	if err != nil {
		h.fail(w, r, err, "")
		return
	}
	okMessage(w, res, chargeMessage(res))
}

func chargeMessage(res billing.ChargeResult) string {
	if res.Paid {
		return "payment succeeded"
	}
	return "payment declined"
}

var errWebhookFailed = errors.New("webhook event failed")

// handleWebhook applies a provider callback. Signature checks already ran in
// the verifier middleware. Events without an event_id take the delivery id
// from the X-Webhook-ID header so replays stay idempotent.
func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, r, webhook.ErrPayloadTooLarge, "")
			return
		}
		h.fail(w, r, errors.Join(webhook.ErrInvalidPayload, err), "")
		return
	}

	ev, err := billing.ParseEvent(body)
	if err != nil {
		h.fail(w, r, err, "invalid event")
		return
	}
	if ev.ID == "" {
		ev.ID = webhook.DeliveryID(r.Context())
	}
	if ev.ID == "" {
		// Unverified deployments still dedupe on the delivery header.
		ev.ID = r.Header.Get(webhook.HeaderID)
	}

	res := h.Billing.Handle(r.Context(), ev)
	if !res.Success {
		cause := res.Err
		if cause == nil {
			cause = errWebhookFailed
		}
		h.fail(w, r, cause, res.Message)
		return
	}
	okMessage(w, res, res.Message)
}
