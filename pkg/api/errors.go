package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/subledger/pkg/billing"
	"github.com/dmitrymomot/subledger/pkg/catalog"
	"github.com/dmitrymomot/subledger/pkg/ledger"
	"github.com/dmitrymomot/subledger/pkg/logger"
	"github.com/dmitrymomot/subledger/pkg/money"
	"github.com/dmitrymomot/subledger/pkg/recordstore"
	"github.com/dmitrymomot/subledger/pkg/subscription"
	"github.com/dmitrymomot/subledger/pkg/user"
	"github.com/dmitrymomot/subledger/pkg/validator"
	"github.com/dmitrymomot/subledger/pkg/webhook"
)

var (
	ErrInvalidJSON          = errors.New("invalid JSON body")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrInvalidParam         = errors.New("invalid parameter")
	ErrRouteNotFound        = errors.New("route not found")
	ErrMethodNotAllowed     = errors.New("method not allowed")
)

// errorClass is the HTTP rendering of a group of sentinels.
type errorClass struct {
	status int
	code   string
	errs   []error
}

// errorClasses is checked in order; the first class with a matching sentinel
// wins. Anything unmatched is a 500. Malformed webhook events stay 400 even
// though they carry field details.
var errorClasses = []errorClass{
	{http.StatusBadRequest, "bad_request", []error{billing.ErrInvalidEvent}},
	{http.StatusUnprocessableEntity, "validation_error", []error{validator.ErrValidationFailed}},
	{http.StatusUnsupportedMediaType, "unsupported_media_type", []error{ErrUnsupportedMediaType}},
	{http.StatusMethodNotAllowed, "method_not_allowed", []error{ErrMethodNotAllowed}},
	{http.StatusRequestEntityTooLarge, "payload_too_large", []error{webhook.ErrPayloadTooLarge}},
	{http.StatusUnauthorized, "invalid_signature", []error{
		webhook.ErrMissingSignature, webhook.ErrInvalidSignature, webhook.ErrSignatureExpired,
	}},
	{http.StatusForbidden, "forbidden", []error{billing.ErrUnauthorized}},
	{http.StatusBadRequest, "bad_request", []error{
		ErrInvalidJSON, ErrInvalidParam, webhook.ErrInvalidPayload,
		catalog.ErrInvalidInterval, catalog.ErrInvalidSeed,
		subscription.ErrInvalidIntervalCount, ledger.ErrInvalidOutcome,
		money.ErrInvalidCurrency, money.ErrNegativeAmount, money.ErrCurrencyMismatch,
		recordstore.ErrUnknownField, recordstore.ErrImmutableField, recordstore.ErrInvalidPatch,
	}},
	{http.StatusNotFound, "not_found", []error{
		ErrRouteNotFound, recordstore.ErrNotFound, user.ErrUserNotFound, catalog.ErrPlanNotFound,
		subscription.ErrSubscriptionNotFound, subscription.ErrPlanNotFound, subscription.ErrUserNotFound,
		ledger.ErrTransactionNotFound, billing.ErrSubscriptionNotFound, billing.ErrIntentNotFound,
	}},
	{http.StatusConflict, "conflict", []error{
		user.ErrEmailTaken, user.ErrUserInUse, user.ErrUserInactive,
		catalog.ErrPlanNameTaken, catalog.ErrPlanInUse,
		subscription.ErrInvalidState, billing.ErrNotPayable, billing.ErrIntentConflict,
		ledger.ErrAlreadyFinalized, ledger.ErrNotRefundable, ledger.ErrAlreadyRefunded,
		ledger.ErrMetadataKeyExists, ledger.ErrExternalRefTaken,
	}},
	{http.StatusBadGateway, "payment_gateway_error", []error{billing.ErrPaymentAttempt}},
	{http.StatusServiceUnavailable, "unavailable", []error{billing.ErrNoAttempter}},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.status, c.code
			}
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// respondError renders err in the envelope. message, when set, replaces the
// error text. Server errors are logged and never echo the cause.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, message string) {
	status, code := classify(err)

	detail := &ErrorDetail{Code: code, Message: err.Error()}
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", logger.Error(err), slog.Int("status", status))
		if status == http.StatusInternalServerError {
			detail.Message = http.StatusText(status)
		}
	}
	if ve := validator.ExtractValidationErrors(err); len(ve) > 0 {
		detail.Details = make(map[string][]string, len(ve))
		for _, f := range ve.Fields() {
			detail.Details[f] = ve.Get(f)
		}
	}
	if message == "" {
		message = detail.Message
	}

	writeJSON(w, status, Envelope{Success: false, Message: message, Error: detail})
}
