// Package api exposes the subscription ledger over HTTP.
//
// Every response uses the same JSON envelope:
//
//	{"success": true, "data": {...}, "message": "subscription created"}
//	{"success": false, "message": "...", "error": {"code": "conflict", "message": "..."}}
//
// Domain errors map to status codes by sentinel: validation failures are 422
// with per-field details, unknown records 404, illegal state changes 409,
// malformed input 400 and signature failures on POST /webhooks 401.
// Unexpected errors are logged and rendered as a bare 500.
//
// The router is built with chi:
//
//	h := api.NewRouter(api.Deps{
//		Users:         users,
//		Plans:         plans,
//		Subscriptions: subs,
//		Ledger:        ledgerSvc,
//		Billing:       billingSvc,
//		Stats:         statsSvc,
//		WebhookSecret: cfg.WebhookSecret,
//	}, api.WithLogger(log))
//
// Requests get an X-Request-ID (reused when the client sends a valid one)
// that is echoed in the response and attached to every log line.
package api
