// Package webhook authenticates inbound payment provider callbacks.
//
// A delivery is signed with HMAC-SHA256 over "<unix timestamp>.<body>" and
// carries three headers:
//
//	X-Webhook-Signature: hex encoded signature
//	X-Webhook-Timestamp: unix seconds the signature was made at
//	X-Webhook-ID:        optional delivery id
//
// The timestamp is bound into the signature, so a captured delivery can only
// be replayed inside the verifier's max age window.
//
// # Usage
//
//	v := webhook.NewVerifier(cfg.WebhookSecret, webhook.WithLogger(log))
//	r.With(v.Middleware).Post("/webhooks", handleWebhook)
//
// With an empty secret the middleware is a pass-through, which suits local
// development. Senders (and tests) sign with SignPayload or Verifier.Sign and
// set the headers with SignatureHeaders.Apply.
package webhook
