package webhook

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/subledger/pkg/logger"
)

// Defaults for NewVerifier.
const (
	DefaultMaxAge      = 5 * time.Minute
	DefaultMaxBodySize = 1 << 20
)

type deliveryIDKey struct{}

// DeliveryID returns the X-Webhook-ID of a verified request, if any.
func DeliveryID(ctx context.Context) string {
	id, _ := ctx.Value(deliveryIDKey{}).(string)
	return id
}

// ErrorHandler writes the response for a rejected delivery.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Verifier authenticates inbound provider callbacks.
type Verifier struct {
	secret      string
	maxAge      time.Duration
	maxBodySize int64
	now         func() time.Time
	logger      *slog.Logger
	onError     ErrorHandler
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithMaxAge bounds how old a signature may be. Zero disables the check.
func WithMaxAge(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.maxAge = d }
}

func WithMaxBodySize(n int64) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.maxBodySize = n
		}
	}
}

func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

func WithLogger(l *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithErrorHandler replaces the plain-text 401/413 response.
func WithErrorHandler(h ErrorHandler) VerifierOption {
	return func(v *Verifier) {
		if h != nil {
			v.onError = h
		}
	}
}

// NewVerifier creates a Verifier. With an empty secret verification is
// disabled and Middleware passes every request through.
func NewVerifier(secret string, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		secret:      secret,
		maxAge:      DefaultMaxAge,
		maxBodySize: DefaultMaxBodySize,
		now:         time.Now,
		logger:      logger.Discard(),
		onError:     defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v.secret != ""
}

// Sign signs payload with the verifier's secret and clock.
func (v *Verifier) Sign(payload []byte) (SignatureHeaders, error) {
	return signAt(v.secret, payload, v.now())
}

// Verify checks a signed payload.
func (v *Verifier) Verify(payload []byte, headers SignatureHeaders) error {
	return verifyAt(v.secret, payload, headers, v.maxAge, v.now())
}

// Middleware rejects requests whose body does not match the signature
// headers. The body is restored for the next handler and the delivery id is
// put in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	if !v.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, v.maxBodySize))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				err = errors.Join(ErrPayloadTooLarge, err)
			} else {
				err = errors.Join(ErrInvalidPayload, err)
			}
			v.reject(w, r, err)
			return
		}

		headers, err := ExtractSignatureHeaders(r.Header)
		if err == nil {
			err = v.Verify(body, headers)
		}
		if err != nil {
			v.reject(w, r, err)
			return
		}

		if headers.ID != "" {
			ctx = context.WithValue(ctx, deliveryIDKey{}, headers.ID)
			ctx = logger.WithAttrs(ctx, slog.String("delivery_id", headers.ID))
		}
		r = r.WithContext(ctx)
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) reject(w http.ResponseWriter, r *http.Request, err error) {
	v.logger.WarnContext(r.Context(), "webhook signature rejected",
		logger.Error(err),
		slog.String("remote_addr", r.RemoteAddr),
	)
	v.onError(w, r, err)
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidPayload):
		status = http.StatusBadRequest
	}
	http.Error(w, http.StatusText(status), status)
}
