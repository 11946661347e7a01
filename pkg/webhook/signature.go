package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Header names carrying the signature.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// futureSkew is how far ahead of the local clock a timestamp may be.
const futureSkew = time.Minute

// SignatureHeaders contains the signature of one delivery.
type SignatureHeaders struct {
	Signature string
	Timestamp int64
	ID        string
}

// Headers returns the signature headers keyed by header name.
func (s SignatureHeaders) Headers() map[string]string {
	return map[string]string{
		HeaderSignature: s.Signature,
		HeaderTimestamp: strconv.FormatInt(s.Timestamp, 10),
		HeaderID:        s.ID,
	}
}

// Apply sets the signature headers on h.
func (s SignatureHeaders) Apply(h http.Header) {
	for k, v := range s.Headers() {
		h.Set(k, v)
	}
}

// SignPayload signs payload at the current time.
// Signature format: hex(HMAC-SHA256(secret, timestamp + "." + payload)).
func SignPayload(secret string, payload []byte) (SignatureHeaders, error) {
	return signAt(secret, payload, time.Now())
}

func signAt(secret string, payload []byte, at time.Time) (SignatureHeaders, error) {
	if secret == "" {
		return SignatureHeaders{}, ErrMissingSecret
	}
	if len(payload) == 0 {
		return SignatureHeaders{}, fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	ts := at.Unix()
	return SignatureHeaders{
		Signature: compute(secret, ts, payload),
		Timestamp: ts,
		ID:        uuid.New().String(),
	}, nil
}

// VerifySignature checks the signature against the current time. A
// non-positive maxAge disables the age check.
func VerifySignature(secret string, payload []byte, headers SignatureHeaders, maxAge time.Duration) error {
	return verifyAt(secret, payload, headers, maxAge, time.Now())
}

func verifyAt(secret string, payload []byte, headers SignatureHeaders, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload cannot be empty", ErrInvalidPayload)
	}
	if headers.Signature == "" {
		return ErrMissingSignature
	}

	if maxAge > 0 {
		age := now.Sub(time.Unix(headers.Timestamp, 0))
		if age > maxAge {
			return fmt.Errorf("%w: signed %v ago", ErrSignatureExpired, age.Truncate(time.Second))
		}
		if age < -futureSkew {
			return fmt.Errorf("%w: timestamp is in the future", ErrSignatureExpired)
		}
	}

	expected := compute(secret, headers.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(headers.Signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ExtractSignatureHeaders reads the signature headers. The ID is optional.
func ExtractSignatureHeaders(h http.Header) (SignatureHeaders, error) {
	sig := SignatureHeaders{
		Signature: h.Get(HeaderSignature),
		ID:        h.Get(HeaderID),
	}
	raw := h.Get(HeaderTimestamp)
	if sig.Signature == "" || raw == "" {
		return SignatureHeaders{}, ErrMissingSignature
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return SignatureHeaders{}, errors.Join(ErrMissingSignature, fmt.Errorf("invalid timestamp %q", raw))
	}
	sig.Timestamp = ts
	return sig, nil
}

func compute(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(h, "%d.", ts)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
