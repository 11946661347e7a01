package webhook_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subledger/pkg/webhook"
)

func TestSignPayload(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		secret  string
		payload []byte
		wantErr error
	}{
		{name: "valid signature", secret: "whsec_123", payload: []byte(`{"event_type":"payment_processed"}`)},
		{name: "empty secret", secret: "", payload: []byte(`{}`), wantErr: webhook.ErrMissingSecret},
		{name: "empty payload", secret: "secret", payload: []byte{}, wantErr: webhook.ErrInvalidPayload},
		{name: "nil payload", secret: "secret", payload: nil, wantErr: webhook.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			headers, err := webhook.SignPayload(tt.secret, tt.payload)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, headers.ID)
			assert.InDelta(t, time.Now().Unix(), headers.Timestamp, 2)

			mac := hmac.New(sha256.New, []byte(tt.secret))
			mac.Write([]byte(fmt.Sprintf("%d.%s", headers.Timestamp, tt.payload)))
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), headers.Signature)
		})
	}
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const secret = "whsec_123"
	payload := []byte(`{"event_type":"payment_processed","subscription_id":"s1"}`)
	valid, err := webhook.SignPayload(secret, payload)
	require.NoError(t, err)

	stale := valid
	stale.Timestamp = time.Now().Add(-10 * time.Minute).Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", stale.Timestamp, payload)))
	stale.Signature = hex.EncodeToString(mac.Sum(nil))

	future := valid
	future.Timestamp = time.Now().Add(10 * time.Minute).Unix()

	tests := []struct {
		name    string
		secret  string
		payload []byte
		headers webhook.SignatureHeaders
		maxAge  time.Duration
		wantErr error
	}{
		{name: "valid", secret: secret, payload: payload, headers: valid, maxAge: time.Minute},
		{name: "tampered payload", secret: secret, payload: []byte(`{"event_type":"payment_failed"}`), headers: valid, wantErr: webhook.ErrInvalidSignature},
		{name: "wrong secret", secret: "other", payload: payload, headers: valid, wantErr: webhook.ErrInvalidSignature},
		{name: "stale", secret: secret, payload: payload, headers: stale, maxAge: 5 * time.Minute, wantErr: webhook.ErrSignatureExpired},
		{name: "stale without age check", secret: secret, payload: payload, headers: stale},
		{name: "from the future", secret: secret, payload: payload, headers: future, maxAge: 5 * time.Minute, wantErr: webhook.ErrSignatureExpired},
		{name: "missing signature", secret: secret, payload: payload, headers: webhook.SignatureHeaders{Timestamp: valid.Timestamp}, wantErr: webhook.ErrMissingSignature},
		{name: "missing secret", payload: payload, headers: valid, wantErr: webhook.ErrMissingSecret},
		{name: "empty payload", secret: secret, headers: valid, wantErr: webhook.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := webhook.VerifySignature(tt.secret, tt.payload, tt.headers, tt.maxAge)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestExtractSignatureHeaders(t *testing.T) {
	t.Parallel()

	t.Run("case insensitive", func(t *testing.T) {
		t.Parallel()
		h := http.Header{}
		h.Set("x-webhook-signature", "abc")
		h.Set("X-WEBHOOK-TIMESTAMP", "1700000000")
		h.Set("x-webhook-id", "d-1")

		got, err := webhook.ExtractSignatureHeaders(h)
		require.NoError(t, err)
		assert.Equal(t, webhook.SignatureHeaders{Signature: "abc", Timestamp: 1700000000, ID: "d-1"}, got)
	})

	t.Run("round trip through Apply", func(t *testing.T) {
		t.Parallel()
		want, err := webhook.SignPayload("secret", []byte("body"))
		require.NoError(t, err)

		h := http.Header{}
		want.Apply(h)
		got, err := webhook.ExtractSignatureHeaders(h)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, strconv.FormatInt(want.Timestamp, 10), want.Headers()[webhook.HeaderTimestamp])
	})

	for name, h := range map[string]http.Header{
		"no headers":        {},
		"missing timestamp": {webhook.HeaderSignature: {"abc"}},
		"bad timestamp":     {webhook.HeaderSignature: {"abc"}, webhook.HeaderTimestamp: {"soon"}},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := webhook.ExtractSignatureHeaders(h)
			require.ErrorIs(t, err, webhook.ErrMissingSignature)
		})
	}
}
