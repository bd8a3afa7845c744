package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"live-auction-service/internal/domain/shared"
	"live-auction-service/internal/ports/inbound"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
	SignatureHeader = "X-Webhook-Signature"

	maxWebhookBody = 1 << 20
)

// webhookEnvelope is the provider's event body
type webhookEnvelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
		} `json:"object"`
	} `json:"data"`
}

func (e webhookEnvelope) toEvent() inbound.ProviderEvent {
	event := inbound.ProviderEvent{
		ID:            e.ID,
		Type:          inbound.ProviderEventType(e.Type),
		ObjectID:      e.Data.Object.ID,
		PaymentIntent: e.Data.Object.PaymentIntent,
	}
	if e.Created > 0 {
		event.OccurredAt = time.Unix(e.Created, 0).UTC()
	}
	return event
}

// PaymentWebhook applies a provider event. Unknown event types and objects
// are acknowledged so the provider stops retrying them.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, h.logger, shared.ErrInvalidRequest)
		return
	}

	if h.webhookSecret != "" && !validSignature(h.webhookSecret, body, r.Header.Get(SignatureHeader)) {
		h.logger.Warn().Str("remote_addr", r.RemoteAddr).Msg("Rejected webhook with bad signature")
		respondError(w, h.logger, shared.ErrInvalidSignature)
		return
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Type == "" {
		respondError(w, h.logger, shared.ErrInvalidRequest)
		return
	}

	if err := h.settlementService.ApplyEvent(r.Context(), envelope.toEvent()); err != nil {
		respondError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// Sign returns the signature header value for body
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret string, body []byte, header string) bool {
	got, err := hex.DecodeString(header)
	if err != nil || len(got) == 0 {
		return false
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	return hmac.Equal(got, want)
}
