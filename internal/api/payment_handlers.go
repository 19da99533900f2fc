package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"evrental/internal/db"
	"evrental/internal/entities"
	"evrental/internal/service"
)

type PaymentHandler struct {
	WebhookSecret string
	Payments      *service.PaymentService
	Rentals       *service.RentalService
}

func NewPaymentHandler(webhookSecret string, payments *service.PaymentService, rentals *service.RentalService) *PaymentHandler {
	return &PaymentHandler{
		WebhookSecret: webhookSecret,
		Payments:      payments,
		Rentals:       rentals,
	}
}

// HandleWebhook is the provider's push channel. Settled payments are fed into
// the rental state machine so deposit failures cancel the booking.
func (h *PaymentHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Error reading webhook body: %v", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.WebhookSecret)
	if err != nil {
		log.Printf("Webhook signature verification failed: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	switch event.Type {
	case "checkout.session.completed":
		sessionID, ok := h.sessionID(w, event.Data.Raw)
		if !ok {
			return
		}
		h.settleCheckout(ctx, w, sessionID, db.PaymentCompleted)

	case "checkout.session.expired", "checkout.session.async_payment_failed":
		sessionID, ok := h.sessionID(w, event.Data.Raw)
		if !ok {
			return
		}
		h.settleCheckout(ctx, w, sessionID, db.PaymentFailed)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			log.Printf("Error parsing charge: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
			break
		}
		if _, err := h.Payments.ResolveRefundByPaymentIntent(ctx, charge.PaymentIntent.ID); err != nil {
			log.Printf("No refund record for PaymentIntent %s: %v", charge.PaymentIntent.ID, err)
		}

	default:
		log.Printf("Unhandled event type: %s", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}

func (h *PaymentHandler) sessionID(w http.ResponseWriter, raw json.RawMessage) (string, bool) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		log.Printf("Error parsing checkout.session: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return "", false
	}
	if sess.ID == "" {
		log.Printf("No session ID in checkout event")
		w.WriteHeader(http.StatusBadRequest)
		return "", false
	}
	return sess.ID, true
}

func (h *PaymentHandler) settleCheckout(ctx context.Context, w http.ResponseWriter, sessionID, status string) {
	rec, err := h.Payments.ResolveCheckout(ctx, sessionID, status)
	if err != nil {
		log.Printf("DB error settling session %s: %v", sessionID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if err := h.Rentals.OnPaymentResult(ctx, rec.ID); err != nil {
		log.Printf("Error applying payment %d result to rental %d: %v", rec.ID, rec.RentalID, err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
}

// VerifyPayment is the pull fallback for renters whose webhook got lost. It
// polls the provider for the session state and settles the record in place.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id", "code": "BAD_REQUEST"})
		return
	}
	rec, changed, err := h.Payments.Verify(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if changed {
		if err := h.Rentals.OnPaymentResult(r.Context(), rec.ID); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, entities.VerifyPaymentResponse{
		Payment: entities.NewPaymentResponse(rec),
		Settled: rec.Status != db.PaymentPending,
	})
}

// GetPayment returns a single payment record.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment id", "code": "BAD_REQUEST"})
		return
	}
	rec, err := h.Payments.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewPaymentResponse(rec))
}
