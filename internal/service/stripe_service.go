package service

import (
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/refund"
)

// StripeService wraps the payment provider. The rest of the system only sees
// opaque session/refund references and callback outcomes.
type StripeService struct{}

func NewStripeService() *StripeService {
	return &StripeService{}
}

// CreateCheckoutSession opens a hosted checkout for a deposit or fee charge
// and returns the redirect URL plus the session ID used as provider reference.
func (s *StripeService) CreateCheckoutSession(amount int64, currency, description, customerEmail string) (string, string, error) {
	successURL := os.Getenv("CHECKOUT_SUCCESS_URL")
	if successURL == "" {
		successURL = "http://localhost:3000/rentals/payment/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := os.Getenv("CHECKOUT_CANCEL_URL")
	if cancelURL == "" {
		cancelURL = "http://localhost:3000/rentals/payment/failed?session_id={CHECKOUT_SESSION_ID}"
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(amount),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
		CustomerEmail: stripe.String(customerEmail),
	}

	sess, err := session.New(params)
	if err != nil {
		return "", "", err
	}
	return sess.URL, sess.ID, nil
}

// RefundBySession refunds the payment behind a completed checkout session.
func (s *StripeService) RefundBySession(sessionID string) (string, error) {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return "", err
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return "", fmt.Errorf("no payment intent found for session %s", sessionID)
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
	}
	ref, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

// SessionPaid reports whether the provider settled the session, used by the
// pull-verification fallback when a webhook goes missing.
func (s *StripeService) SessionPaid(sessionID string) (bool, error) {
	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return false, err
	}
	return sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

// SessionIDByPaymentIntent resolves the checkout session behind a payment
// intent, needed for charge.refunded events which only carry the intent.
func (s *StripeService) SessionIDByPaymentIntent(paymentIntentID string) (string, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: &paymentIntentID,
	}
	params.Limit = stripe.Int64(1)
	it := session.List(params)
	for it.Next() {
		sess := it.CheckoutSession()
		if sess != nil && sess.ID != "" {
			return sess.ID, nil
		}
	}
	if err := it.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no session found for payment intent %s", paymentIntentID)
}
