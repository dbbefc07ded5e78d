// Package payments charges cards through Stripe for the payment ledger.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"

	"parkingspace/internal/service"
)

// StripeCharger confirms a PaymentIntent per booking.
type StripeCharger struct {
	intents  paymentintent.Client
	currency string
}

func NewStripeCharger(secretKey, currency string) *StripeCharger {
	return &StripeCharger{
		intents:  paymentintent.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
		currency: currency,
	}
}

func (c *StripeCharger) Charge(ctx context.Context, amount float64, paymentMethodID string, bookingID int) (string, error) {
	minor := minorUnits(amount)
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(minor),
		Currency:           stripe.String(c.currency),
		PaymentMethod:      stripe.String(paymentMethodID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("booking_id", strconv.Itoa(bookingID))
	params.SetIdempotencyKey(idempotencyKey(bookingID, paymentMethodID, minor))

	pi, err := c.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return "", fmt.Errorf("%w: %s", service.ErrPaymentDeclined, stripeErr.Msg)
		}
		return "", fmt.Errorf("creating stripe payment intent: %w", err)
	}
	if err := checkIntent(pi); err != nil {
		return "", err
	}
	return pi.ID, nil
}

// idempotencyKey dedupes retries of the same charge. Another card or amount is a new attempt.
func idempotencyKey(bookingID int, paymentMethodID string, minor int64) string {
	return fmt.Sprintf("booking-%d-%s-%d", bookingID, paymentMethodID, minor)
}

func checkIntent(pi *stripe.PaymentIntent) error {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded, stripe.PaymentIntentStatusProcessing:
		return nil
	default:
		return fmt.Errorf("%w: payment intent %s is %s", service.ErrPaymentDeclined, pi.ID, pi.Status)
	}
}

// minorUnits converts a price to the smallest currency unit (paise, cents).
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
