package domain

import "time"

type Payment struct {
	ID        int       `json:"id"`
	BookingID int       `json:"booking_id"`
	Method    string    `json:"payment_method"`
	Amount    float64   `json:"price"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"date"`
}

type RecordPaymentDTO struct {
	BookingID int    `json:"booking_id" binding:"required,min=1"`
	Method    string `json:"payment_method" binding:"required,max=50"`
	// PaymentMethodID is a card token from the payment provider. Empty for cash and offline payments.
	PaymentMethodID string `json:"payment_method_id"`
}

// PaymentMessage is the body of a payment confirmation delivered through the payment queue.
type PaymentMessage struct {
	BookingID int       `json:"booking_id"`
	Method    string    `json:"method"`
	Amount    float64   `json:"amount"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paid_at"`
}
