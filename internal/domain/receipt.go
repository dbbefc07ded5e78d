package domain

type VerifyReceiptDTO struct {
	Payload string `json:"payload" binding:"required,max=512"`
}

// ReceiptVerification is the result of checking a scanned receipt QR code.
type ReceiptVerification struct {
	Valid     bool `json:"valid"`
	BookingID int  `json:"booking_id,omitempty"`
}
