package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"parkingspace/internal/domain"
)

const receiptTimeLayout = "02 Jan 2006 15:04 MST"

type ReceiptService struct {
	signingKey []byte
	location   *time.Location
}

func NewReceiptService(signingKey string, location *time.Location) *ReceiptService {
	if location == nil {
		location = time.UTC
	}
	return &ReceiptService{signingKey: []byte(signingKey), location: location}
}

// QRPayload is "booking|slot|vehicle|checkout_unix|signature".
func (s *ReceiptService) QRPayload(b *domain.Booking) string {
	var checkout int64
	if b.CheckoutTime.Valid {
		checkout = b.CheckoutTime.Time.Unix()
	}
	data := fmt.Sprintf("%d|%s|%s|%d", b.ID, b.Slot.Name, b.Vehicle.Number, checkout)
	return data + "|" + s.sign(data)
}

// VerifyPayload checks the signature of a scanned receipt code and returns the booking it was issued for.
func (s *ReceiptService) VerifyPayload(payload string) domain.ReceiptVerification {
	i := strings.LastIndex(payload, "|")
	if i < 0 {
		return domain.ReceiptVerification{}
	}
	expected := s.sign(payload[:i])
	if !hmac.Equal([]byte(expected), []byte(payload[i+1:])) {
		return domain.ReceiptVerification{}
	}
	bookingID, err := strconv.Atoi(strings.SplitN(payload, "|", 2)[0])
	if err != nil {
		return domain.ReceiptVerification{}
	}
	return domain.ReceiptVerification{Valid: true, BookingID: bookingID}
}

func (s *ReceiptService) sign(data string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Render builds the PDF receipt for a checked-out booking.
func (s *ReceiptService) Render(view *domain.BookingView) ([]byte, error) {
	if !view.CheckedOut {
		return nil, fmt.Errorf("%w: booking %d has not been checked out", ErrInvalidTransition, view.ID)
	}

	qrPNG, err := qrcode.Encode(s.QRPayload(view.Booking), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("generating QR code: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Parking Receipt")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	lines := []string{
		fmt.Sprintf("Booking: #%d", view.ID),
		fmt.Sprintf("Name: %s", view.UserName),
		fmt.Sprintf("Slot: %s", view.Slot.Name),
		fmt.Sprintf("Vehicle: %s (%s wheeler)", view.Vehicle.Number, view.Vehicle.Type),
		fmt.Sprintf("Parked at: %s", view.StartTime.In(s.location).Format(receiptTimeLayout)),
		fmt.Sprintf("Checked out at: %s", view.CheckoutTime.Time.In(s.location).Format(receiptTimeLayout)),
		fmt.Sprintf("Amount: %.2f", view.Price),
		fmt.Sprintf("Payment: %s", view.PaymentMethod.ValueOrZero()),
	}
	for _, line := range lines {
		pdf.Cell(0, 10, line)
		pdf.Ln(8)
	}

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 150, 30, 40, 40, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering receipt: %w", err)
	}
	return buf.Bytes(), nil
}
