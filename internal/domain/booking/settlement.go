package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlatformFeeBasisPoints is the platform's share of every settled booking (18%).
const PlatformFeeBasisPoints = 1800

// PaymentMethod is how the client settles a completed booking.
type PaymentMethod string

const (
	PaymentCard         PaymentMethod = "card"
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentWallet       PaymentMethod = "wallet"
)

// IsValid returns true if the payment method is accepted.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCard, PaymentCash, PaymentBankTransfer, PaymentWallet:
		return true
	}
	return false
}

// Settlement is the fee split of an amount charged to the client.
type Settlement struct {
	PlatformFeeCents      int64 `json:"platform_fee_cents"`
	ProviderReceivesCents int64 `json:"provider_receives_cents"`
	TotalPaidCents        int64 `json:"total_paid_cents"`
}

// Settle splits amountCents between the platform and the provider.
//
// The fee is rounded half-up to the cent once and the provider receives the
// remainder, so the two parts always sum to the amount charged. The client
// pays amountCents and nothing on top.
func Settle(amountCents int64) (Settlement, error) {
	if amountCents < 0 {
		return Settlement{}, newError(KindInvalidPrice, "cannot settle a negative amount")
	}
	fee := (amountCents*PlatformFeeBasisPoints + 5000) / 10000
	return Settlement{
		PlatformFeeCents:      fee,
		ProviderReceivesCents: amountCents - fee,
		TotalPaidCents:        amountCents,
	}, nil
}

// Payment is the settlement record attached to a completed booking.
type Payment struct {
	Method                PaymentMethod `json:"method"`
	TransactionID         string        `json:"transaction_id"`
	ReceiptNumber         string        `json:"receipt_number"`
	PaidAt                time.Time     `json:"paid_at"`
	AmountPaidCents       int64         `json:"amount_paid_cents"`
	PlatformFeeCents      int64         `json:"platform_fee_cents"`
	ProviderReceivesCents int64         `json:"provider_receives_cents"`
}

// ReceiptNumber derives the receipt reference for a booking settled in year.
func ReceiptNumber(bookingNumber string, year int) string {
	return fmt.Sprintf("RCP-%d-%s", year, strings.TrimPrefix(bookingNumber, "BK-"))
}

// newPayment settles amountCents with method and builds the payment record.
func newPayment(bookingNumber string, method PaymentMethod, amountCents int64, now time.Time) (*Payment, error) {
	if !method.IsValid() {
		return nil, newError(KindInvalidPaymentMethod, "unsupported payment method %q", method)
	}
	s, err := Settle(amountCents)
	if err != nil {
		return nil, err
	}
	return &Payment{
		Method:                method,
		TransactionID:         "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		ReceiptNumber:         ReceiptNumber(bookingNumber, now.Year()),
		PaidAt:                now,
		AmountPaidCents:       s.TotalPaidCents,
		PlatformFeeCents:      s.PlatformFeeCents,
		ProviderReceivesCents: s.ProviderReceivesCents,
	}, nil
}
