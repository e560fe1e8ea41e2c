package services

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
	"github.com/skip2/go-qrcode"
)

// UPIPayee is the restaurant's UPI receiving account.
type UPIPayee struct {
	VPA      string
	Name     string
	Currency string
}

// PaymentURI builds a upi://pay deep link for amount. The amount is rounded to two places.
func (p UPIPayee) PaymentURI(amount decimal.Decimal, note string) (string, error) {
	if p.VPA == "" {
		return "", invalid("upi", "UPI payments are not configured.")
	}
	if !amount.IsPositive() {
		return "", invalid("amount", "Amount must be greater than zero.")
	}
	v := url.Values{}
	v.Set("pa", p.VPA)
	if p.Name != "" {
		v.Set("pn", p.Name)
	}
	v.Set("am", amount.StringFixed(2))
	cur := p.Currency
	if cur == "" {
		cur = "INR"
	}
	v.Set("cu", cur)
	if note != "" {
		v.Set("tn", note)
	}
	return "upi://pay?" + v.Encode(), nil
}

// QRCode renders the payment link as a PNG of the given pixel size.
func (p UPIPayee) QRCode(amount decimal.Decimal, note string, size int) ([]byte, error) {
	uri, err := p.PaymentURI(amount, note)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(uri, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
