package payment

import (
	"fmt"
	"net/url"
)

const qrImageService = "https://api.qrserver.com/v1/create-qr-code/"

// BuildUPILink builds a upi://pay deep link. Amount is rendered with
// two decimals and the currency is fixed to INR.
func BuildUPILink(payeeID, payeeName string, amount float64, note string) string {
	params := url.Values{}
	params.Set("pa", payeeID)
	params.Set("pn", payeeName)
	params.Set("am", fmt.Sprintf("%.2f", amount))
	params.Set("cu", "INR")
	if note != "" {
		params.Set("tn", note)
	}
	return "upi://pay?" + params.Encode()
}

// UPIQRCodeURL renders the deep link as a scannable QR image through a
// third-party image service.
func UPIQRCodeURL(upiLink string) string {
	params := url.Values{}
	params.Set("size", "220x220")
	params.Set("data", upiLink)
	return qrImageService + "?" + params.Encode()
}
