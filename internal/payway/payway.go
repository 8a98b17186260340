// Package payway implements the ABA PayWay KHQR gateway contract: request
// timestamps, transaction ids, payload signing, and the HTTP client used to
// create charges and check transaction status.
package payway

import "time"

// Fixed payload values. The gateway recomputes the signature over these, so
// they are part of the wire contract, not tunables.
const (
	Currency        = "KHR"
	PurchaseType    = "purchase"
	PaymentOption   = "abapay_khqr"
	QRLifetime      = 30
	QRImageTemplate = "template2_color"

	PayerFirstName = "test"
	PayerLastName  = "ABA"
	PayerEmail     = "aba@gmail.com"
	PayerPhone     = "+85512345678"
)

// Check-transaction result values.
const (
	StatusCodeSuccess     = "00"
	PaymentStatusApproved = "APPROVED"
)

const tranIDPrefix = "tran-"

// reqTimeLayout renders a time as the gateway's req_time: 14 numeric
// characters, YYYYMMDDHHMMSS, always UTC.
const reqTimeLayout = "20060102150405"

// FormatReqTime formats t as a gateway req_time string.
func FormatReqTime(t time.Time) string {
	return t.UTC().Format(reqTimeLayout)
}

// TranID derives a transaction id from a req_time string. Ids are unique at
// one-second granularity, which is what the gateway keys transactions on.
func TranID(reqTime string) string {
	return tranIDPrefix + reqTime
}
