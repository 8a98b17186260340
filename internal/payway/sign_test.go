package payway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "testkey"

// Reference vectors computed with an independent HMAC-SHA512 implementation.
// They pin the field order and encodings of the signature contract: if either
// changes, these fail before the gateway does.
const (
	createVector = "BN2l4a0UKw7U414JkJuj6Ubtg+HBjKD07Lq5/4hlALaCWiqmYK6RdfN11e0DyC/975sVIAjZehWZ2y/6p7fj/g=="
	checkVector  = "byp49XuFQRcnRz8geJ8Y3NdgZymTx3lM5OldqpxVnxMkrGQ3FTP/Oz2r3kt3+3jIFwgcK9kUbBFwqMNwVJvCvQ=="
)

func sampleChargePayload() *ChargePayload {
	return &ChargePayload{
		ReqTime:         "20250101120000",
		MerchantID:      "ec438001",
		TranID:          "tran-20250101120000",
		FirstName:       PayerFirstName,
		LastName:        PayerLastName,
		Email:           PayerEmail,
		Phone:           PayerPhone,
		Amount:          "500",
		Currency:        Currency,
		PurchaseType:    PurchaseType,
		PaymentOption:   PaymentOption,
		Items:           "W10=",
		CallbackURL:     "aHR0cHM6Ly9yZWxheS5leGFtcGxlLmNvbS9WZW5kaW5nLVN5c3RlbS9WTS0wMS9jYWxsYmFjay5qc29u",
		ReturnParams:    "Machine: VM-01,Amount: 500,Slot_Number: A1",
		Lifetime:        QRLifetime,
		QRImageTemplate: QRImageTemplate,
	}
}

func TestSignChargeMatchesReference(t *testing.T) {
	assert.Equal(t, createVector, signCharge(testAPIKey, sampleChargePayload()))
}

func TestSignChargeSensitiveToFieldChanges(t *testing.T) {
	p := sampleChargePayload()
	p.Amount = "501"
	assert.NotEqual(t, createVector, signCharge(testAPIKey, p))

	p = sampleChargePayload()
	assert.NotEqual(t, createVector, signCharge("otherkey", p))
}

func TestSignCheckMatchesReference(t *testing.T) {
	got := signCheck(testAPIKey, "20250101120000", "ec438001", "tran-20250101120000")
	assert.Equal(t, checkVector, got)
}

func TestEncodeItems(t *testing.T) {
	empty, err := EncodeItems(nil)
	require.NoError(t, err)
	assert.Equal(t, "W10=", empty, "nil items must encode as an empty array")

	items := []json.RawMessage{json.RawMessage(`{"name":"Coke","price":500}`)}
	encoded, err := EncodeItems(items)
	require.NoError(t, err)
	assert.Equal(t, "W3sibmFtZSI6IkNva2UiLCJwcmljZSI6NTAwfV0=", encoded)
}

func TestFormatReqTime(t *testing.T) {
	ict := time.FixedZone("ICT", 7*3600)
	ts := time.Date(2025, time.January, 1, 19, 0, 0, 0, ict)
	assert.Equal(t, "20250101120000", FormatReqTime(ts), "req_time is always UTC")
}

func TestTranID(t *testing.T) {
	assert.Equal(t, "tran-20250101120000", TranID("20250101120000"))
}
