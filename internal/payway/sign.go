package payway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
)

// EncodeItems renders an item list as the base64 JSON array the gateway
// expects. A nil list encodes as an empty array, never null.
func EncodeItems(items []json.RawMessage) (string, error) {
	if items == nil {
		items = []json.RawMessage{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// signCharge computes the create-charge signature: base64 of HMAC-SHA512 over
// the exact ordered concatenation of payload fields. The order differs from
// the JSON field order and must not be touched.
func signCharge(apiKey string, p *ChargePayload) string {
	var b strings.Builder
	for _, field := range []string{
		p.ReqTime,
		p.MerchantID,
		p.TranID,
		p.Amount,
		p.Items,
		p.FirstName,
		p.LastName,
		p.Email,
		p.Phone,
		p.PurchaseType,
		p.PaymentOption,
		p.CallbackURL,
		p.Currency,
		p.ReturnParams,
		strconv.Itoa(p.Lifetime),
		p.QRImageTemplate,
	} {
		b.WriteString(field)
	}
	return signHMAC(apiKey, b.String())
}

// signCheck computes the check-transaction signature over
// req_time + merchant_id + tran_id.
func signCheck(apiKey, reqTime, merchantID, tranID string) string {
	return signHMAC(apiKey, reqTime+merchantID+tranID)
}

func signHMAC(key, message string) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
