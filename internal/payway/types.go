package payway

import "encoding/json"

// ChargeOrder carries everything the orchestrator knows about one payment
// cycle when it asks the gateway for a charge.
type ChargeOrder struct {
	Machine string
	ReqTime string
	TranID  string
	Amount  string
	Slot    string
	Items   []json.RawMessage
}

// ChargePayload is the create-charge request body. The field set, encodings,
// and the concatenation order used by signCharge are contractual: any change
// breaks the gateway's signature verification.
type ChargePayload struct {
	ReqTime         string `json:"req_time"`
	MerchantID      string `json:"merchant_id"`
	TranID          string `json:"tran_id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	PurchaseType    string `json:"purchase_type"`
	PaymentOption   string `json:"payment_option"`
	Items           string `json:"items"`        // base64 JSON array
	CallbackURL     string `json:"callback_url"` // base64
	ReturnParams    string `json:"return_params"`
	Lifetime        int    `json:"lifetime"`
	QRImageTemplate string `json:"qr_image_template"`
	Hash            string `json:"hash"`
}

// ChargeResponse is the gateway's answer to a create-charge call.
type ChargeResponse struct {
	QRString string      `json:"qrString"`
	Amount   json.Number `json:"amount"`
	Status   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
}

// CheckPayload is the check-transaction request body.
type CheckPayload struct {
	ReqTime    string `json:"req_time"`
	MerchantID string `json:"merchant_id"`
	TranID     string `json:"tran_id"`
	Hash       string `json:"hash"`
}

// CheckResponse is the gateway's answer to a check-transaction call.
type CheckResponse struct {
	Status struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"status"`
	Data struct {
		PaymentStatus   string      `json:"payment_status"`
		TotalAmount     json.Number `json:"total_amount"`
		Apv             string      `json:"apv"`
		PaymentCurrency string      `json:"payment_currency"`
		PaymentAmount   json.Number `json:"payment_amount"`
	} `json:"data"`
}

// Approved reports whether the transaction has settled: the call itself
// succeeded and the nested payment status reached its approved value.
func (r *CheckResponse) Approved() bool {
	return r.Status.Code == StatusCodeSuccess && r.Data.PaymentStatus == PaymentStatusApproved
}
