// Package tree models the Vending-System state tree and the stores that
// persist it. The tree is the system of record: every machine owns one node
// with a client-written request and relay-written response/status children.
package tree

import "encoding/json"

// RootPath is the subtree all machine nodes live under.
const RootPath = "Vending-System"

// Response status written while a charge awaits settlement.
const ResponsePending = "pending"

// Terminal payment status written when the poll deadline elapses.
const PaymentExpired = "expired"

// Request is the client-submitted payment request for a machine.
type Request struct {
	Time     string            `json:"time"`
	Amount   json.Number       `json:"amount"`
	Location string            `json:"location"`
	Items    []json.RawMessage `json:"items,omitempty"`
}

// Response records the outcome of the create-charge call. Either QRString or
// Error is set. RequestTime echoes the request's own timestamp and is what
// marks a request as handled.
type Response struct {
	QRString    string      `json:"qrString,omitempty"`
	Error       string      `json:"error,omitempty"`
	Amount      json.Number `json:"amount,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
	RequestTime string      `json:"requestTime"`
	Status      string      `json:"status,omitempty"`
}

// Status is the latest poll observation for a machine's transaction.
// Overwritten on every poll; no history is kept.
type Status struct {
	PaymentStatus string      `json:"payment_status"`
	TranID        string      `json:"tran_id"`
	Amount        json.Number `json:"amount,omitempty"`
	Apv           string      `json:"apv,omitempty"`
	Currency      string      `json:"currency,omitempty"`
	PaymentAmount json.Number `json:"payment_amount,omitempty"`
	Timestamp     string      `json:"timestamp"`
}

// MachineRecord is one machine's node in the tree.
type MachineRecord struct {
	Request  *Request        `json:"request,omitempty"`
	Response *Response       `json:"response,omitempty"`
	Status   *Status         `json:"status,omitempty"`
	Callback json.RawMessage `json:"callback,omitempty"`
}

// Empty reports whether the record carries no data at all.
func (r *MachineRecord) Empty() bool {
	return r.Request == nil && r.Response == nil && r.Status == nil && len(r.Callback) == 0
}

// Snapshot is the full tree keyed by machine id. A nil snapshot is a valid
// empty tree.
type Snapshot map[string]MachineRecord
