package payway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config configures the gateway client.
type Config struct {
	// CheckoutURL is the create-charge endpoint.
	CheckoutURL string

	// CheckURL is the check-transaction endpoint.
	CheckURL string

	// MerchantID identifies this merchant to the gateway.
	MerchantID string

	// APIKey is the HMAC signing key.
	APIKey string

	// CallbackBase is the externally reachable base URL of this relay, used
	// to build per-machine callback URLs.
	CallbackBase string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s).
	Timeout time.Duration
}

// Client talks to the ABA PayWay gateway over HTTP.
type Client struct {
	checkoutURL  string
	checkURL     string
	merchantID   string
	apiKey       string
	callbackBase string
	httpClient   *http.Client
}

// NewClient creates a gateway client from config.
func NewClient(config *Config) *Client {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		checkoutURL:  config.CheckoutURL,
		checkURL:     config.CheckURL,
		merchantID:   config.MerchantID,
		apiKey:       config.APIKey,
		callbackBase: strings.TrimRight(config.CallbackBase, "/"),
		httpClient:   httpClient,
	}
}

// CallbackURL returns the tree path the gateway notifies for a machine.
func (c *Client) CallbackURL(machine string) string {
	return fmt.Sprintf("%s/Vending-System/%s/callback.json", c.callbackBase, machine)
}

// CreateCharge submits a signed create-charge request and returns the QR
// payload. A gateway response without a QR string is treated as a refusal.
func (c *Client) CreateCharge(ctx context.Context, order ChargeOrder) (*ChargeResponse, error) {
	items, err := EncodeItems(order.Items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}

	callback := base64.StdEncoding.EncodeToString([]byte(c.CallbackURL(order.Machine)))
	returnParams := fmt.Sprintf("Machine: %s,Amount: %s,Slot_Number: %s", order.Machine, order.Amount, order.Slot)

	payload := &ChargePayload{
		ReqTime:         order.ReqTime,
		MerchantID:      c.merchantID,
		TranID:          order.TranID,
		FirstName:       PayerFirstName,
		LastName:        PayerLastName,
		Email:           PayerEmail,
		Phone:           PayerPhone,
		Amount:          order.Amount,
		Currency:        Currency,
		PurchaseType:    PurchaseType,
		PaymentOption:   PaymentOption,
		Items:           items,
		CallbackURL:     callback,
		ReturnParams:    returnParams,
		Lifetime:        QRLifetime,
		QRImageTemplate: QRImageTemplate,
	}
	payload.Hash = signCharge(c.apiKey, payload)

	var charge ChargeResponse
	if err := c.post(ctx, c.checkoutURL, payload, &charge); err != nil {
		return nil, fmt.Errorf("create charge: %w", err)
	}

	if charge.QRString == "" {
		return nil, fmt.Errorf("gateway refused charge (code %q): %s", charge.Status.Code, charge.Status.Message)
	}
	return &charge, nil
}

// CheckTransaction submits a signed check-transaction request for a
// transaction id.
func (c *Client) CheckTransaction(ctx context.Context, reqTime, tranID string) (*CheckResponse, error) {
	payload := &CheckPayload{
		ReqTime:    reqTime,
		MerchantID: c.merchantID,
		TranID:     tranID,
		Hash:       signCheck(c.apiKey, reqTime, c.merchantID, tranID),
	}

	var check CheckResponse
	if err := c.post(ctx, c.checkURL, payload, &check); err != nil {
		return nil, fmt.Errorf("check transaction: %w", err)
	}
	return &check, nil
}

func (c *Client) post(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(responseBody))
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
