// Package payments implements the YooKassa payment gateway client used
// for subscription purchases.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://api.yookassa.ru/v3"

// Payment gateway statuses.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// Payment is the gateway's view of one payment.
type Payment struct {
	ID              string
	Status          string
	Paid            bool
	ConfirmationURL string
	Metadata        map[string]string
}

// Client talks to the YooKassa REST API using shop credentials.
type Client struct {
	baseURL    string
	shopID     string
	secretKey  string
	returnURL  string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a gateway client. returnURL is where the user lands
// after completing the payment form.
func NewClient(shopID, secretKey, returnURL string, options ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		shopID:     shopID,
		secretKey:  secretKey,
		returnURL:  returnURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

type createPaymentRequest struct {
	Amount       apiAmount         `json:"amount"`
	Confirmation apiConfirmation   `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type apiAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type apiConfirmation struct {
	Type      string `json:"type"`
	ReturnURL string `json:"return_url,omitempty"`
}

type apiPayment struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Confirmation apiConfirmation2  `json:"confirmation"`
	Metadata     map[string]string `json:"metadata"`
}

type apiConfirmation2 struct {
	ConfirmationURL string `json:"confirmation_url"`
}

type apiError struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Create starts a payment for amount rubles and returns the payment id
// and the confirmation URL the user must visit. Each call carries a
// fresh idempotence key.
func (c *Client) Create(ctx context.Context, amount float64, description string, userID int64, subscriptionType string) (Payment, error) {
	reqBody := createPaymentRequest{
		Amount:       apiAmount{Value: strconv.FormatFloat(amount, 'f', 2, 64), Currency: "RUB"},
		Confirmation: apiConfirmation{Type: "redirect", ReturnURL: c.returnURL},
		Capture:      true,
		Description:  description,
		Metadata: map[string]string{
			"user_id":           strconv.FormatInt(userID, 10),
			"subscription_type": subscriptionType,
		},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return Payment{}, fmt.Errorf("encode payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(data))
	if err != nil {
		return Payment{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.SetBasicAuth(c.shopID, c.secretKey)

	return c.doPayment(req)
}

// Check fetches the current state of a payment by its gateway id.
func (c *Client) Check(ctx context.Context, paymentID string) (Payment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/payments/"+paymentID, nil)
	if err != nil {
		return Payment{}, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	return c.doPayment(req)
}

func (c *Client) doPayment(req *http.Request) (Payment, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Payment{}, fmt.Errorf("payment gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payment{}, fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Description != "" {
			return Payment{}, fmt.Errorf("payment gateway error (%s): %s", apiErr.Code, apiErr.Description)
		}
		return Payment{}, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var parsed apiPayment
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Payment{}, fmt.Errorf("decode gateway response: %w", err)
	}
	if parsed.ID == "" {
		return Payment{}, fmt.Errorf("gateway response has no payment id")
	}
	return Payment{
		ID:              parsed.ID,
		Status:          parsed.Status,
		Paid:            parsed.Paid,
		ConfirmationURL: parsed.Confirmation.ConfirmationURL,
		Metadata:        parsed.Metadata,
	}, nil
}
