package paymentgateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/internal/pkg/env"
)

const xenditAPIBase = "https://api.xendit.co"

// XenditAdapter integrates the Xendit Invoice API. Webhooks are authenticated
// with a shared callback token sent in the x-callback-token header, not a
// payload signature.
type XenditAdapter struct {
	secretKey     string
	callbackToken string
	httpClient    *http.Client
	apiBase       string
}

type xenditInvoicePayload struct {
	ID         string  `json:"id"`
	ExternalID string  `json:"external_id"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount"`
	PaidAmount float64 `json:"paid_amount"`
	PaymentID  string  `json:"payment_id"`
}

// NewXenditAdapter creates the adapter with explicit credentials.
func NewXenditAdapter(secretKey, callbackToken string) *XenditAdapter {
	return &XenditAdapter{
		secretKey:     secretKey,
		callbackToken: callbackToken,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
		apiBase:       xenditAPIBase,
	}
}

// NewXenditAdapterFromEnv creates the adapter from environment config.
func NewXenditAdapterFromEnv() *XenditAdapter {
	return NewXenditAdapter(
		strings.TrimSpace(env.GetEnv("XENDIT_SECRET_KEY", "")),
		strings.TrimSpace(env.GetEnv("XENDIT_CALLBACK_TOKEN", "")),
	)
}

func (a *XenditAdapter) Name() string {
	return "xendit"
}

// VerifySignature compares the x-callback-token header against the configured
// callback token.
func (a *XenditAdapter) VerifySignature(req WebhookRequest) bool {
	if a.callbackToken == "" || req.Header == nil {
		return false
	}
	got := strings.TrimSpace(req.Header("x-callback-token"))
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(a.callbackToken)) == 1
}

// ParseWebhook normalizes a Xendit invoice callback payload.
func (a *XenditAdapter) ParseWebhook(body []byte) (*NormalizedPayload, error) {
	var payload xenditInvoicePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid xendit payload: %w", err)
	}
	if payload.ID == "" {
		return nil, errors.New("xendit payload missing id")
	}
	if payload.Status == "" {
		return nil, errors.New("xendit payload missing status")
	}

	txID := payload.PaymentID
	if txID == "" {
		txID = payload.ID
	}

	amount := int64(payload.PaidAmount)
	if amount == 0 {
		amount = int64(payload.Amount)
	}

	return &NormalizedPayload{
		TransactionID: txID,
		Status:        xenditStatusToNormalized(payload.Status),
		Amount:        amount,
		ExternalID:    payload.ExternalID,
		Raw:           string(body),
	}, nil
}

// CreatePaymentLink creates a Xendit invoice and returns its hosted URL. The
// invoice primary key travels in external_id so the webhook can find it.
func (a *XenditAdapter) CreatePaymentLink(invoice *models.Invoice, customer *models.Customer) (string, error) {
	if a.secretKey == "" {
		return "", errors.New("XENDIT_SECRET_KEY is not configured")
	}

	reqBody := map[string]any{
		"external_id": fmt.Sprintf("%d", invoice.ID),
		"amount":      invoice.Amount,
		"description": "Internet subscription invoice " + invoice.Number,
	}
	if customer != nil && customer.Email != "" {
		reqBody["payer_email"] = customer.Email
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, a.apiBase+"/v2/invoices", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(a.secretKey, "")
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("xendit invoice creation failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("xendit invoice creation returned %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		InvoiceURL string `json:"invoice_url"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("invalid xendit invoice response: %w", err)
	}
	if created.InvoiceURL == "" {
		return "", errors.New("xendit invoice response missing invoice_url")
	}
	return created.InvoiceURL, nil
}

// GetStatus fetches the current invoice status from Xendit.
func (a *XenditAdapter) GetStatus(ctx context.Context, transactionID string) (string, error) {
	if a.secretKey == "" {
		return "", errors.New("XENDIT_SECRET_KEY is not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiBase+"/v2/invoices/"+transactionID, nil)
	if err != nil {
		return "", err
	}
	httpReq.SetBasicAuth(a.secretKey, "")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("xendit status check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("xendit status check returned %d: %s", resp.StatusCode, string(body))
	}

	var payload xenditInvoicePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("invalid xendit status response: %w", err)
	}
	return xenditStatusToNormalized(payload.Status), nil
}

func xenditStatusToNormalized(status string) string {
	switch strings.ToUpper(status) {
	case "PAID", "SETTLED":
		return StatusSuccess
	case "PENDING":
		return StatusPending
	default:
		// EXPIRED and anything unexpected
		return StatusFailed
	}
}
