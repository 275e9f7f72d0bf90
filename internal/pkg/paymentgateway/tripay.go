package paymentgateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

const (
	tripayAPIBase        = "https://tripay.co.id/api"
	tripaySandboxAPIBase = "https://tripay.co.id/api-sandbox"
)

// TripayAdapter integrates the Tripay closed-payment API. Webhook signatures
// are HMAC-SHA256 over the raw request body with the private key, delivered
// in the X-Callback-Signature header.
type TripayAdapter struct {
	apiKey       string
	privateKey   string
	merchantCode string
	httpClient   *http.Client
	apiBase      string
}

type tripayCallbackPayload struct {
	Reference   string `json:"reference"`
	MerchantRef string `json:"merchant_ref"`
	Status      string `json:"status"`
	TotalAmount int64  `json:"total_amount"`
}

// NewTripayAdapter creates the adapter with explicit credentials.
func NewTripayAdapter(apiKey, privateKey, merchantCode string, production bool) *TripayAdapter {
	base := tripaySandboxAPIBase
	if production {
		base = tripayAPIBase
	}
	return &TripayAdapter{
		apiKey:       apiKey,
		privateKey:   privateKey,
		merchantCode: merchantCode,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		apiBase:      base,
	}
}

// NewTripayAdapterFromEnv creates the adapter from environment config.
func NewTripayAdapterFromEnv() *TripayAdapter {
	return NewTripayAdapter(
		strings.TrimSpace(env.GetEnv("TRIPAY_API_KEY", "")),
		strings.TrimSpace(env.GetEnv("TRIPAY_PRIVATE_KEY", "")),
		strings.TrimSpace(env.GetEnv("TRIPAY_MERCHANT_CODE", "")),
		env.GetEnv("TRIPAY_PRODUCTION", "false") == "true",
	)
}

func (a *TripayAdapter) Name() string {
	return "tripay"
}

// VerifySignature recomputes the HMAC over the exact raw body bytes.
func (a *TripayAdapter) VerifySignature(req WebhookRequest) bool {
	if a.privateKey == "" || req.Header == nil {
		return false
	}
	got := strings.TrimSpace(req.Header("X-Callback-Signature"))
	if got == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.privateKey))
	mac.Write(req.Body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}

// ParseWebhook normalizes a Tripay payment callback payload.
func (a *TripayAdapter) ParseWebhook(body []byte) (*NormalizedPayload, error) {
	var payload tripayCallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid tripay payload: %w", err)
	}
	if payload.Reference == "" {
		return nil, errors.New("tripay payload missing reference")
	}
	if payload.Status == "" {
		return nil, errors.New("tripay payload missing status")
	}

	return &NormalizedPayload{
		TransactionID: payload.Reference,
		Status:        tripayStatusToNormalized(payload.Status),
		Amount:        payload.TotalAmount,
		InvoiceID:     payload.MerchantRef,
		Raw:           string(body),
	}, nil
}

// CreatePaymentLink creates a closed-payment transaction and returns the
// checkout URL. The request signature is HMAC-SHA256 over merchant code +
// merchant ref + amount.
func (a *TripayAdapter) CreatePaymentLink(invoice *models.Invoice, customer *models.Customer) (string, error) {
	if a.apiKey == "" || a.privateKey == "" || a.merchantCode == "" {
		return "", errors.New("tripay credentials are not configured")
	}

	merchantRef := fmt.Sprintf("%d", invoice.ID)
	mac := hmac.New(sha256.New, []byte(a.privateKey))
	fmt.Fprintf(mac, "%s%s%d", a.merchantCode, merchantRef, invoice.Amount)

	reqBody := map[string]any{
		"method":       env.GetEnv("TRIPAY_PAYMENT_METHOD", "QRIS"),
		"merchant_ref": merchantRef,
		"amount":       invoice.Amount,
		"signature":    hex.EncodeToString(mac.Sum(nil)),
		"order_items": []map[string]any{
			{
				"sku":      invoice.Number,
				"name":     "Internet subscription " + invoice.InvoiceDate.Format("January 2006"),
				"price":    invoice.Amount,
				"quantity": 1,
			},
		},
	}
	if customer != nil {
		reqBody["customer_name"] = customer.Name
		reqBody["customer_email"] = customer.Email
		reqBody["customer_phone"] = customer.Phone
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequest(http.MethodPost, a.apiBase+"/transaction/create", bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("tripay transaction creation failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tripay transaction creation returned %d: %s", resp.StatusCode, string(body))
	}

	var created struct {
		Success bool `json:"success"`
		Data    struct {
			CheckoutURL string `json:"checkout_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("invalid tripay response: %w", err)
	}
	if !created.Success || created.Data.CheckoutURL == "" {
		return "", errors.New("tripay transaction response missing checkout_url")
	}
	return created.Data.CheckoutURL, nil
}

// GetStatus fetches the current transaction detail from Tripay.
func (a *TripayAdapter) GetStatus(ctx context.Context, transactionID string) (string, error) {
	if a.apiKey == "" {
		return "", errors.New("TRIPAY_API_KEY is not configured")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		a.apiBase+"/transaction/detail?reference="+transactionID, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("tripay status check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("tripay status check returned %d: %s", resp.StatusCode, string(body))
	}

	var detail struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &detail); err != nil {
		return "", fmt.Errorf("invalid tripay status response: %w", err)
	}
	return tripayStatusToNormalized(detail.Data.Status), nil
}

func tripayStatusToNormalized(status string) string {
	switch strings.ToUpper(status) {
	case "PAID":
		return StatusSuccess
	case "UNPAID":
		return StatusPending
	default:
		// EXPIRED, FAILED, REFUND
		return StatusFailed
	}
}
