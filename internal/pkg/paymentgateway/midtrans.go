package paymentgateway

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/internal/pkg/env"
)

// MidtransAdapter integrates the Midtrans Snap/Core API. Webhook signatures
// are SHA512(order_id + status_code + gross_amount + server_key) per the
// Midtrans notification docs.
type MidtransAdapter struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
}

type midtransNotification struct {
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// NewMidtransAdapter creates the adapter with an explicit server key.
func NewMidtransAdapter(serverKey string, production bool) *MidtransAdapter {
	a := &MidtransAdapter{serverKey: serverKey}
	midtransEnv := midtrans.Sandbox
	if production {
		midtransEnv = midtrans.Production
	}
	a.snap.New(serverKey, midtransEnv)
	a.core.New(serverKey, midtransEnv)
	return a
}

// NewMidtransAdapterFromEnv creates the adapter from environment config.
func NewMidtransAdapterFromEnv() *MidtransAdapter {
	return NewMidtransAdapter(
		strings.TrimSpace(env.GetEnv("MIDTRANS_SERVER_KEY", "")),
		env.GetEnv("MIDTRANS_PRODUCTION", "false") == "true",
	)
}

func (a *MidtransAdapter) Name() string {
	return "midtrans"
}

// VerifySignature checks the embedded signature_key field.
func (a *MidtransAdapter) VerifySignature(req WebhookRequest) bool {
	if a.serverKey == "" {
		return false
	}

	var notif midtransNotification
	if err := json.Unmarshal(req.Body, &notif); err != nil {
		return false
	}
	if notif.SignatureKey == "" {
		return false
	}

	raw := notif.OrderID + notif.StatusCode + notif.GrossAmount + a.serverKey
	sum := sha512.Sum512([]byte(raw))
	want := strings.ToLower(strings.TrimSpace(notif.SignatureKey))
	got := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// ParseWebhook normalizes a Midtrans notification payload.
func (a *MidtransAdapter) ParseWebhook(body []byte) (*NormalizedPayload, error) {
	var notif midtransNotification
	if err := json.Unmarshal(body, &notif); err != nil {
		return nil, fmt.Errorf("invalid midtrans payload: %w", err)
	}
	if notif.TransactionID == "" {
		return nil, errors.New("midtrans payload missing transaction_id")
	}
	if notif.TransactionStatus == "" {
		return nil, errors.New("midtrans payload missing transaction_status")
	}

	amount := int64(0)
	if notif.GrossAmount != "" {
		if f, err := strconv.ParseFloat(notif.GrossAmount, 64); err == nil {
			amount = int64(f)
		}
	}

	return &NormalizedPayload{
		TransactionID: notif.TransactionID,
		Status:        midtransStatusToNormalized(notif.TransactionStatus, notif.FraudStatus),
		Amount:        amount,
		OrderID:       notif.OrderID,
		Raw:           string(body),
	}, nil
}

// CreatePaymentLink creates a Snap transaction and returns the redirect URL.
func (a *MidtransAdapter) CreatePaymentLink(invoice *models.Invoice, customer *models.Customer) (string, error) {
	if a.serverKey == "" {
		return "", errors.New("MIDTRANS_SERVER_KEY is not configured")
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  strconv.FormatUint(uint64(invoice.ID), 10),
			GrossAmt: invoice.Amount,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    invoice.Number,
				Price: invoice.Amount,
				Qty:   1,
				Name:  "Internet subscription " + invoice.InvoiceDate.Format("January 2006"),
			},
		},
	}
	if customer != nil {
		req.CustomerDetail = &midtrans.CustomerDetails{
			FName: customer.Name,
			Email: customer.Email,
			Phone: customer.Phone,
		}
	}

	resp, err := a.snap.CreateTransaction(req)
	if err != nil {
		return "", fmt.Errorf("midtrans snap transaction failed: %w", err)
	}
	return resp.RedirectURL, nil
}

// GetStatus polls the Core API for the current transaction status.
func (a *MidtransAdapter) GetStatus(ctx context.Context, transactionID string) (string, error) {
	_ = ctx // midtrans-go does not take a context
	resp, err := a.core.CheckTransaction(transactionID)
	if err != nil {
		return "", fmt.Errorf("midtrans status check failed: %w", err)
	}
	return midtransStatusToNormalized(resp.TransactionStatus, resp.FraudStatus), nil
}

func midtransStatusToNormalized(transactionStatus, fraudStatus string) string {
	switch strings.ToLower(transactionStatus) {
	case "capture":
		if strings.ToLower(fraudStatus) == "challenge" {
			return StatusPending
		}
		return StatusSuccess
	case "settlement":
		return StatusSuccess
	case "pending", "authorize":
		return StatusPending
	default:
		// deny, cancel, expire, failure
		return StatusFailed
	}
}
