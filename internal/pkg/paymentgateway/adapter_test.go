package paymentgateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func midtransBody(orderID, statusCode, grossAmount, serverKey, status string) []byte {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return []byte(fmt.Sprintf(
		`{"transaction_id":"tx-1","transaction_status":"%s","order_id":"%s","status_code":"%s","gross_amount":"%s","signature_key":"%s"}`,
		status, orderID, statusCode, grossAmount, hex.EncodeToString(sum[:]),
	))
}

func TestMidtransVerifySignature(t *testing.T) {
	adapter := NewMidtransAdapter("server-key", false)

	body := midtransBody("42", "200", "150000.00", "server-key", "settlement")
	assert.True(t, adapter.VerifySignature(WebhookRequest{Body: body}))

	tampered := midtransBody("42", "200", "150000.00", "wrong-key", "settlement")
	assert.False(t, adapter.VerifySignature(WebhookRequest{Body: tampered}))

	assert.False(t, adapter.VerifySignature(WebhookRequest{Body: []byte(`{"order_id":"42"}`)}))
	assert.False(t, adapter.VerifySignature(WebhookRequest{Body: []byte(`not json`)}))
}

func TestMidtransParseWebhook(t *testing.T) {
	adapter := NewMidtransAdapter("server-key", false)

	payload, err := adapter.ParseWebhook(midtransBody("42", "200", "150000.00", "server-key", "settlement"))
	require.NoError(t, err)
	assert.Equal(t, "tx-1", payload.TransactionID)
	assert.Equal(t, StatusSuccess, payload.Status)
	assert.Equal(t, int64(150000), payload.Amount)
	assert.Equal(t, "42", payload.OrderID)

	_, err = adapter.ParseWebhook([]byte(`{"transaction_status":"settlement"}`))
	assert.Error(t, err)
	_, err = adapter.ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestMidtransStatusMapping(t *testing.T) {
	assert.Equal(t, StatusSuccess, midtransStatusToNormalized("settlement", ""))
	assert.Equal(t, StatusSuccess, midtransStatusToNormalized("capture", "accept"))
	assert.Equal(t, StatusPending, midtransStatusToNormalized("capture", "challenge"))
	assert.Equal(t, StatusPending, midtransStatusToNormalized("pending", ""))
	assert.Equal(t, StatusFailed, midtransStatusToNormalized("deny", ""))
	assert.Equal(t, StatusFailed, midtransStatusToNormalized("expire", ""))
	assert.Equal(t, StatusFailed, midtransStatusToNormalized("cancel", ""))
}

func TestXenditVerifySignature(t *testing.T) {
	adapter := NewXenditAdapter("secret", "callback-token")

	header := func(token string) func(string) string {
		return func(key string) string {
			if key == "x-callback-token" {
				return token
			}
			return ""
		}
	}

	assert.True(t, adapter.VerifySignature(WebhookRequest{Header: header("callback-token")}))
	assert.False(t, adapter.VerifySignature(WebhookRequest{Header: header("wrong")}))
	assert.False(t, adapter.VerifySignature(WebhookRequest{Header: header("")}))

	unconfigured := NewXenditAdapter("secret", "")
	assert.False(t, unconfigured.VerifySignature(WebhookRequest{Header: header("")}))
}

func TestXenditParseWebhook(t *testing.T) {
	adapter := NewXenditAdapter("secret", "callback-token")

	payload, err := adapter.ParseWebhook([]byte(
		`{"id":"inv-xnd-1","external_id":"42","status":"PAID","amount":150000,"paid_amount":150000,"payment_id":"pay-1"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "pay-1", payload.TransactionID)
	assert.Equal(t, StatusSuccess, payload.Status)
	assert.Equal(t, int64(150000), payload.Amount)
	assert.Equal(t, "42", payload.ExternalID)

	// payment_id absent, falls back to the xendit invoice id
	payload, err = adapter.ParseWebhook([]byte(`{"id":"inv-xnd-2","external_id":"43","status":"EXPIRED","amount":90000}`))
	require.NoError(t, err)
	assert.Equal(t, "inv-xnd-2", payload.TransactionID)
	assert.Equal(t, StatusFailed, payload.Status)
	assert.Equal(t, int64(90000), payload.Amount)

	_, err = adapter.ParseWebhook([]byte(`{"status":"PAID"}`))
	assert.Error(t, err)
}

func TestTripayVerifySignature(t *testing.T) {
	adapter := NewTripayAdapter("api-key", "private-key", "T001", false)

	body := []byte(`{"reference":"T001REF","merchant_ref":"42","status":"PAID","total_amount":150000}`)
	mac := hmac.New(sha256.New, []byte("private-key"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	header := func(value string) func(string) string {
		return func(key string) string {
			if key == "X-Callback-Signature" {
				return value
			}
			return ""
		}
	}

	assert.True(t, adapter.VerifySignature(WebhookRequest{Body: body, Header: header(sig)}))
	assert.False(t, adapter.VerifySignature(WebhookRequest{Body: body, Header: header("deadbeef")}))
	assert.False(t, adapter.VerifySignature(WebhookRequest{Body: []byte(`{}`), Header: header(sig)}))
	assert.False(t, adapter.VerifySignature(WebhookRequest{Body: body, Header: header("")}))
}

func TestTripayParseWebhook(t *testing.T) {
	adapter := NewTripayAdapter("api-key", "private-key", "T001", false)

	payload, err := adapter.ParseWebhook([]byte(
		`{"reference":"T001REF","merchant_ref":"42","status":"PAID","total_amount":150000}`,
	))
	require.NoError(t, err)
	assert.Equal(t, "T001REF", payload.TransactionID)
	assert.Equal(t, StatusSuccess, payload.Status)
	assert.Equal(t, "42", payload.InvoiceID)
	assert.Equal(t, int64(150000), payload.Amount)

	payload, err = adapter.ParseWebhook([]byte(`{"reference":"T001REF","merchant_ref":"42","status":"UNPAID"}`))
	require.NoError(t, err)
	assert.Equal(t, StatusPending, payload.Status)

	_, err = adapter.ParseWebhook([]byte(`{"status":"PAID"}`))
	assert.Error(t, err)
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(
		NewMidtransAdapter("server-key", false),
		NewXenditAdapter("secret", "token"),
		NewTripayAdapter("api-key", "private-key", "T001", false),
	)

	adapter, ok := registry.Get("midtrans")
	require.True(t, ok)
	assert.Equal(t, "midtrans", adapter.Name())

	adapter, ok = registry.Get(" Tripay ")
	require.True(t, ok)
	assert.Equal(t, "tripay", adapter.Name())

	_, ok = registry.Get("paypal")
	assert.False(t, ok)

	// first registered adapter is the default
	assert.Equal(t, "midtrans", registry.Default().Name())
	assert.Len(t, registry.Names(), 3)
}
