package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenisp/netbill/app/models"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"081234567890", "6281234567890"},
		{"0812-3456-7890", "6281234567890"},
		{"+62 812 3456 7890", "6281234567890"},
		{"6281234567890", "6281234567890"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestWhatsAppSendMessage(t *testing.T) {
	var got struct {
		Phone   string `json:"phone"`
		Message string `json:"message"`
		Sender  string `json:"sender"`
	}
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &WhatsAppClient{
		Endpoint:   srv.URL,
		Token:      "secret-token",
		Sender:     "628000000001",
		HTTPClient: srv.Client(),
	}

	err := client.SendMessage(context.Background(), "0812345", "halo")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", gotAuth)
	assert.Equal(t, "62812345", got.Phone)
	assert.Equal(t, "halo", got.Message)
	assert.Equal(t, "628000000001", got.Sender)
}

func TestWhatsAppSendMessageGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &WhatsAppClient{Endpoint: srv.URL, Token: "bad", HTTPClient: srv.Client()}
	err := client.SendMessage(context.Background(), "0812345", "halo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestWhatsAppSendMessageUnconfigured(t *testing.T) {
	client := &WhatsAppClient{HTTPClient: http.DefaultClient}
	assert.Error(t, client.SendMessage(context.Background(), "0812345", "halo"))
}

func TestSendBulkCollectsPerRecipientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 2 {
			http.Error(w, "nope", http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := &MultiSender{
		whatsapp:   &WhatsAppClient{Endpoint: srv.URL, Token: "tok", HTTPClient: srv.Client()},
		batchSize:  50,
		batchDelay: 0,
	}

	results := sender.SendBulk(context.Background(), ChannelWhatsApp, []Message{
		{Recipient: "0811", Body: "a"},
		{Recipient: "0812", Body: "b"},
		{Recipient: "0813", Body: "c"},
	})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestSendBulkHonorsBatchDelayAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := &MultiSender{
		whatsapp:   &WhatsAppClient{Endpoint: srv.URL, Token: "tok", HTTPClient: srv.Client()},
		batchSize:  1,
		batchDelay: time.Hour,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := sender.SendBulk(ctx, ChannelWhatsApp, []Message{
		{Recipient: "0811", Body: "a"},
		{Recipient: "0812", Body: "b"},
	})

	// first message is sent before any pause, second is aborted by the cancel
	require.Len(t, results, 2)
	assert.Error(t, results[1].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
}

func TestInvoiceCreatedMessage(t *testing.T) {
	customer := &models.Customer{Name: "Budi", Phone: "0812345"}
	invoice := &models.Invoice{
		Number:  "INV-202608-ABCD1234",
		Amount:  150000,
		DueDate: time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	}

	msg := InvoiceCreatedMessage(customer, invoice, "https://pay.example/abc")
	assert.Equal(t, "0812345", msg.Recipient)
	assert.Contains(t, msg.Body, "Budi")
	assert.Contains(t, msg.Body, "INV-202608-ABCD1234")
	assert.Contains(t, msg.Body, "Rp150.000")
	assert.Contains(t, msg.Body, "https://pay.example/abc")

	noLink := InvoiceCreatedMessage(customer, invoice, "")
	assert.NotContains(t, noLink.Body, "Bayar di sini")
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "500", formatRupiah(500))
	assert.Equal(t, "1.500", formatRupiah(1500))
	assert.Equal(t, "150.000", formatRupiah(150000))
	assert.Equal(t, "1.250.000", formatRupiah(1250000))
}
