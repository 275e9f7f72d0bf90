package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumenisp/netbill/internal/pkg/env"
)

// WhatsAppClient talks to an HTTP WhatsApp gateway (wablas/fonnte style API:
// token auth header, JSON body with phone and message).
type WhatsAppClient struct {
	Endpoint string
	Token    string
	Sender   string

	HTTPClient *http.Client
}

// NewWhatsAppClientFromEnv builds the client from environment config.
func NewWhatsAppClientFromEnv() *WhatsAppClient {
	return &WhatsAppClient{
		Endpoint: strings.TrimRight(strings.TrimSpace(env.GetEnv("WHATSAPP_GATEWAY_URL", "")), "/"),
		Token:    strings.TrimSpace(env.GetEnv("WHATSAPP_GATEWAY_TOKEN", "")),
		Sender:   strings.TrimSpace(env.GetEnv("WHATSAPP_SENDER", "")),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SendMessage delivers one WhatsApp message to a phone number.
func (c *WhatsAppClient) SendMessage(ctx context.Context, phone, message string) error {
	if c.Endpoint == "" || c.Token == "" {
		return errors.New("whatsapp gateway is not configured")
	}
	phone = NormalizePhone(phone)
	if phone == "" {
		return errors.New("empty recipient phone number")
	}

	payload := map[string]string{
		"phone":   phone,
		"message": message,
	}
	if c.Sender != "" {
		payload["sender"] = c.Sender
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/send-message", bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp gateway returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// NormalizePhone converts local Indonesian numbers to international format
// and strips separators. "0812-3456" becomes "628123456".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case digits == "":
		return ""
	case strings.HasPrefix(digits, "0"):
		return "62" + digits[1:]
	default:
		return digits
	}
}
