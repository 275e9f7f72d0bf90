package paymentgateway

import (
	"context"
	"strings"

	"github.com/lumenisp/netbill/app/models"
	"github.com/lumenisp/netbill/internal/pkg/env"
)

// Normalized transaction statuses shared by all gateways.
const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// WebhookRequest is the transport-neutral view of an inbound webhook the
// adapters need: the raw body (signatures are computed over the exact bytes)
// and a header accessor.
type WebhookRequest struct {
	Body   []byte
	Header func(key string) string
}

// NormalizedPayload is the gateway-agnostic shape of a payment notification.
// ExternalID, InvoiceID and OrderID are the candidate invoice references in
// the order the processor tries them.
type NormalizedPayload struct {
	TransactionID string
	Status        string
	Amount        int64
	ExternalID    string
	InvoiceID     string
	OrderID       string
	Raw           string
}

// Adapter is the per-gateway capability set: signature verification, payload
// normalization, payment link creation and status polling.
type Adapter interface {
	Name() string
	VerifySignature(req WebhookRequest) bool
	ParseWebhook(body []byte) (*NormalizedPayload, error)
	CreatePaymentLink(invoice *models.Invoice, customer *models.Customer) (string, error)
	GetStatus(ctx context.Context, transactionID string) (string, error)
}

// Registry holds the adapters, resolved once at construction. Gateway lookup
// by path segment happens against this fixed set; there is no dynamic
// dispatch beyond it.
type Registry struct {
	adapters    map[string]Adapter
	defaultName string
}

// NewRegistry builds a registry from explicit adapters. The first adapter is
// the default used for outbound payment link creation.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		name := strings.ToLower(a.Name())
		r.adapters[name] = a
		if r.defaultName == "" {
			r.defaultName = name
		}
	}
	return r
}

// NewRegistryFromEnv wires up all supported gateways with credentials from
// the environment. DEFAULT_PAYMENT_GATEWAY picks the adapter used for
// outbound links (default midtrans).
func NewRegistryFromEnv() *Registry {
	r := NewRegistry(
		NewMidtransAdapterFromEnv(),
		NewXenditAdapterFromEnv(),
		NewTripayAdapterFromEnv(),
	)
	if def := strings.ToLower(strings.TrimSpace(env.GetEnv("DEFAULT_PAYMENT_GATEWAY", ""))); def != "" {
		if _, ok := r.adapters[def]; ok {
			r.defaultName = def
		}
	}
	return r
}

// Get returns the adapter for a gateway name, if registered.
func (r *Registry) Get(name string) (Adapter, bool) {
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Default returns the adapter used for outbound payment links.
func (r *Registry) Default() Adapter {
	return r.adapters[r.defaultName]
}

// Names lists the registered gateway names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	return names
}
