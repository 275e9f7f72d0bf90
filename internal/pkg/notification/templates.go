package notification

import (
	"fmt"

	"github.com/lumenisp/netbill/app/models"
)

// Message templates for the subscriber lifecycle. Plain text, WhatsApp-first;
// the mailer wraps the same body in its HTML envelope.

func InvoiceCreatedMessage(customer *models.Customer, invoice *models.Invoice, paymentLink string) Message {
	body := fmt.Sprintf(
		"Halo %s,\n\nTagihan internet Anda %s sebesar Rp%s telah terbit. Jatuh tempo: %s.",
		customer.Name, invoice.Number, formatRupiah(invoice.Amount), invoice.DueDate.Format("02 Jan 2006"),
	)
	if paymentLink != "" {
		body += "\n\nBayar di sini: " + paymentLink
	}
	return Message{
		Recipient: customer.Phone,
		Subject:   "Tagihan " + invoice.Number,
		Body:      body,
	}
}

func PaymentConfirmedMessage(customer *models.Customer, invoice *models.Invoice) Message {
	return Message{
		Recipient: customer.Phone,
		Subject:   "Pembayaran diterima " + invoice.Number,
		Body: fmt.Sprintf(
			"Halo %s,\n\nPembayaran tagihan %s sebesar Rp%s sudah kami terima. Terima kasih!",
			customer.Name, invoice.Number, formatRupiah(invoice.Amount),
		),
	}
}

func ServiceIsolatedMessage(customer *models.Customer, invoice *models.Invoice) Message {
	return Message{
		Recipient: customer.Phone,
		Subject:   "Layanan internet dinonaktifkan sementara",
		Body: fmt.Sprintf(
			"Halo %s,\n\nLayanan internet Anda dinonaktifkan sementara karena tagihan %s belum dibayar. Silakan lakukan pembayaran untuk mengaktifkan kembali.",
			customer.Name, invoice.Number,
		),
	}
}

func ServiceRestoredMessage(customer *models.Customer) Message {
	return Message{
		Recipient: customer.Phone,
		Subject:   "Layanan internet aktif kembali",
		Body: fmt.Sprintf(
			"Halo %s,\n\nLayanan internet Anda sudah aktif kembali. Terima kasih atas pembayarannya!",
			customer.Name,
		),
	}
}

// formatRupiah renders an IDR amount with thousand dots, no decimals.
func formatRupiah(amount int64) string {
	s := fmt.Sprintf("%d", amount)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	return string(out)
}
