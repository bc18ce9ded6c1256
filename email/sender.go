// Package email delivers invoices over SMTP.
package email

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	gomail "gopkg.in/gomail.v2"

	"github.com/billirae/billirae/model"
)

// Sender sends invoice mails with the rendered PDF attached.
type Sender struct {
	dialer *gomail.Dialer
	from   string
	log    zerolog.Logger
}

// NewSender creates a sender. With an empty host the sender reports itself
// unavailable and every send fails fast.
func NewSender(host string, port int, username, password, from string, log zerolog.Logger) *Sender {
	s := &Sender{from: from, log: log}
	if host != "" {
		s.dialer = gomail.NewDialer(host, port, username, password)
	}
	return s
}

// Available reports whether SMTP is configured.
func (s *Sender) Available() bool {
	return s.dialer != nil
}

// Message describes one outgoing invoice mail. Empty Subject and Body fall
// back to the German defaults.
type Message struct {
	Recipient string
	CC        []string
	Subject   string
	Body      string
}

// SendInvoice mails the invoice PDF to the recipient.
func (s *Sender) SendInvoice(msg Message, inv model.Invoice, sender model.User, pdf []byte) error {
	if s.dialer == nil {
		return errors.New("email: smtp is not configured")
	}
	if msg.Recipient == "" {
		return errors.New("email: recipient is required")
	}

	subject := msg.Subject
	if subject == "" {
		subject = fmt.Sprintf("Rechnung %s", inv.InvoiceNumber)
	}
	body := msg.Body
	if body == "" {
		body = fmt.Sprintf(
			"Guten Tag,\n\nanbei erhalten Sie die Rechnung %s über %.2f %s.\n\nMit freundlichen Grüßen\n%s",
			inv.InvoiceNumber, inv.Total, inv.Currency, sender.DisplayName())
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.Recipient)
	if len(msg.CC) > 0 {
		m.SetHeader("Cc", msg.CC...)
	}
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	m.Attach(fmt.Sprintf("Rechnung_%s.pdf", inv.InvoiceNumber),
		gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}))

	if err := s.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "email: send invoice")
	}
	s.log.Info().Str("invoice", inv.InvoiceNumber).Str("to", msg.Recipient).Msg("invoice mailed")
	return nil
}

// SendVerification greets a freshly registered account.
func (s *Sender) SendVerification(user model.User, baseURL string) error {
	if s.dialer == nil {
		return errors.New("email: smtp is not configured")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", "Willkommen bei Billirae")
	m.SetBody("text/plain", fmt.Sprintf(
		"Guten Tag %s,\n\nIhr Konto wurde erfolgreich angelegt. Sie können sich jetzt anmelden:\n%s\n\nMit freundlichen Grüßen\nIhr Billirae-Team",
		user.DisplayName(), baseURL))

	if err := s.dialer.DialAndSend(m); err != nil {
		return errors.Wrap(err, "email: send verification")
	}
	s.log.Info().Str("to", user.Email).Msg("verification mailed")
	return nil
}
