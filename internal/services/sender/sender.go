// Package sender отправляет пользователям письма по событиям из очереди уведомлений.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/finwire/finwire/internal/lib/sl"
	"github.com/finwire/finwire/internal/lib/smtp"
	"github.com/finwire/finwire/internal/models"
)

const dateLayout = "02.01.2006"

type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// HandleTransition пишет пользователю о смене состояния подписки.
// Битые сообщения и переходы без адресата пропускаются без повторной доставки.
func (s *Service) HandleTransition(body []byte) error {
	const op = "sender.HandleTransition"
	log := s.log.With(slog.String("op", op))

	var tr models.Transition
	if err := json.Unmarshal(body, &tr); err != nil {
		log.Error("dropping malformed message", sl.Err(err))
		return nil
	}
	if tr.Email == "" {
		log.Info("no recipient, skipping", slog.String("subscription_id", tr.Subscription.ID))
		return nil
	}

	subject, text, ok := transitionMail(tr)
	if !ok {
		return nil
	}
	if err := s.sendEmail([]string{tr.Email}, subject, text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func transitionMail(tr models.Transition) (string, string, bool) {
	name := tr.UserName
	if name == "" {
		name = "subscriber"
	}
	product := tr.ProductHeading
	switch tr.To {
	case models.SubscriptionActive:
		until := ""
		if tr.Subscription.EndDate != nil {
			until = " until " + tr.Subscription.EndDate.Format(dateLayout)
		}
		return "Your subscription is active",
			fmt.Sprintf("Hello, %s!\n\nYour subscription to %s is now active%s.\n\nEnjoy reading.", name, product, until), true
	case models.SubscriptionExpired:
		return "Your subscription has expired",
			fmt.Sprintf("Hello, %s!\n\nYour subscription to %s has expired.\n\nRenew it to keep full access.", name, product), true
	case models.SubscriptionCancelled:
		return "Your subscription was cancelled",
			fmt.Sprintf("Hello, %s!\n\nYour subscription to %s was cancelled.", name, product), true
	}
	return "", "", false
}

// HandleUpcoming напоминает о подписке, которая заканчивается завтра.
func (s *Service) HandleUpcoming(body []byte) error {
	const op = "sender.HandleUpcoming"
	log := s.log.With(slog.String("op", op))

	var n models.ExpiryNotice
	if err := json.Unmarshal(body, &n); err != nil {
		log.Error("dropping malformed message", sl.Err(err))
		return nil
	}
	if n.Email == "" {
		return nil
	}
	text := fmt.Sprintf("Hello, %s!\n\nYour subscription to %s ends on %s.\n\nPlease renew it in advance.",
		n.UserName, n.ProductHeading, n.EndDate.Format(dateLayout))
	if err := s.sendEmail([]string{n.Email}, "Your subscription ends tomorrow", text); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	from := s.transport.Sender()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(from); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent", slog.Any("to", to))
	return nil
}
