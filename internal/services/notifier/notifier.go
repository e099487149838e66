// Package notifier отправляет пользователю письмо после продления доступа.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/subscription-gate/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
)

const subjectActivated = "Доступ к Subscription Gate продлён"

// Service формирует и отправляет письма по событиям оплаты.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает сервис уведомлений.
func New(log *slog.Logger, transport smtp.TransportInterface) *Service {
	return &Service{
		transport: transport,
		log:       log,
	}
}

// HandleActivated обрабатывает событие subscription.activated.
// Битое или неполное событие помечается rabbitmq.ErrPermanent.
func (s *Service) HandleActivated(_ context.Context, body []byte) error {
	const op = "notifier.HandleActivated"

	var event checkout.ActivatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%s: %w: %w", op, rabbitmq.ErrPermanent, err)
	}
	if event.Email == "" {
		return fmt.Errorf("%s: %w: event for user %s has no email", op, rabbitmq.ErrPermanent, event.UserUID)
	}

	bodyText := fmt.Sprintf("Здравствуйте!\n\nОплата прошла успешно. Доступ открыт до %s (UTC).\n\nНомер оплаты: %s.",
		event.SubscriptionEnd.UTC().Format(time.DateTime), event.SessionID)

	if err := s.sendEmail([]string{event.Email}, subjectActivated, bodyText); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("activation email sent", slog.String("user_uid", event.UserUID))
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
	return client.Quit()
}
