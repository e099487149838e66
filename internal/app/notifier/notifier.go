// Package notifier собирает воркер, который рассылает письма по событиям оплаты.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-gate/internal/config"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-gate/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-gate/internal/services/checkout"
	notifierservice "github.com/magabrotheeeer/subscription-gate/internal/services/notifier"
)

// ErrBrokerNotConfigured воркер запущен без адреса RabbitMQ.
var ErrBrokerNotConfigured = errors.New("rabbitmq url is not configured")

type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *notifierservice.Service
	queue   string
	workers int
	logger  *slog.Logger
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.notifier.New"
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrBrokerNotConfigured)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.Retries, cfg.Delay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = rabbitmq.SetupQueue(ch, cfg.Exchange, cfg.NotifierQueue, checkout.RoutingKeyActivated); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:    conn,
		ch:      ch,
		service: notifierservice.New(logger, transport),
		queue:   cfg.NotifierQueue,
		workers: cfg.NotifierWorkers,
		logger:  logger,
	}, nil
}

// Run обрабатывает очередь до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("notifier consuming", slog.String("queue", a.queue), slog.Int("workers", a.workers))
	err := rabbitmq.ConsumeMessages(ctx, a.logger, a.ch, a.queue, a.workers, a.service.HandleActivated)

	a.logger.Info("notifier shutting down gracefully")
	if closeErr := a.ch.Close(); closeErr != nil {
		a.logger.Error("failed to close channel", sl.Err(closeErr))
	}
	if closeErr := a.conn.Close(); closeErr != nil {
		a.logger.Error("failed to close connection", sl.Err(closeErr))
	}
	return err
}
