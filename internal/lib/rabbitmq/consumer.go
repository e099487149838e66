package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-gate/internal/lib/sl"
)

// ErrPermanent помечает сообщение, которое бессмысленно обрабатывать повторно.
// Такое сообщение отклоняется без возврата в очередь.
var ErrPermanent = errors.New("permanent message failure")

// Delivery часть amqp.Delivery, нужная для подтверждения.
type Delivery interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// Handler обрабатывает тело сообщения.
type Handler func(ctx context.Context, body []byte) error

// SetupQueue объявляет durable очередь и привязывает её к exchange по ключу routingKey.
func SetupQueue(ch *amqp.Channel, exchange, queue, routingKey string) error {
	const op = "rabbitmq.SetupQueue"
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ErrDeliveriesClosed возвращается, когда брокер закрыл поток сообщений
// раньше отмены контекста: соединение или канал потеряны.
var ErrDeliveriesClosed = errors.New("deliveries channel closed by broker")

// ConsumeMessages читает очередь queue до отмены ctx, обрабатывая не больше
// workers сообщений одновременно. Возвращается после завершения всех обработчиков.
// Если брокер закрыл поток до отмены ctx, возвращает ErrDeliveriesClosed.
func ConsumeMessages(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queue string, workers int, handler Handler) error {
	const op = "rabbitmq.ConsumeMessages"
	if workers < 1 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = consume(ctx, log.With(sl.Op(op), slog.String("queue", queue)), deliveries, workers, handler); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// consume пересылает сообщения из deliveries пулу обработчиков.
func consume(ctx context.Context, log *slog.Logger, deliveries <-chan amqp.Delivery, workers int, handler Handler) error {
	in := make(chan delivery)
	brokerClosed := make(chan struct{})
	go func() {
		defer close(in)
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					close(brokerClosed)
					return
				}
				select {
				case in <- delivery{Delivery: d, body: d.Body}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	dispatch(ctx, log, in, workers, handler)

	select {
	case <-brokerClosed:
		if ctx.Err() == nil {
			log.Error("broker closed deliveries")
			return ErrDeliveriesClosed
		}
	default:
	}
	return nil
}

type delivery struct {
	Delivery
	body []byte
}

// dispatch раздаёт сообщения из in пулу из workers обработчиков.
func dispatch(ctx context.Context, log *slog.Logger, in <-chan delivery, workers int, handler Handler) {
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range in {
				handle(ctx, log, d, handler)
			}
		}()
	}
	wg.Wait()
}

func handle(ctx context.Context, log *slog.Logger, d delivery, handler Handler) {
	err := handler(ctx, d.body)
	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
	case errors.Is(err, ErrPermanent):
		log.Warn("dropping message", sl.Err(err))
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	default:
		log.Error("message handling failed, requeue", sl.Err(err))
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
	}
}
