package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/config"
)

// StartAuditConsumer connects to RabbitMQ, binds a durable queue to every
// event on the exchange and appends one line per message to cfg.AuditLog.
// It reconnects with exponential backoff and only returns when ctx is done.
// Messages that cannot be handled are rejected without requeue so a bad
// payload cannot spin the loop.
func StartAuditConsumer(ctx context.Context, cfg config.EventsConfig, log zerolog.Logger) error {
	log = log.With().Str("component", "audit-consumer").Logger()
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(cfg.URL)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, cfg, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, cfg config.EventsConfig, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("set QoS failed")
	}
	if err := declareExchange(ch, cfg.Exchange); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(cfg.Queue, "#", cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := appendAudit(cfg.AuditLog, d.Body); err != nil {
				log.Error().Err(err).Msg("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// appendAudit writes the formatted message to path, creating the directory.
func appendAudit(path string, body []byte) error {
	line, err := FormatAudit(body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAudit renders one envelope as a single human-friendly line.
func FormatAudit(body []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	at := env.OccurredAt.UTC().Format(time.RFC3339)
	switch env.Type {
	case OrderCreated:
		var ev OrderCreatedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Order created | order_id=%d | customer=%q | owner=%s | lines=%d | total=%s\n",
			at, ev.OrderID, ev.CustomerName, ownerLabel(ev.UserID, ev.CustomerID), ev.Lines, ev.Total), nil
	case OrderPaid:
		var ev OrderPaidEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Order paid | order_id=%d | owner=%s | method=%s | total=%s | points=%d\n",
			at, ev.OrderID, ownerLabel(ev.UserID, ev.CustomerID), ev.PaymentMethod, ev.Total, ev.PointsAwarded), nil
	case RewardCreditFailed:
		var ev RewardCreditFailedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] RECONCILIATION REQUIRED | order_id=%d | owner=%s | points=%d | error=%q\n",
			at, ev.OrderID, ev.Owner, ev.Points, ev.Error), nil
	case CustomerMerged:
		var ev CustomerMergedEvent
		if err := json.Unmarshal(env.Payload, &ev); err != nil {
			return "", fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
		return fmt.Sprintf("[%s] Customer merged | customer_id=%d | user_id=%d | orders=%d | transactions=%d | points=%d | via=%s\n",
			at, ev.CustomerID, ev.UserID, ev.OrdersMoved, ev.TransactionsMoved, ev.PointsMoved, ev.Source), nil
	}
	return fmt.Sprintf("[%s] %s | %s\n", at, env.Type, string(env.Payload)), nil
}

func ownerLabel(userID, customerID *uint64) string {
	switch {
	case userID != nil:
		return fmt.Sprintf("user:%d", *userID)
	case customerID != nil:
		return fmt.Sprintf("customer:%d", *customerID)
	}
	return "walk-in"
}
