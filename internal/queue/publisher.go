package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/config"
)

// ErrUnavailable is returned while the broker is being dialled by another
// caller or is inside its retry back-off.
var ErrUnavailable = errors.New("rabbitmq unavailable")

const (
	defaultDialTimeout = 5 * time.Second
	defaultRetryAfter  = 5 * time.Second
)

// Publisher sends events to a durable topic exchange.  The connection is
// opened lazily and re-dialled after a failure.  Dialling is bounded by the
// caller's deadline and happens outside the lock; while one caller dials or
// the last dial failed recently, others get ErrUnavailable at once.
type Publisher struct {
	cfg        config.EventsConfig
	log        zerolog.Logger
	retryAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
	retryAt time.Time
	closed  bool
}

func NewPublisher(cfg config.EventsConfig, log zerolog.Logger) *Publisher {
	return &Publisher{
		cfg:        cfg,
		log:        log.With().Str("component", "publisher").Logger(),
		retryAfter: defaultRetryAfter,
		now:        time.Now,
	}
}

// Publish wraps payload in an Envelope and sends it with routingKey.  It
// never blocks past ctx's deadline on a dial.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := Encode(routingKey, payload, time.Now().UTC())
	if err != nil {
		return err
	}
	ch, err := p.channel(ctx)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         routingKey,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, pub); err != nil {
		p.drop(ch)
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Close releases the broker connection.  Later publishes fail.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.resetLocked()
	return nil
}

func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return nil, errors.New("publisher closed")
	case p.ch != nil && !p.ch.IsClosed():
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	case p.dialing || p.now().Before(p.retryAt):
		p.mu.Unlock()
		return nil, ErrUnavailable
	}
	p.dialing = true
	p.resetLocked()
	p.mu.Unlock()

	conn, ch, err := p.connect(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.retryAt = p.now().Add(p.retryAfter)
		return nil, err
	}
	if p.closed {
		_ = conn.Close()
		return nil, errors.New("publisher closed")
	}
	p.conn, p.ch = conn, ch
	p.log.Info().Str("exchange", p.cfg.Exchange).Msg("rabbitmq connected")
	return ch, nil
}

// connect dials with a timeout taken from ctx; amqp's own dial ignores the
// context and waits up to 30s for the handshake.
func (p *Publisher) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	timeout := defaultDialTimeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if timeout <= 0 {
		return nil, nil, fmt.Errorf("dial: %w", context.DeadlineExceeded)
	}
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch, p.cfg.Exchange); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// drop forgets ch after a failed publish so the next call re-dials.
func (p *Publisher) drop(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == ch {
		p.resetLocked()
	}
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// declareExchange makes sure the durable topic exchange exists.
func declareExchange(ch *amqp.Channel, name string) error {
	if name == "" {
		return errors.New("exchange name is empty")
	}
	if err := ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	return nil
}

// Encode builds the JSON envelope for payload.
func Encode(eventType string, payload any, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return json.Marshal(Envelope{Type: eventType, OccurredAt: at, Payload: raw})
}
