package auditsink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultQueue is the queue audit events are routed to when none is set.
const DefaultQueue = "goguard_audit_events"

// Config selects the broker and queue.
type Config struct {
	URL            string        `toml:"url"`
	Queue          string        `toml:"queue"`
	PublishTimeout time.Duration `toml:"publish_timeout"`
}

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQP is a goGuard.AuditSink that publishes each event as a persistent JSON
// message on a durable queue. Publish failures are logged and counted.
type AMQP struct {
	conn    *amqp.Connection
	mu      sync.Mutex
	ch      channel
	queue   string
	timeout time.Duration
	logger  *zap.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

var _ goGuard.AuditSink = (*AMQP)(nil)

// Dial connects to the broker, opens a channel and declares the queue.
func Dial(cfg Config, logger *zap.Logger) (*AMQP, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	s, err := newAMQP(ch, cfg, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	s.conn = conn
	return s, nil
}

func newAMQP(ch channel, cfg Config, logger *zap.Logger) (*AMQP, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	_, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return &AMQP{ch: ch, queue: queue, timeout: timeout, logger: logger}, nil
}

func (s *AMQP) Emit(ctx context.Context, event goGuard.AuditEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		s.failed.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	// amqp channels are not safe for concurrent publishing.
	s.mu.Lock()
	err = s.ch.PublishWithContext(ctx,
		"",      // exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
	s.mu.Unlock()

	if err != nil {
		s.failed.Add(1)
		s.logger.Warn("audit publish failed",
			zap.String("queue", s.queue),
			zap.String("action", event.Action),
			zap.Error(err),
		)
		return
	}
	s.published.Add(1)
}

// Stats reports how many events were published and how many failed.
func (s *AMQP) Stats() (published, failed uint64) {
	return s.published.Load(), s.failed.Load()
}

func (s *AMQP) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
