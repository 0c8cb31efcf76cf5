package events

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// ErrBufferFull is returned when the producer inbox cannot take more events.
var ErrBufferFull = errors.New("event buffer full")

// ErrClosed is returned when publishing after Close.
var ErrClosed = errors.New("producer closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka producer.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// Producer buffers events in memory and writes them to Kafka from a single
// goroutine started by Run.
type Producer struct {
	w     messageWriter
	inbox chan kafka.Message

	// mu orders inbox sends before the flush: Publish holds it for reading
	// while enqueueing, stop holds it for writing while closing.
	mu       sync.RWMutex
	stopping bool
	closing  chan struct{}
	closed   chan struct{}
}

// NewProducer creates a producer writing to cfg.Topic.
func NewProducer(cfg KafkaConfig) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}, cfg.Buffer)
}

func newProducer(w messageWriter, buf int) *Producer {
	if buf < 1 {
		buf = 256
	}
	return &Producer{
		w:       w,
		inbox:   make(chan kafka.Message, buf),
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Publish enqueues e without waiting for the broker.
func (p *Producer) Publish(_ context.Context, e Event) error {
	msg := kafka.Message{
		Key:   e.Key(),
		Value: e.Encode(),
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopping {
		return ErrClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run writes queued messages until ctx is done or Close is called, then
// flushes whatever is left and closes the writer.
func (p *Producer) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	defer close(p.closed)

	for {
		select {
		case <-ctx.Done():
			p.stop()
			return p.flush(lg)
		case <-p.closing:
			return p.flush(lg)
		case m := <-p.inbox:
			p.write(ctx, lg, m)
		}
	}
}

// Close stops accepting events and waits for Run to flush.
func (p *Producer) Close(ctx context.Context) error {
	p.stop()
	select {
	case <-p.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop rejects further publishes. Once it returns, every accepted message is
// already in the inbox.
func (p *Producer) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopping {
		p.stopping = true
		close(p.closing)
	}
}

func (p *Producer) write(ctx context.Context, lg *zap.Logger, m kafka.Message) {
	if err := p.w.WriteMessages(ctx, m); err != nil {
		lg.Warn("Write event", zap.ByteString("key", m.Key), zap.Error(err))
	}
}

func (p *Producer) flush(lg *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case m := <-p.inbox:
			p.write(ctx, lg, m)
		default:
			if err := p.w.Close(); err != nil {
				return errors.Wrap(err, "close kafka writer")
			}
			return nil
		}
	}
}
