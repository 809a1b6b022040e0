package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atspro/atspro/internal/events"
)

// DefaultQueueSize bounds pending deliveries.
const DefaultQueueSize = 256

var (
	// ErrQueueFull is returned by Publish when the delivery queue is full.
	ErrQueueFull = errors.New("webhook queue full")
	// ErrClosed is returned by Publish after Close.
	ErrClosed = errors.New("webhook publisher closed")
)

// Config describes the receiving endpoint.
type Config struct {
	URL    string
	Secret string
	// AllowInsecure permits http and private addresses.
	AllowInsecure bool
	QueueSize     int
	MaxAttempts   int
}

// delivery is one queued event.
type delivery struct {
	id      string
	payload []byte
	report  string
}

// Publisher queues status events and posts them from a background worker.
// It satisfies events.Publisher.
type Publisher struct {
	url         string
	host        string
	signer      Signer
	backoff     backoff
	maxAttempts int
	client      *http.Client
	logger      *slog.Logger

	queue chan delivery
	stop  chan struct{}
	done  chan struct{}

	mu     sync.RWMutex
	closed bool

	// sleep waits between attempts; it returns false when stopped.
	sleep func(d time.Duration) bool
	now   func() time.Time
}

// NewPublisher validates the endpoint and starts the delivery worker.
func NewPublisher(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	endpoint, err := checkEndpoint(cfg.URL, cfg.AllowInsecure)
	if err != nil {
		return nil, err
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		url:         endpoint.String(),
		host:        hostForLog(endpoint),
		signer:      NewSigner(cfg.Secret),
		backoff:     defaultBackoff,
		maxAttempts: cfg.MaxAttempts,
		client:      newHTTPClient(),
		logger:      logger.With("component", "webhook.publisher"),
		queue:       make(chan delivery, cfg.QueueSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		now:         time.Now,
	}
	p.sleep = p.sleepUnlessStopped

	go p.run()
	return p, nil
}

// Publish queues the event. It never waits for delivery.
func (p *Publisher) Publish(ctx context.Context, event events.StatusEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	select {
	case p.queue <- delivery{id: uuid.NewString(), payload: payload, report: event.ReportID}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the worker. Deliveries still queued are dropped and logged.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	<-p.done
	if n := len(p.queue); n > 0 {
		p.logger.Warn("dropping queued webhook deliveries", "count", n)
	}
	return nil
}

func (p *Publisher) sleepUnlessStopped(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-p.stop:
		return false
	}
}
