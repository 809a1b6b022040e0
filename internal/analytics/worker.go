package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atspro/atspro/internal/events"
	"github.com/atspro/atspro/internal/metrics"
)

const (
	// ConsumerGroup is shared by every API instance running the timeline
	// consumer; each stream entry reaches one of them.
	ConsumerGroup = "timeline_workers"

	// DeadLetterStreamKey receives entries that cannot be decoded or fail
	// validation, so they are acknowledged instead of redelivered forever.
	DeadLetterStreamKey = events.StreamKey + ":dlq"
)

// WorkerOptions tunes a Worker. Zero fields take the defaults noted.
type WorkerOptions struct {
	// ConsumerID names this process in the group. Default NewConsumerID().
	ConsumerID string
	// BatchSize caps entries per read. Default 100.
	BatchSize int
	// Block is the XREADGROUP wait. Default 5s.
	Block time.Duration
	// Attempts is how often a batch is tried before it is left pending.
	// Default 3.
	Attempts int
	// ClaimEvery and ClaimIdle control XAUTOCLAIM of entries abandoned by
	// dead consumers. Defaults 10s and 30s.
	ClaimEvery time.Duration
	ClaimIdle  time.Duration
	// BacklogEvery is the refresh period of the backlog gauge. Default 5s.
	BacklogEvery time.Duration
	// Metrics defaults to a no-op recorder.
	Metrics metrics.Recorder
}

func (o WorkerOptions) withDefaults() WorkerOptions {
	if o.ConsumerID == "" {
		o.ConsumerID = NewConsumerID()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.Block <= 0 {
		o.Block = 5 * time.Second
	}
	if o.Attempts <= 0 {
		o.Attempts = 3
	}
	if o.ClaimEvery <= 0 {
		o.ClaimEvery = 10 * time.Second
	}
	if o.ClaimIdle <= 0 {
		o.ClaimIdle = 30 * time.Second
	}
	if o.BacklogEvery <= 0 {
		o.BacklogEvery = 5 * time.Second
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewNoop()
	}
	return o
}

// Sink records decoded events. Append reports false for an event id it has
// already stored.
type Sink interface {
	Append(ctx context.Context, eventID string, event events.StatusEvent) (bool, error)
}

// Worker consumes the status event stream as a member of ConsumerGroup and
// feeds a Sink. Entries are acknowledged only after the sink accepted them.
type Worker struct {
	redis   *redis.Client
	sink    Sink
	logger  *slog.Logger
	metrics metrics.Recorder
	opts    WorkerOptions

	// Loop-local state; only the Run goroutine touches it.
	claimCursor string
	nextClaim   time.Time
	nextBacklog time.Time

	running  atomic.Bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewWorker creates a Worker. It does nothing until Run.
func NewWorker(client *redis.Client, sink Sink, logger *slog.Logger, opts WorkerOptions) *Worker {
	opts = opts.withDefaults()
	return &Worker{
		redis:       client,
		sink:        sink,
		logger:      logger.With("component", "timeline.worker", "consumer_id", opts.ConsumerID),
		metrics:     opts.Metrics,
		opts:        opts,
		claimCursor: "0-0",
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run consumes until ctx ends or Shutdown is called, then returns nil. It
// may be called once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("timeline worker already running")
	}
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	w.logger.Info("timeline worker started")

	for ctx.Err() == nil {
		if err := w.processOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Error("timeline batch failed", "error", err)
			pause(ctx, time.Second)
		}
	}
	w.logger.Info("timeline worker stopped")
	return nil
}

// Shutdown asks Run to stop and waits for the batch in flight, or for ctx.
// It has the signature of a server shutdown hook.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.stop) })
	if !w.running.Load() {
		return nil
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("timeline worker did not stop in time")
		return ctx.Err()
	}
}

// pause sleeps for d or until ctx ends.
func pause(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, events.StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce reads and records a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateBacklog(ctx)

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}
	if len(messages) == 0 {
		return nil
	}

	batch, poison, messageIDs := parseMessages(messages)
	for _, p := range poison {
		w.deadLetter(ctx, p)
	}

	if len(batch) > 0 {
		if err := w.recordWithRetry(ctx, batch); err != nil {
			w.logger.Error("batch recording failed after retries",
				"batch_size", len(batch),
				"error", err,
			)
			// Left pending so XAUTOCLAIM picks them up again.
			return err
		}
	}

	return w.ackMessages(ctx, messageIDs)
}

type decoded struct {
	id    string
	event events.StatusEvent
}

type poisonMessage struct {
	msg    redis.XMessage
	reason string
	detail string
}

// parseMessages decodes stream entries written by events.StreamPublisher.
// Every message ID is returned for acknowledgement, including poison ones.
func parseMessages(messages []redis.XMessage) ([]decoded, []poisonMessage, []string) {
	batch := make([]decoded, 0, len(messages))
	var poison []poisonMessage
	ids := make([]string, 0, len(messages))

	for _, msg := range messages {
		ids = append(ids, msg.ID)

		payload, ok := msg.Values["payload"].(string)
		if !ok {
			poison = append(poison, poisonMessage{msg, "invalid_format", "payload field missing or not a string"})
			continue
		}

		var event events.StatusEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			poison = append(poison, poisonMessage{msg, "unmarshal_error", err.Error()})
			continue
		}
		if err := ValidateEvent(event); err != nil {
			poison = append(poison, poisonMessage{msg, "validation_error", err.Error()})
			continue
		}

		batch = append(batch, decoded{id: msg.ID, event: event})
	}

	return batch, poison, ids
}

func (w *Worker) deadLetter(ctx context.Context, p poisonMessage) {
	w.logger.Warn("dead-lettering poison message",
		"message_id", p.msg.ID,
		"reason", p.reason,
		"detail", p.detail,
	)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: events.MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"original_id":      p.msg.ID,
			"original_stream":  events.StreamKey,
			"reason":           p.reason,
			"detail":           p.detail,
			"payload":          p.msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write to dead-letter stream",
			"message_id", p.msg.ID,
			"error", err,
		)
	}

	w.metrics.IncTimelineEvent("dead_lettered")
}

// recordWithRetry retries the whole batch with doubling waits. Appends are
// idempotent per entry id, so a partly recorded batch is safe to repeat.
func (w *Worker) recordWithRetry(ctx context.Context, batch []decoded) error {
	var err error
	for attempt := 1; attempt <= w.opts.Attempts; attempt++ {
		if err = w.record(ctx, batch); err == nil {
			return nil
		}
		if attempt == w.opts.Attempts {
			break
		}
		wait := time.Second << attempt
		w.logger.Warn("timeline batch failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		pause(ctx, wait)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	w.metrics.IncTimelineEvent("failed")
	return err
}

func (w *Worker) record(ctx context.Context, batch []decoded) error {
	start := time.Now()
	for _, d := range batch {
		added, err := w.sink.Append(ctx, d.id, d.event)
		if err != nil {
			return fmt.Errorf("append %s: %w", d.id, err)
		}
		if added {
			w.metrics.IncTimelineEvent("recorded")
		} else {
			w.metrics.IncTimelineEvent("duplicate")
		}
	}

	w.logger.Debug("batch recorded",
		"events_count", len(batch),
		"duration_ms", float64(time.Since(start).Microseconds())/1000,
	)
	return nil
}

// maybeClaimPending reclaims messages another consumer left unacknowledged.
func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	now := time.Now()
	if now.Before(w.nextClaim) {
		return nil, nil
	}
	w.nextClaim = now.Add(w.opts.ClaimEvery)

	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   events.StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.opts.ConsumerID,
		MinIdle:  w.opts.ClaimIdle,
		Start:    w.claimCursor,
		Count:    int64(w.opts.BatchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimCursor = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateBacklog(ctx context.Context) {
	now := time.Now()
	if now.Before(w.nextBacklog) {
		return
	}
	w.nextBacklog = now.Add(w.opts.BacklogEvery)

	groups, err := w.redis.XInfoGroups(ctx, events.StreamKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetTimelineBacklog(group.Pending + group.Lag)
			return
		}
	}
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.opts.ConsumerID,
		Streams:  []string{events.StreamKey, ">"},
		Count:    int64(w.opts.BatchSize),
		Block:    w.opts.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := w.redis.XAck(ctx, events.StreamKey, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
