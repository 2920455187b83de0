package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/txconsumer/internal/domain"
	"github.com/iho/txconsumer/internal/infrastructure/metrics"
)

// Message is one record of a delivered batch.
type Message struct {
	ID   string
	Body []byte
}

// Result is the terminal outcome of one message.
type Result struct {
	MessageID       string
	ObjectKey       string
	TransactionType domain.TransactionType
	State           domain.ProcessingState
	Err             error
	Outcome         *Outcome

	// keepState leaves the STATE row untouched for this attempt.
	keepState bool
}

// Reason returns the rejection reason, or "" for committed messages.
func (r *Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Retryable reports whether redelivering the message could succeed.
func (r *Result) Retryable() bool {
	return r.State == domain.StateRejected && !domain.IsRejection(r.Err)
}

// BatchReport summarizes one batch.
type BatchReport struct {
	Results   []*Result
	Committed int
	Rejected  int
}

// Retryable returns the results whose failure was not a business rejection.
func (b *BatchReport) Retryable() []*Result {
	var out []*Result
	for _, r := range b.Results {
		if r.Retryable() {
			out = append(out, r)
		}
	}
	return out
}

// DispatcherConfig holds dispatcher settings.
type DispatcherConfig struct {
	ProcessedTTL time.Duration
	InFlightTTL  time.Duration
}

// Dispatcher routes messages to transaction handlers and records the
// processing state of every source object.
//
// Ledger writes are committed by the handler before the state tracker is
// touched. State and audit writes are best effort: their failures are
// logged and counted but never change a message's outcome.
type Dispatcher struct {
	handlers  map[domain.TransactionType]HandlerFunc
	stateRepo StateRepository
	guard     ProcessedStore
	idGen     IDGenerator
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	cfg       DispatcherConfig
	now       func() time.Time
}

// NewDispatcher creates a new Dispatcher. guard and metrics may be nil.
func NewDispatcher(
	handlers map[domain.TransactionType]HandlerFunc,
	stateRepo StateRepository,
	guard ProcessedStore,
	idGen IDGenerator,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if cfg.ProcessedTTL <= 0 {
		cfg.ProcessedTTL = DefaultProcessedTTL
	}
	if cfg.InFlightTTL <= 0 {
		cfg.InFlightTTL = DefaultInFlightTTL
	}

	return &Dispatcher{
		handlers:  handlers,
		stateRepo: stateRepo,
		guard:     guard,
		idGen:     idGen,
		metrics:   metrics,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessBatch processes messages sequentially, each to completion. A
// failing message never affects the others.
func (d *Dispatcher) ProcessBatch(ctx context.Context, msgs []Message) *BatchReport {
	report := &BatchReport{Results: make([]*Result, 0, len(msgs))}

	for _, msg := range msgs {
		res := d.Process(ctx, msg)
		report.Results = append(report.Results, res)

		if res.State == domain.StateCommitted {
			report.Committed++
		} else {
			report.Rejected++
		}
	}

	if d.metrics != nil {
		d.metrics.BatchesProcessed.Inc()
		d.metrics.BatchSize.Observe(float64(len(msgs)))
	}

	d.logger.Info().
		Int("messages", len(msgs)).
		Int("committed", report.Committed).
		Int("rejected", report.Rejected).
		Msg("batch processed")

	return report
}

// Process drives one message through
// Received -> Classified -> Dispatched -> Committed | Rejected.
func (d *Dispatcher) Process(ctx context.Context, msg Message) *Result {
	start := time.Now()
	res := &Result{MessageID: msg.ID, ObjectKey: msg.ID, State: domain.StateReceived}

	ev, err := domain.ParseTransactionEvent(msg.Body)
	if err != nil {
		d.finish(ctx, res, nil, err)
		return res
	}

	if key := ev.ObjectKey(); key != "" {
		res.ObjectKey = key
	}
	res.TransactionType = ev.TransactionType
	res.keepState = d.alreadyCommitted(ctx, res)
	d.markState(ctx, res, ev)

	handler, ok := d.handlers[ev.TransactionType]
	if !ok {
		d.finish(ctx, res, ev, fmt.Errorf("%w: %q", domain.ErrUnrecognizedTransactionType, ev.TransactionType))
		return res
	}
	res.State = domain.StateClassified

	if err := ev.Validate(); err != nil {
		d.finish(ctx, res, ev, err)
		return res
	}

	guardKey := ev.EventSourceDataResource.S3Bucket + "/" + ev.ObjectKey()
	if !d.acquire(ctx, guardKey) {
		if d.metrics != nil {
			d.metrics.DuplicateMessages.Inc()
		}
		d.finish(ctx, res, ev, domain.ErrDuplicateMessage)
		return res
	}

	res.State = domain.StateDispatched
	outcome, err := d.invoke(ctx, handler, ev)
	if err != nil {
		d.release(ctx, guardKey)
	} else {
		d.complete(ctx, guardKey)
	}
	res.Outcome = outcome

	if d.metrics != nil {
		d.metrics.TransactionDuration.WithLabelValues(string(ev.TransactionType)).Observe(time.Since(start).Seconds())
	}

	d.finish(ctx, res, ev, err)
	return res
}

func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, ev *domain.TransactionEvent) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("%w: %v", domain.ErrHandlerPanic, r)
		}
	}()

	return handler(ctx, ev)
}

// finish moves res to its terminal state, records the object state and
// appends exactly one audit event. Duplicate deliveries are audited but
// leave STATE as the earlier attempt wrote it.
func (d *Dispatcher) finish(ctx context.Context, res *Result, ev *domain.TransactionEvent, err error) {
	res.Err = err
	if errors.Is(err, domain.ErrDuplicateEvent) || errors.Is(err, domain.ErrDuplicateMessage) {
		res.keepState = true
	}
	if err == nil {
		res.State = domain.StateCommitted
	} else {
		res.State = domain.StateRejected
	}

	d.markState(ctx, res, ev)
	d.appendAudit(ctx, res)

	outcome := "committed"
	if err != nil {
		outcome = "rejected"
	}
	if d.metrics != nil {
		d.metrics.TransactionsProcessed.WithLabelValues(string(res.TransactionType), outcome).Inc()
	}

	log := d.logger.Info()
	if err != nil {
		log = d.logger.Error().Err(err).Bool("retryable", res.Retryable())
	}
	log.Str("message_id", res.MessageID).
		Str("object_key", res.ObjectKey).
		Str("type", string(res.TransactionType)).
		Str("state", string(res.State)).
		Msg("message processed")
}

// alreadyCommitted reports whether the object's STATE row records a commit.
// A redelivery of such an object must not downgrade it.
func (d *Dispatcher) alreadyCommitted(ctx context.Context, res *Result) bool {
	state, err := d.stateRepo.GetState(ctx, res.ObjectKey)
	if err != nil {
		if !errors.Is(err, domain.ErrStateNotFound) {
			d.trackerFailure("get_state", res, err)
		}
		return false
	}
	return state.Processed
}

func (d *Dispatcher) markState(ctx context.Context, res *Result, ev *domain.TransactionEvent) {
	if res.keepState {
		return
	}
	state := &domain.ObjectState{
		ObjectKey:         res.ObjectKey,
		InNewEventsBucket: true,
		Processed:         res.State == domain.StateCommitted,
		TransactionType:   res.TransactionType,
		Stage:             res.State,
		ErrorState:        res.State == domain.StateRejected,
		ErrorReason:       res.Reason(),
		UpdatedAt:         d.now(),
	}
	if ev != nil {
		state.SourceBucket = ev.EventSourceDataResource.S3Bucket
		state.AccountNumber = ev.ReferenceAccount
	}

	if err := d.stateRepo.MarkState(ctx, state); err != nil {
		d.trackerFailure("mark_state", res, err)
	}
}

func (d *Dispatcher) appendAudit(ctx context.Context, res *Result) {
	event := &domain.AuditEvent{
		ID:              d.idGen.Generate(),
		ObjectKey:       res.ObjectKey,
		EventType:       domain.AuditEventCommitted,
		TransactionType: res.TransactionType,
		IsError:         res.Err != nil,
		ErrorMessage:    res.Reason(),
		CreatedAt:       d.now(),
	}
	if res.Err != nil {
		event.EventType = domain.AuditEventRejected
	}

	if err := d.stateRepo.AppendAuditEvent(ctx, event); err != nil {
		d.trackerFailure("append_audit_event", res, err)
		return
	}

	if d.metrics != nil {
		d.metrics.AuditEventsCreated.WithLabelValues(string(event.EventType)).Inc()
	}
}

func (d *Dispatcher) trackerFailure(op string, res *Result, err error) {
	if d.metrics != nil {
		d.metrics.StateTrackerErrors.WithLabelValues(op).Inc()
	}
	d.logger.Warn().
		Err(err).
		Str("operation", op).
		Str("object_key", res.ObjectKey).
		Msg("state tracker write failed")
}

// acquire claims the source object. A guard failure does not block
// processing: the event log rejects duplicate writes on its own.
func (d *Dispatcher) acquire(ctx context.Context, key string) bool {
	if d.guard == nil {
		return true
	}

	ok, err := d.guard.Acquire(ctx, key, d.cfg.InFlightTTL)
	if err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("processed guard unavailable")
		return true
	}
	return ok
}

func (d *Dispatcher) complete(ctx context.Context, key string) {
	if d.guard == nil {
		return
	}
	if err := d.guard.Complete(ctx, key, d.cfg.ProcessedTTL); err != nil {
		d.logger.Warn().Err(err).Str("key", key).Msg("failed to mark object processed")
	}
}

func (d *Dispatcher) release(ctx context.Context, key string) {
	if d.guard == nil {
		return
	}
	if err := d.guard.Release(ctx, key); err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn().Err(err).Str("key", key).Msg("failed to release processed guard")
	}
}
