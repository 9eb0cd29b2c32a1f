package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/equine-oracle/internal/models"
	"github.com/cypherlabdev/equine-oracle/pkg/features"
)

// Orchestrator owns the prediction request lifecycle and the visible outcome.
// Submit never blocks on the prediction service; resolutions are applied in
// the order they arrive.
type Orchestrator struct {
	predictor Predictor
	policy    ResolutionPolicy
	metrics   Metrics
	now       func() time.Time
	logger    zerolog.Logger

	mu    sync.Mutex // guards state
	state models.Outcome

	// notifyMu guards the render queue. Outcomes are queued under mu, so the
	// queue holds them in transition order; one drain goroutine renders them.
	notifyMu  sync.Mutex
	sinks     []Sink
	pending   []models.Outcome
	rendering bool

	// inflight counts prediction calls and the drain goroutine
	inflight sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithPolicy sets the resolution policy for overlapping submissions
func WithPolicy(policy ResolutionPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(metrics Metrics) Option {
	return func(o *Orchestrator) {
		if metrics != nil {
			o.metrics = metrics
		}
	}
}

// WithSinks attaches render callbacks
func WithSinks(sinks ...Sink) Option {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithClock overrides the time source used for identifiers and timestamps
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates a new orchestrator in the idle state
func NewOrchestrator(predictor Predictor, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		predictor: predictor,
		policy:    LastResolvedWins,
		metrics:   noopMetrics{},
		now:       time.Now,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
		state:     models.Outcome{Phase: models.PhaseIdle},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddSink attaches a render callback after construction
func (o *Orchestrator) AddSink(sink Sink) {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()
	o.sinks = append(o.sinks, sink)
}

// Policy returns the active resolution policy
func (o *Orchestrator) Policy() ResolutionPolicy {
	return o.policy
}

// State returns the current outcome
func (o *Orchestrator) State() models.Outcome {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Submit derives features from the form, moves to Pending and dispatches the
// prediction call in the background. A call in flight is never cancelled,
// including by cancellation of ctx.
func (o *Orchestrator) Submit(ctx context.Context, form models.FormState) Submission {
	now := o.now()
	sub := Submission{
		ID:          uuid.New(),
		RaceID:      fmt.Sprintf("race_%d", now.UnixMilli()),
		HorseID:     fmt.Sprintf("horse_%d", now.UnixMilli()),
		SubmittedAt: now.UTC(),
	}
	req := models.PredictionRequest{
		RaceID:   sub.RaceID,
		HorseID:  sub.HorseID,
		Features: features.Derive(form),
	}

	o.inflight.Add(1)
	o.apply(Submitted{Submission: sub})
	o.metrics.SubmissionStarted()

	o.logger.Info().
		Str("submission_id", sub.ID.String()).
		Str("race_id", sub.RaceID).
		Int("distance", req.Features.Distance).
		Int("day_of_week", req.Features.DayOfWeek).
		Int("week_of_year", req.Features.WeekOfYear).
		Msg("submitted prediction request")

	go o.dispatch(context.WithoutCancel(ctx), sub, req)

	return sub
}

// Wait blocks until every dispatched prediction call has resolved and every
// applied outcome has been rendered
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) dispatch(ctx context.Context, sub Submission, req models.PredictionRequest) {
	defer o.inflight.Done()
	start := time.Now()

	event := o.call(ctx, sub, req)

	outcome, applied := o.apply(event)
	elapsed := time.Since(start)

	phase := models.PhaseFailure
	if _, ok := event.(Resolved); ok {
		phase = models.PhaseSuccess
	}
	o.metrics.SubmissionFinished(phase, elapsed)

	if !applied {
		o.metrics.StaleResolutionDropped()
		o.logger.Info().
			Str("submission_id", sub.ID.String()).
			Str("current_submission_id", outcome.SubmissionID.String()).
			Msg("dropped stale prediction resolution")
		return
	}

	if outcome.Phase == models.PhaseFailure {
		o.logger.Warn().
			Str("submission_id", sub.ID.String()).
			Str("race_id", sub.RaceID).
			Str("message", outcome.Message).
			Dur("elapsed", elapsed).
			Msg("prediction failed")
		return
	}

	o.logger.Info().
		Str("submission_id", sub.ID.String()).
		Str("race_id", sub.RaceID).
		Float64("prediction", outcome.Prediction).
		Float64("confidence", outcome.Confidence).
		Dur("elapsed", elapsed).
		Msg("prediction resolved")
}

// call runs the prediction and turns every result, including a panic, into an event
func (o *Orchestrator) call(ctx context.Context, sub Submission, req models.PredictionRequest) (event Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Interface("panic", r).
				Str("submission_id", sub.ID.String()).
				Msg("prediction call panicked")
			event = Rejected{Submission: sub, Message: FallbackMessage, At: o.now().UTC()}
		}
	}()

	result, err := o.predictor.Predict(ctx, sub.ID.String(), req)
	if err != nil {
		o.logger.Debug().Err(err).Str("submission_id", sub.ID.String()).Msg("prediction call returned error")
		return Rejected{Submission: sub, Message: FailureMessage(err), At: o.now().UTC()}
	}
	if result == nil {
		return Rejected{Submission: sub, Message: FallbackMessage, At: o.now().UTC()}
	}
	return Resolved{Submission: sub, Result: *result, At: o.now().UTC()}
}

// apply runs the transition and queues the new outcome for the sinks.
// The caller must hold an inflight slot so a drain started here is counted.
func (o *Orchestrator) apply(event Event) (models.Outcome, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, applied := Transition(o.policy, o.state, event)
	if !applied {
		return next, false
	}
	o.state = next

	o.notifyMu.Lock()
	o.pending = append(o.pending, next)
	if !o.rendering {
		o.rendering = true
		o.inflight.Add(1)
		go o.drain()
	}
	o.notifyMu.Unlock()

	return next, true
}

// drain renders queued outcomes in order until the queue is empty
func (o *Orchestrator) drain() {
	defer o.inflight.Done()

	for {
		o.notifyMu.Lock()
		if len(o.pending) == 0 {
			o.rendering = false
			o.notifyMu.Unlock()
			return
		}
		outcome := o.pending[0]
		o.pending = o.pending[1:]
		sinks := o.sinks
		o.notifyMu.Unlock()

		for _, sink := range sinks {
			o.render(sink, outcome)
		}
	}
}

// render calls one sink; a panicking sink does not stop the others
func (o *Orchestrator) render(sink Sink, outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().
				Interface("panic", r).
				Str("submission_id", outcome.SubmissionID.String()).
				Msg("sink panicked")
		}
	}()
	sink.Render(outcome)
}
