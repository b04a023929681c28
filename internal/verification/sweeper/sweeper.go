// Package sweeper force-rejects authentication requests stuck in processing.
// A request whose provider call never came back would otherwise sit in
// processing forever; the sweep turns it into a definitive rejection through
// the lifecycle manager's normal transition operation.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"veriflow/internal/audit"
	"veriflow/internal/verification/lifecycle"
	verificationmetrics "veriflow/internal/verification/metrics"
	"veriflow/internal/verification/models"
	dErrors "veriflow/pkg/domain-errors"
)

// SweptReason is attached to requests the sweeper rejects.
const SweptReason = "verification timed out waiting for a provider result"

// AuditPublisher records sweep actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Sweeper periodically rejects stale processing requests.
type Sweeper struct {
	lifecycle      *lifecycle.Manager
	interval       time.Duration
	cutoff         time.Duration
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *verificationmetrics.Metrics
}

type Option func(s *Sweeper)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Sweeper) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *verificationmetrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// New constructs a Sweeper. interval is how often to sweep; cutoff is how
// long a request may sit in processing before it is considered stuck.
func New(lc *lifecycle.Manager, interval, cutoff time.Duration, opts ...Option) *Sweeper {
	s := &Sweeper{lifecycle: lc, interval: interval, cutoff: cutoff}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil && s.logger != nil {
				s.logger.ErrorContext(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce rejects every request stuck in processing past the cutoff.
// Rejections run concurrently; a request decided between the query and the
// transition loses cleanly with an invalid-transition error, which the sweep
// treats as already handled.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cutoff)
	stuck, err := s.lifecycle.FindStuckProcessing(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, request := range stuck {
		g.Go(func() error {
			s.sweep(gctx, request)
			return nil
		})
	}
	return g.Wait()
}

func (s *Sweeper) sweep(ctx context.Context, request *models.AuthenticationRequest) {
	_, err := s.lifecycle.Reject(ctx, request.ID, lifecycle.RejectionParams{
		Reason: SweptReason,
	})
	if err != nil {
		// A racing result recorder may have decided the request first.
		if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			return
		}
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to reject stuck request",
				"authentication_id", request.ID,
				"error", err,
			)
		}
		return
	}

	if s.logger != nil {
		s.logger.WarnContext(ctx, "swept stuck authentication request",
			"authentication_id", request.ID,
			"subject_id", request.SubjectID,
			"stuck_since", request.UpdatedAt,
		)
	}
	s.metrics.IncrementSwept()
	if s.auditPublisher != nil {
		_ = s.auditPublisher.Emit(ctx, audit.Event{
			SubjectID:        request.SubjectID,
			Action:           audit.EventStuckRequestSwept,
			AuthenticationID: request.ID.String(),
			Method:           string(request.Method),
			Reason:           SweptReason,
		})
	}
}
