// Package fit finds the least destructive presentation of a document that
// renders onto exactly one page.
//
// Two strategies exist because the two oracles answer differently. The LaTeX
// oracle only says "one page or not", so Descend walks an ordered list of
// reductions, re-probing after each. The Chrome oracle's overflow is
// monotonic in font scale, so Bisect searches that scale directly.
//
// Bullet reduction is greedy: it drops the lowest impact visible bullet from
// the fullest experience. It does not look for an optimal subset.
package fit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonathan/resume-onepage/internal/oracle"
	"github.com/jonathan/resume-onepage/internal/types"
)

const (
	// DefaultProbeTimeout bounds a single oracle call
	DefaultProbeTimeout = 30 * time.Second

	// MaxBulletRounds bounds lever 1 of Descend
	MaxBulletRounds = 15

	// BisectIterations is the number of measure-only probes Bisect makes
	BisectIterations = 8
)

// OperationDeadline names a timeout of the caller's overall deadline rather
// than of a single probe.
const OperationDeadline = "request deadline"

// OverflowWarning is reported when no allowed reduction reaches one page.
const OverflowWarning = "Content could not be fit on one page within the export rules; the PDF may run past one page. Reduce content or widen the scale ranges."

// Result is the outcome of one resolution.
type Result struct {
	// Artifact is the PDF of the accepted state, or of the most degraded
	// state on terminal overflow.
	Artifact []byte
	State    *types.CompressionState
}

// Resolver runs fit strategies. It holds no per-request state and is safe
// for concurrent use.
type Resolver struct {
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewResolver creates a Resolver. A zero probeTimeout uses DefaultProbeTimeout.
func NewResolver(logger *slog.Logger, probeTimeout time.Duration) *Resolver {
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{probeTimeout: probeTimeout, logger: logger}
}

// ProbeTimeout returns the per-probe budget.
func (r *Resolver) ProbeTimeout() time.Duration {
	return r.probeTimeout
}

// withProbeTimeout runs fn under the per-probe budget. Running out of time is
// always a RenderTimeoutError, even if fn returned a result.
func (r *Resolver) withProbeTimeout(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	start := time.Now()
	deadline, hasDeadline := ctx.Deadline()

	err := fn(probeCtx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		// The caller's budget ran out, not the probe's.
		budget := time.Since(start)
		if hasDeadline {
			budget = deadline.Sub(start)
		}
		return &oracle.RenderTimeoutError{Operation: OperationDeadline, Timeout: budget, Cause: context.DeadlineExceeded}
	}
	if err != nil && oracle.IsFatal(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(probeCtx.Err(), context.DeadlineExceeded) {
		return &oracle.RenderTimeoutError{Operation: op, Timeout: r.probeTimeout, Cause: context.DeadlineExceeded}
	}
	return err
}

func validate(doc *types.ResolvedDocument) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	return doc.Rules.Validate()
}

// finish stamps the terminal outcome on the state.
func (r *Resolver) finish(s *state, fits bool, strategy string) {
	s.cs.CanFit = fits
	if !fits {
		s.cs.Warning = OverflowWarning
		r.logger.Warn("content overflows one page after all reductions",
			slog.String("strategy", strategy),
			slog.String("loadout", s.doc.LoadoutID),
			slog.Int("iterations", s.cs.Iterations),
			slog.Int("bullets", s.totalBullets()),
		)
		return
	}
	r.logger.Info("document fits one page",
		slog.String("strategy", strategy),
		slog.String("loadout", s.doc.LoadoutID),
		slog.Int("iterations", s.cs.Iterations),
		slog.Int("levers", len(s.cs.LeversApplied)),
		slog.Int("bullets", s.totalBullets()),
		slog.Float64("font_scale", s.cs.FontScale),
	)
}
