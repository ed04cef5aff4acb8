package fit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/resume-onepage/internal/oracle"
	"github.com/jonathan/resume-onepage/internal/types"
)

const strategyBisect = "bisect"

// Bisect searches font scale against an overflow oracle. A full render at
// scale 1.0 is accepted if it fits. Otherwise BisectIterations measure-only
// probes narrow [fontScaleRange lo, 1.0], keeping lo as the largest scale
// known to fit, and one final render at lo decides CanFit. Content is never
// trimmed. At most BisectIterations+2 oracle interactions are made.
func (r *Resolver) Bisect(ctx context.Context, doc *types.ResolvedDocument, o oracle.OverflowOracle) (*Result, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	s := newState(doc)

	render := func(scale float64) (*oracle.Probe, error) {
		s.cs.FontScale = scale
		params := s.cs.Params()
		var p *oracle.Probe
		err := r.withProbeTimeout(ctx, "render", func(ctx context.Context) error {
			var err error
			p, err = o.Render(ctx, doc, params)
			return err
		})
		s.cs.Iterations++
		if err != nil {
			return nil, fmt.Errorf("render at scale %.4f: %w", scale, err)
		}
		r.logger.Debug("render",
			slog.Int("iteration", s.cs.Iterations),
			slog.Float64("font_scale", scale),
			slog.Float64("height", p.Height),
			slog.Bool("fits", p.Fits),
		)
		return p, nil
	}

	first, err := render(1.0)
	if err != nil {
		return nil, err
	}
	if first.Fits {
		r.finish(s, true, strategyBisect)
		return &Result{Artifact: first.Artifact, State: s.cs}, nil
	}

	lo, hi := s.rules.FontScaleRange.Lo(), 1.0
	for i := 0; i < BisectIterations; i++ {
		mid := (lo + hi) / 2
		params := s.cs.Params()
		params.FontScale = mid

		var overflows bool
		err := r.withProbeTimeout(ctx, "overflow probe", func(ctx context.Context) error {
			var err error
			overflows, err = o.Overflows(ctx, doc, params)
			return err
		})
		s.cs.Iterations++
		if err != nil {
			return nil, fmt.Errorf("overflow probe at scale %.4f: %w", mid, err)
		}
		r.logger.Debug("overflow probe",
			slog.Int("iteration", s.cs.Iterations),
			slog.Float64("font_scale", mid),
			slog.Bool("overflows", overflows),
		)

		if overflows {
			hi = mid
		} else {
			lo = mid
		}
	}

	s.cs.Apply(types.Lever{Kind: types.LeverFontScaleSearch, Value: lo})
	r.logger.Info("lever applied", slog.String("lever", s.cs.LeversApplied[len(s.cs.LeversApplied)-1].String()))

	final, err := render(lo)
	if err != nil {
		return nil, err
	}
	r.finish(s, final.Fits, strategyBisect)
	return &Result{Artifact: final.Artifact, State: s.cs}, nil
}
