package fit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonathan/resume-onepage/internal/oracle"
	"github.com/jonathan/resume-onepage/internal/types"
)

const strategyDescent = "descent"

// Descend runs ordered lever descent against a page-count oracle. It probes
// the identity state, then applies, re-probing after every step and stopping
// at the first fit:
//
//  1. bullet reduction, up to MaxBulletRounds times
//  2. compact project format
//  3. project count reduction down to one
//  4. leadership suppression
//  5. line height 0.98, 0.96, ... down to lineHeightRange lo
//  6. font scale 0.98, 0.96, ... down to fontScaleRange lo
//
// When nothing fits, the most degraded state is returned with CanFit false
// and the artifact of the last probe. Only renderer failures are errors.
func (r *Resolver) Descend(ctx context.Context, doc *types.ResolvedDocument, o oracle.PageOracle) (*Result, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}

	s := newState(doc)
	var last *oracle.Probe

	probe := func() (bool, error) {
		params := s.cs.Params()
		err := r.withProbeTimeout(ctx, "page count probe", func(ctx context.Context) error {
			p, err := o.Probe(ctx, doc, params)
			if err != nil {
				return err
			}
			last = p
			return nil
		})
		s.cs.Iterations++
		if err != nil {
			return false, fmt.Errorf("probe %d: %w", s.cs.Iterations, err)
		}
		r.logger.Debug("probe",
			slog.Int("iteration", s.cs.Iterations),
			slog.Int("pages", last.Pages),
			slog.Bool("fits", last.Fits),
		)
		return last.Fits, nil
	}

	// apply records a lever and re-probes
	apply := func(l types.Lever) (bool, error) {
		s.cs.Apply(l)
		r.logger.Info("lever applied", slog.String("lever", l.String()))
		return probe()
	}

	done := func(fits bool) (*Result, error) {
		r.finish(s, fits, strategyDescent)
		return &Result{Artifact: last.Artifact, State: s.cs}, nil
	}

	fits, err := probe()
	if err != nil {
		return nil, err
	}
	if fits {
		return done(true)
	}

	for round := 0; round < MaxBulletRounds; round++ {
		l, ok := s.reduceBullet()
		if !ok {
			break
		}
		fits, err := apply(l)
		if err != nil {
			return nil, err
		}
		if fits {
			return done(true)
		}
	}

	// Levers 2-6 each step until they report no further change.
	steps := []func() (types.Lever, bool){
		s.compactProjects,
		s.reduceProjects,
		s.hideLeadership,
		s.stepLineHeight,
		s.stepFontScale,
	}
	for _, step := range steps {
		for {
			l, ok := step()
			if !ok {
				break
			}
			fits, err := apply(l)
			if err != nil {
				return nil, err
			}
			if fits {
				return done(true)
			}
		}
	}

	return done(false)
}
