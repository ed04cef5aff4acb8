package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonathan/resume-onepage/internal/browser"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/types"
)

const chromeRenderer = "chrome"

// Session is one exclusive rendering tab.
type Session interface {
	SetContent(ctx context.Context, html string) error
	MeasureHeight(ctx context.Context) (float64, error)
	PrintPDF(ctx context.Context) ([]byte, error)
	Release()
}

// SessionPool hands out exclusive sessions.
type SessionPool interface {
	Acquire(ctx context.Context) (Session, error)
}

type browserPool struct {
	pool *browser.Pool
}

func (b browserPool) Acquire(ctx context.Context) (Session, error) {
	s, err := b.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FromBrowserPool adapts a browser.Pool to SessionPool.
func FromBrowserPool(p *browser.Pool) SessionPool {
	return browserPool{pool: p}
}

// ChromeOracle is the continuous overflow oracle for the Modern Dark template.
type ChromeOracle struct {
	pool       SessionPool
	photoURL   string
	pageHeight float64
	logger     *slog.Logger
}

// NewChromeOracle builds a ChromeOracle measuring against a Letter page.
func NewChromeOracle(pool SessionPool, logger *slog.Logger) *ChromeOracle {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ChromeOracle{pool: pool, pageHeight: rendering.PageHeightPx, logger: logger}
}

// WithPhoto returns a copy of the oracle that renders photoURL in the sidebar.
func (o *ChromeOracle) WithPhoto(photoURL string) *ChromeOracle {
	c := *o
	c.photoURL = photoURL
	return &c
}

// Overflows reports whether the rendered content is taller than one page.
func (o *ChromeOracle) Overflows(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams) (bool, error) {
	var height float64
	err := o.withSession(ctx, doc, params, func(s Session) error {
		var err error
		height, err = s.MeasureHeight(ctx)
		return sessionError(ctx, "measure", err)
	})
	if err != nil {
		return false, err
	}

	o.logger.Debug("chrome overflow probe",
		slog.Float64("font_scale", params.FontScale),
		slog.Float64("height", height),
	)
	return height > o.pageHeight, nil
}

// Render measures and prints in one session, so Fits always reflects the
// measurement of the returned artifact.
func (o *ChromeOracle) Render(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams) (*Probe, error) {
	probe := &Probe{}
	err := o.withSession(ctx, doc, params, func(s Session) error {
		height, err := s.MeasureHeight(ctx)
		if err != nil {
			return sessionError(ctx, "measure", err)
		}
		pdf, err := s.PrintPDF(ctx)
		if err != nil {
			return sessionError(ctx, "print", err)
		}
		probe.Height = height
		probe.Artifact = pdf
		probe.Fits = height <= o.pageHeight
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.logger.Debug("chrome render",
		slog.Float64("font_scale", params.FontScale),
		slog.Float64("height", probe.Height),
		slog.Int("bytes", len(probe.Artifact)),
	)
	return probe, nil
}

// withSession renders the document into a fresh session and runs fn. The
// session is released on every path.
func (o *ChromeOracle) withSession(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams, fn func(Session) error) error {
	html, err := rendering.RenderHTML(doc, params, o.photoURL)
	if err != nil {
		return fmt.Errorf("render HTML: %w", err)
	}

	s, err := o.pool.Acquire(ctx)
	if err != nil {
		return sessionError(ctx, "acquire session", err)
	}
	defer s.Release()

	if err := s.SetContent(ctx, html); err != nil {
		return sessionError(ctx, "load content", err)
	}
	return fn(s)
}

// sessionError classifies a failure inside a Chrome session. Anything that is
// not a timeout or cancellation means the tab or browser died.
func sessionError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	classified := classify(ctx, chromeRenderer, op, err)
	if IsFatal(classified) || errors.Is(err, context.Canceled) {
		return classified
	}
	return &RendererUnavailableError{Renderer: chromeRenderer, Message: op + " failed", Cause: err}
}
