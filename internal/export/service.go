// Package export drives one export request: it resolves the document, picks
// the template's oracle and fit strategy, and records the outcome.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/resume-onepage/internal/db"
	"github.com/jonathan/resume-onepage/internal/fit"
	"github.com/jonathan/resume-onepage/internal/oracle"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/types"
)

const (
	// DefaultExportTimeout bounds a whole resolution
	DefaultExportTimeout = 60 * time.Second

	recordTimeout = 5 * time.Second
)

// Store is the slice of the content store the service needs.
type Store interface {
	LoadDocument(ctx context.Context, idOrSlug string) (*types.ResolvedDocument, error)
	RecordExport(ctx context.Context, rec *db.ExportRecord) error
}

// OverflowFactory returns an overflow oracle rendering with the given photo.
type OverflowFactory func(photoURL string) oracle.OverflowOracle

// ChromeOverflow adapts a ChromeOracle to an OverflowFactory.
func ChromeOverflow(o *oracle.ChromeOracle) OverflowFactory {
	return func(photoURL string) oracle.OverflowOracle {
		return o.WithPhoto(photoURL)
	}
}

// Config configures a Service.
type Config struct {
	ProbeTimeout  time.Duration
	ExportTimeout time.Duration
	Logger        *slog.Logger
}

// Request is one export. Document wins over LoadoutID when both are set.
type Request struct {
	LoadoutID  string
	Document   *types.ResolvedDocument
	TemplateID string
	PhotoURL   string
}

// Result is a finished export.
type Result struct {
	Artifact []byte
	Filename string
	Template rendering.Template
	Summary  *types.CompressionState
	Duration time.Duration
}

// Service runs exports. It is safe for concurrent use.
type Service struct {
	store         Store
	pages         oracle.PageOracle
	overflow      OverflowFactory
	resolver      *fit.Resolver
	exportTimeout time.Duration
	logger        *slog.Logger
}

// NewService creates a Service. store may be nil when only inline documents are exported.
func NewService(cfg Config, store Store, pages oracle.PageOracle, overflow OverflowFactory) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.ExportTimeout
	if timeout <= 0 {
		timeout = DefaultExportTimeout
	}
	return &Service{
		store:         store,
		pages:         pages,
		overflow:      overflow,
		resolver:      fit.NewResolver(logger, cfg.ProbeTimeout),
		exportTimeout: timeout,
		logger:        logger,
	}
}

// Export resolves the request's document onto one page with the selected template.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	parent := ctx
	ctx, cancel := context.WithTimeout(parent, s.exportTimeout)
	defer cancel()

	doc, err := s.document(ctx, req)
	if err != nil {
		return nil, err
	}

	templateID := req.TemplateID
	if templateID == "" {
		templateID = doc.TemplateID
	}
	tmpl := rendering.GetTemplate(templateID)
	if templateID != "" && tmpl.ID != templateID {
		s.logger.Warn("unknown template, falling back",
			slog.String("requested", templateID),
			slog.String("template", tmpl.ID),
		)
	}

	logger := s.logger.With(
		slog.String("loadout", doc.Slug),
		slog.String("template", tmpl.ID),
	)
	logger.Info("export started", slog.String("engine", string(tmpl.Engine)))

	res, err := s.resolve(ctx, tmpl, doc, req.PhotoURL)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && parent.Err() == nil {
			err = &oracle.RenderTimeoutError{Operation: "export", Timeout: s.exportTimeout, Cause: context.DeadlineExceeded}
		}
		logger.Error("export failed", slog.String("error", err.Error()))
		return nil, err
	}

	elapsed := time.Since(start)
	logger.Info("export completed",
		slog.Bool("can_fit", res.State.CanFit),
		slog.Int("iterations", res.State.Iterations),
		slog.Int("bytes", len(res.Artifact)),
		slog.Duration("duration", elapsed),
	)

	s.record(ctx, doc, tmpl, res, elapsed)

	return &Result{
		Artifact: res.Artifact,
		Filename: Filename(doc.Slug, tmpl.ID),
		Template: tmpl,
		Summary:  res.State,
		Duration: elapsed,
	}, nil
}

func (s *Service) document(ctx context.Context, req Request) (*types.ResolvedDocument, error) {
	if req.Document != nil {
		return req.Document, nil
	}
	if req.LoadoutID == "" {
		return nil, &RequestError{Message: "either a loadout id or a document is required"}
	}
	if s.store == nil {
		return nil, ErrNoStore
	}

	doc, err := s.store.LoadDocument(ctx, req.LoadoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to load loadout %s: %w", req.LoadoutID, err)
	}
	if doc == nil {
		return nil, &NotFoundError{LoadoutID: req.LoadoutID}
	}
	return doc, nil
}

func (s *Service) resolve(ctx context.Context, tmpl rendering.Template, doc *types.ResolvedDocument, photoURL string) (*fit.Result, error) {
	switch tmpl.Engine {
	case rendering.EngineChrome:
		if s.overflow == nil {
			return nil, &oracle.RendererUnavailableError{Renderer: "chrome", Message: "no browser configured"}
		}
		return s.resolver.Bisect(ctx, doc, s.overflow(photoURL))
	default:
		if s.pages == nil {
			return nil, &oracle.RendererUnavailableError{Renderer: "pdflatex", Message: "no LaTeX compiler configured"}
		}
		return s.resolver.Descend(ctx, doc, s.pages)
	}
}

// record writes the audit row. Failures are logged and never fail the export.
func (s *Service) record(ctx context.Context, doc *types.ResolvedDocument, tmpl rendering.Template, res *fit.Result, elapsed time.Duration) {
	if s.store == nil || doc.Slug == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	rec := db.NewExportRecord(doc.Slug, tmpl.ID, *res.State, len(res.Artifact), elapsed)
	if err := s.store.RecordExport(ctx, rec); err != nil {
		s.logger.Warn("failed to record export",
			slog.String("loadout", doc.Slug),
			slog.String("error", err.Error()),
		)
	}
}

// Filename is the attachment name of an exported PDF.
func Filename(slug, templateID string) string {
	if slug == "" {
		return fmt.Sprintf("resume-%s.pdf", templateID)
	}
	return fmt.Sprintf("%s-%s-resume.pdf", slug, templateID)
}
