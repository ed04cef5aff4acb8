package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonathan/resume-onepage/internal/latex"
	"github.com/jonathan/resume-onepage/internal/rendering"
	"github.com/jonathan/resume-onepage/internal/types"
)

const latexRenderer = "pdflatex"

// Compiler turns LaTeX source into PDF bytes.
type Compiler interface {
	Compile(ctx context.Context, src string) ([]byte, error)
}

// PageCounter returns the number of pages in a PDF.
type PageCounter func(ctx context.Context, pdf []byte) (int, error)

// LaTeXOracle is the discrete page-count oracle for the ATS Classic template.
type LaTeXOracle struct {
	compiler Compiler
	count    PageCounter
	logger   *slog.Logger
}

// NewLaTeXOracle builds a LaTeXOracle. A nil counter uses latex.CountPages.
func NewLaTeXOracle(compiler Compiler, count PageCounter, logger *slog.Logger) *LaTeXOracle {
	if count == nil {
		count = latex.CountPages
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LaTeXOracle{compiler: compiler, count: count, logger: logger}
}

// Probe renders, compiles and counts pages. Fits is true only for exactly one page.
func (o *LaTeXOracle) Probe(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams) (*Probe, error) {
	src, err := rendering.RenderLaTeX(doc, params)
	if err != nil {
		return nil, fmt.Errorf("render LaTeX: %w", err)
	}

	start := time.Now()
	pdf, err := o.compiler.Compile(ctx, src)
	if err != nil {
		return nil, classify(ctx, latexRenderer, "compile", err)
	}

	pages, err := o.count(ctx, pdf)
	if err != nil {
		return nil, classify(ctx, latexRenderer, "count pages", err)
	}

	o.logger.Debug("latex probe",
		slog.Int("pages", pages),
		slog.Int("bytes", len(pdf)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return &Probe{Artifact: pdf, Pages: pages, Fits: pages == 1}, nil
}
