// Package oracle answers whether a candidate rendering of a document fits on
// one page. The discrete oracle renders through LaTeX and reads a page count;
// the continuous oracle renders in headless Chrome and measures content height.
package oracle

import (
	"context"

	"github.com/jonathan/resume-onepage/internal/types"
)

// Probe is the outcome of one full render.
type Probe struct {
	// Artifact is the rendered PDF.
	Artifact []byte
	// Pages is the artifact's page count, when the oracle knows it.
	Pages int
	// Height is the measured content height in CSS px, when the oracle measures.
	Height float64
	Fits   bool
}

// PageOracle renders a document and reports whether the result is exactly one
// page. It carries no magnitude information.
type PageOracle interface {
	Probe(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams) (*Probe, error)
}

// OverflowOracle measures rendered height against one page. Overflows is the
// cheap measure-only probe; Render also produces the artifact and reports the
// fit from the same measurement.
type OverflowOracle interface {
	Overflows(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams) (bool, error)
	Render(ctx context.Context, doc *types.ResolvedDocument, params types.VisualParams) (*Probe, error)
}
