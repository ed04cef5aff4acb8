package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Letter page geometry at 96 CSS px per inch.
const (
	ViewportWidth  = 816
	ViewportHeight = 1056
	PaperWidthIn   = 8.5
	PaperHeightIn  = 11.0
)

// Session is one browser tab. It is not safe for concurrent use.
type Session struct {
	ctx     context.Context
	release func()
}

// Release closes the tab and returns its slot to the pool. It is safe to call
// more than once.
func (s *Session) Release() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// run executes actions in the tab, bounded by both the tab's lifetime and ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("browser action interrupted: %w", ctx.Err())
	}
	if err != nil && runCtx.Err() != nil {
		return fmt.Errorf("browser action interrupted: %w", runCtx.Err())
	}
	return err
}

// SetContent replaces the tab's document with html at Letter viewport width
// and waits for layout, including web fonts, to settle.
func (s *Session) SetContent(ctx context.Context, html string) error {
	var fontsReady bool
	return s.run(ctx,
		chromedp.EmulateViewport(ViewportWidth, ViewportHeight),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.fonts.ready.then(() => true)`, &fontsReady,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
}

// MeasureHeight returns the rendered document's scroll height in CSS pixels.
func (s *Session) MeasureHeight(ctx context.Context) (float64, error) {
	var height float64
	if err := s.run(ctx, chromedp.Evaluate(`document.documentElement.scrollHeight`, &height)); err != nil {
		return 0, err
	}
	return height, nil
}

// PrintPDF prints the current document to a single Letter page with no
// margins and backgrounds preserved.
func (s *Session) PrintPDF(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(PaperWidthIn).
			WithPaperHeight(PaperHeightIn).
			WithMarginTop(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithMarginRight(0).
			WithPreferCSSPageSize(true).
			Do(ctx)
		if err != nil {
			return err
		}
		data = buf
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return data, nil
}
