// Package browser manages a shared headless Chrome instance and hands out
// short-lived tabs for rendering and measuring documents.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultMaxSessions bounds concurrent tabs when Config.MaxSessions is zero
	DefaultMaxSessions = 4

	healthCheckTimeout = 5 * time.Second
)

// Config configures a Pool.
type Config struct {
	// ExecPath overrides Chrome discovery. Empty uses chromedp's default lookup.
	ExecPath string
	// MaxSessions is the number of tabs that may be open at once.
	MaxSessions int64
	// Logger receives lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// UnavailableError reports that the browser could not be launched or reached.
type UnavailableError struct {
	Message string
	Cause   error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("browser unavailable: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("browser unavailable: %s", e.Message)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// ErrPoolClosed is returned by Acquire after Close.
var ErrPoolClosed = errors.New("browser pool closed")

// Pool owns one lazily launched browser process. Acquire verifies the process
// is healthy and relaunches it if it is not.
type Pool struct {
	cfg    Config
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	closed        bool
}

// NewPool creates a Pool. The browser is not started until the first Acquire.
func NewPool(cfg Config) *Pool {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pool{
		cfg:    cfg,
		logger: logger,
		sem:    semaphore.NewWeighted(cfg.MaxSessions),
	}
}

// Acquire opens a new tab. It blocks while MaxSessions tabs are in use and
// returns ctx's error if ctx ends first. The caller must Release the session.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	browserCtx, err := p.ensureBrowser(ctx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	// The first Run allocates the tab; it must not carry a deadline or the
	// tab would close when the deadline fires.
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		p.sem.Release(1)
		return nil, &UnavailableError{Message: "failed to open tab", Cause: err}
	}

	return &Session{
		ctx: tabCtx,
		release: func() {
			cancelTab()
			p.sem.Release(1)
		},
	}, nil
}

// ensureBrowser returns the live browser context, launching or relaunching
// the process as needed.
func (p *Pool) ensureBrowser(ctx context.Context) (context.Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	if p.browserCtx != nil {
		err := p.healthCheck(ctx)
		if err == nil {
			return p.browserCtx, nil
		}
		p.logger.Warn("browser health check failed, relaunching", slog.String("error", err.Error()))
		p.shutdownLocked()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if p.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(p.cfg.ExecPath))
	}

	// The browser outlives any single request, so it hangs off Background.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	started := time.Now()
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, &UnavailableError{Message: "failed to launch headless Chrome", Cause: err}
	}

	p.browserCtx = browserCtx
	p.cancelBrowser = cancelBrowser
	p.cancelAlloc = cancelAlloc
	p.logger.Info("browser launched", slog.Duration("startup", time.Since(started)))

	return browserCtx, nil
}

// healthCheck asks the browser for its version over CDP.
func (p *Pool) healthCheck(ctx context.Context) error {
	if err := p.browserCtx.Err(); err != nil {
		return err
	}

	hcCtx, cancel := context.WithTimeout(p.browserCtx, healthCheckTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(hcCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, product, _, _, _, err := cdpbrowser.GetVersion().Do(ctx)
		if err != nil {
			return err
		}
		if product == "" {
			return errors.New("empty product version")
		}
		return nil
	}))
}

func (p *Pool) shutdownLocked() {
	if p.cancelBrowser != nil {
		p.cancelBrowser()
	}
	if p.cancelAlloc != nil {
		p.cancelAlloc()
	}
	p.browserCtx = nil
	p.cancelBrowser = nil
	p.cancelAlloc = nil
}

// Close terminates the browser process. Sessions still open are invalidated.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.shutdownLocked()
	p.logger.Info("browser pool closed")
}
