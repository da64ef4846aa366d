package rendering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/docgen/backend/internal/domain/document"
)

const defaultChromeTimeout = 30 * time.Second

// Paper sizes in inches, portrait
var chromePaper = map[document.PaperSize][2]float64{
	document.PaperA4:     {8.27, 11.69},
	document.PaperLetter: {8.5, 11},
}

// ChromeConfig configures the Chrome print engine
type ChromeConfig struct {
	// RemoteURL points at a running Chrome DevTools endpoint. When empty a
	// local headless browser is launched.
	RemoteURL string
	NoSandbox bool
	Timeout   time.Duration
	Logger    *zap.Logger
}

// ChromeEngine prints the HTML rendition of a composition to PDF through
// the Chrome DevTools Protocol. Chrome stamps its own metadata, so output
// is not byte-stable across runs.
type ChromeEngine struct {
	config      ChromeConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeEngine creates the allocator; the browser starts lazily on the
// first render.
func NewChromeEngine(cfg ChromeConfig) *ChromeEngine {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &ChromeEngine{config: cfg, logger: logger.Named("chrome")}

	if cfg.RemoteURL != "" {
		e.allocCtx, e.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return e
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	e.allocCtx, e.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return e
}

func (e *ChromeEngine) Name() string { return "chromedp" }

// PDF implements PDFEngine
func (e *ChromeEngine) PDF(ctx context.Context, c *Composition) ([]byte, error) {
	html, err := HTML(c)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	browserCtx, browserCancel := chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// Stop the browser tab when the caller gives up
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	size, ok := chromePaper[c.Paper]
	if !ok {
		size = chromePaper[document.PaperA4]
	}
	margin := pdfMargin / 25.4

	var out []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(size[0]).
				WithPaperHeight(size[1]).
				WithMarginTop(margin).
				WithMarginRight(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithLandscape(c.Orientation == document.OrientationLandscape).
				Do(ctx)
			if err != nil {
				return err
			}
			out = data
			return nil
		}),
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, document.NewRenderError(document.RenderErrTimeout,
				fmt.Sprintf("PDF printing timed out after %v", e.config.Timeout), err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, document.NewRenderError(document.RenderErrEngineUnavailable, "chrome print failed", err)
	}
	if len(out) == 0 {
		return nil, document.NewRenderError(document.RenderErrEncodeFailed, "chrome produced an empty PDF", nil)
	}
	return out, nil
}

// Close releases the browser allocator
func (e *ChromeEngine) Close() error {
	if e.allocCancel != nil {
		e.allocCancel()
	}
	return nil
}
