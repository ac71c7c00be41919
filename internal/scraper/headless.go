package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/JakeFAU/movierank/internal/metrics"
)

// HeadlessConfig controls the chromedp source.
type HeadlessConfig struct {
	UserAgent         string
	NavigationTimeout time.Duration
	ClickPause        time.Duration
	Selectors         Selectors
}

// HeadlessSource opens each ranked item's info modal in headless Chrome and
// parses the modal HTML.
type HeadlessSource struct {
	cfg         HeadlessConfig
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewHeadlessSource starts a Chrome allocator. Call Close when done.
func NewHeadlessSource(cfg HeadlessConfig) *HeadlessSource {
	cfg = cfg.withDefaults()
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &HeadlessSource{cfg: cfg, allocator: allocCtx, allocCancel: allocCancel}
}

func (c HeadlessConfig) withDefaults() HeadlessConfig {
	c.Selectors = c.Selectors.withDefaults()
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 20 * time.Second
	}
	if c.ClickPause < 0 {
		c.ClickPause = 0
	}
	return c
}

// Close cancels the allocator context.
func (h *HeadlessSource) Close() {
	h.allocCancel()
}

// Items implements Source.
func (h *HeadlessSource) Items(ctx context.Context, pageURL string, limit int) ([]Item, error) {
	taskCtx, taskCancel := chromedp.NewContext(h.allocator)
	defer taskCancel()
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	// The first Run starts the browser under the context it is given, so it
	// must not carry a deadline or the browser dies when that deadline fires.
	if err := chromedp.Run(taskCtx); err != nil {
		metrics.ObserveFetch(pageURL, "error")
		return nil, fmt.Errorf("start browser: %w", err)
	}

	count, err := h.openPage(taskCtx, pageURL)
	if err != nil {
		metrics.ObserveFetch(pageURL, "error")
		return nil, err
	}
	metrics.ObserveFetch(pageURL, "ok")
	if count < limit {
		limit = count
	}

	items := make([]Item, 0, limit)
	for rank := 1; rank <= limit; rank++ {
		if err := ctx.Err(); err != nil {
			return items, fmt.Errorf("headless scrape canceled: %w", err)
		}
		item := Item{Rank: rank}
		html, err := h.readItem(taskCtx, rank)
		if err == nil {
			item.Movie, err = ParseModal(html, h.cfg.Selectors)
		}
		if err != nil {
			item.Err = fmt.Errorf("item %d: %w", rank, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// openPage navigates to pageURL and returns how many ranking items it lists.
func (h *HeadlessSource) openPage(taskCtx context.Context, pageURL string) (int, error) {
	ctx, cancel := context.WithTimeout(taskCtx, h.cfg.NavigationTimeout)
	defer cancel()

	var nodes []*cdp.Node
	err := chromedp.Run(ctx,
		h.networkSetupAction(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Nodes(h.cfg.Selectors.Item, &nodes, chromedp.ByQueryAll),
	)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", pageURL, err)
	}
	return len(nodes), nil
}

// readItem clicks the info button of the rank-th item and returns the modal's
// outer HTML, closing the modal afterwards.
func (h *HeadlessSource) readItem(taskCtx context.Context, rank int) (string, error) {
	ctx, cancel := context.WithTimeout(taskCtx, h.cfg.NavigationTimeout)
	defer cancel()

	s := h.cfg.Selectors
	button := fmt.Sprintf("%s:nth-of-type(%d) %s", s.Item, rank, s.InfoButton)
	var html string
	err := chromedp.Run(ctx,
		chromedp.ScrollIntoView(button, chromedp.ByQuery),
		chromedp.Click(button, chromedp.ByQuery),
		chromedp.WaitVisible(s.Modal, chromedp.ByQuery),
		chromedp.Sleep(h.cfg.ClickPause),
		chromedp.OuterHTML(s.Modal, &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("open info modal: %w", err)
	}
	if err := chromedp.Run(ctx,
		chromedp.Click(s.CloseButton, chromedp.ByQuery),
		chromedp.WaitNotPresent(s.Modal, chromedp.ByQuery),
		chromedp.Sleep(h.cfg.ClickPause),
	); err != nil {
		// Escape also dismisses the modal; the next click fails if it did not.
		_ = chromedp.Run(ctx, chromedp.KeyEvent(kb.Escape))
	}
	return html, nil
}

func (h *HeadlessSource) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if h.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(h.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}
