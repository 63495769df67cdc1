package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
)

const BackendChromeDP = "chromedp"

// cookieClickTimeout bounds the wait for a cookie banner button to appear.
const cookieClickTimeout = 5 * time.Second

// ChromeDPCapturer drives a single headless Chrome; every capture runs in its own tab.
type ChromeDPCapturer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc

	timeout   time.Duration
	idleAfter time.Duration
	logger    logging.Logger
}

// NewChromeDPCapturer starts the browser. It fails when no Chrome binary is available.
func NewChromeDPCapturer(cfg config.CaptureConfig, logger logging.Logger) (*ChromeDPCapturer, error) {
	componentLogger := logger.With(logging.Field{Key: "backend", Value: BackendChromeDP})

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)

	// the first Run launches the browser
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	idleAfter := cfg.IdleAfter
	if idleAfter <= 0 {
		idleAfter = 2 * time.Second
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	componentLogger.Info("created chromedp capturer",
		logging.Field{Key: "headless", Value: cfg.Headless},
		logging.Field{Key: "idle_after", Value: idleAfter.String()})

	return &ChromeDPCapturer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
		timeout:     timeout,
		idleAfter:   idleAfter,
		logger:      componentLogger,
	}, nil
}

// waitNetworkIdle signals once no request has been in flight for idleAfter.
func waitNetworkIdle(ctx context.Context, idleAfter time.Duration) <-chan struct{} {
	idleChan := make(chan struct{}, 1)
	var activeReqs int32
	var timer *time.Timer
	var timerMutex sync.Mutex
	var once sync.Once

	startTimer := func() {
		timerMutex.Lock()
		defer timerMutex.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(idleAfter, func() {
			if atomic.LoadInt32(&activeReqs) <= 0 {
				once.Do(func() {
					idleChan <- struct{}{}
				})
			}
		})
	}

	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			atomic.AddInt32(&activeReqs, 1)
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if atomic.AddInt32(&activeReqs, -1) <= 0 {
				startTimer()
			}
		}
	})

	return idleChan
}

// Capture loads req.URL in a fresh tab at the requested viewport, waits for the
// network to go idle, clicks the cookie banner if asked, waits req.Wait and
// takes a viewport screenshot together with the rendered HTML.
func (c *ChromeDPCapturer) Capture(ctx context.Context, req *Request) (*Shot, error) {
	if req == nil || req.URL == "" {
		return nil, errors.New("capture: empty request")
	}

	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()

	idle := waitNetworkIdle(tabCtx, c.idleAfter)

	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(req.Viewport.Width), int64(req.Viewport.Height)),
		chromedp.Navigate(req.URL),
	)
	if err != nil {
		return nil, fmt.Errorf("navigate %s: %w", req.URL, err)
	}

	select {
	case <-idle:
	case <-time.After(c.timeout / 2):
		c.logger.Debug("network never went idle, capturing anyway", logging.Field{Key: "url", Value: req.URL})
	case <-tabCtx.Done():
		return nil, fmt.Errorf("capture %s: %w", req.URL, tabCtx.Err())
	}

	if req.CookieAcceptSelector != "" {
		c.acceptCookies(tabCtx, req.CookieAcceptSelector)
	}

	var (
		png  []byte
		html string
	)
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(req.Wait),
		chromedp.CaptureScreenshot(&png),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", req.URL, err)
	}

	return &Shot{PNG: png, HTML: []byte(html), TakenAt: time.Now()}, nil
}

// acceptCookies clicks selector if it shows up. A missing banner is not an error.
func (c *ChromeDPCapturer) acceptCookies(ctx context.Context, selector string) {
	clickCtx, cancel := context.WithTimeout(ctx, cookieClickTimeout)
	defer cancel()
	if err := chromedp.Run(clickCtx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		c.logger.Debug("cookie banner not clicked",
			logging.Field{Key: "selector", Value: selector},
			logging.Field{Key: "error", Value: err})
	}
}

func (c *ChromeDPCapturer) Close() error {
	c.logger.Info("closing chromedp capturer")
	c.cancel()
	c.allocCancel()
	return nil
}
