package capture

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/raysh454/sightline/internal/config"
	"github.com/raysh454/sightline/internal/logging"
)

// BackendConstructor constructs a Capturer given the capture config and logger.
type BackendConstructor func(cfg config.CaptureConfig, logger logging.Logger) (Capturer, error)

var (
	mu       sync.RWMutex
	backends = map[string]BackendConstructor{}
)

// RegisterBackend registers a named backend constructor. Name is lower-cased
// internally. Registering the same name again overwrites the previous
// constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	backends[strings.ToLower(name)] = ctor
}

// RegisterDefaultBackends registers the chromedp backend.
func RegisterDefaultBackends() {
	RegisterBackend(BackendChromeDP, func(cfg config.CaptureConfig, logger logging.Logger) (Capturer, error) {
		return NewChromeDPCapturer(cfg, logger)
	})
}

// New constructs the configured backend. An empty backend name means chromedp.
func New(cfg config.CaptureConfig, logger logging.Logger) (Capturer, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendChromeDP
	}

	mu.RLock()
	ctor, ok := backends[backend]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("capture backend %q not registered: available backends=%v", backend, ListBackends())
	}

	c, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct capture backend %q: %w", backend, err)
	}
	if c == nil {
		return nil, errors.New("capture constructor returned nil")
	}
	return c, nil
}

// ListBackends returns the registered backend names, sorted.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(backends))
	for k := range backends {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
