// Package keepalive runs a background HTTP pinger that keeps an external host
// awake while the chamber is idle.
package keepalive

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sweeney/chamber-logger/internal/metrics"
)

// Pinger sends a HEAD request to a liveness URL on a fixed interval while
// running. Start and Stop are idempotent and safe for concurrent use.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped Pinger. An empty url arms the loop without pinging.
func New(url string, interval, timeout time.Duration, logger zerolog.Logger) *Pinger {
	return &Pinger{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "keepalive").Logger(),
	}
}

// Start launches the loop. It returns false if the loop was already running.
func (p *Pinger) Start() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)

	metrics.KeepAliveArmed.Set(1)
	p.logger.Info().Str("url", p.url).Dur("interval", p.interval).Msg("keep-alive started")
	return true
}

// Stop cancels the loop, including any request in flight, and waits for it
// to exit. It returns false if the loop was not running.
func (p *Pinger) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return false
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil

	metrics.KeepAliveArmed.Set(0)
	p.logger.Info().Msg("keep-alive stopped")
	return true
}

// Running reports whether the loop is armed.
func (p *Pinger) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Pinger) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if p.url == "" {
		p.logger.Warn().Msg("no keep-alive url configured, loop armed without pinging")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.ping(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pinger) ping(ctx context.Context) {
	code, err := p.head(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		metrics.KeepAlivePings.WithLabelValues("error").Inc()
		p.logger.Warn().Err(err).Str("url", p.url).Msg("keep-alive ping failed")
		return
	}
	metrics.KeepAlivePings.WithLabelValues("ok").Inc()
	p.logger.Debug().Int("status", code).Msg("keep-alive ping")
}

func (p *Pinger) head(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
