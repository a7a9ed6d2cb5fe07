// Package health probes worker HTTP endpoints. Probes are observations only;
// callers decide what a failed probe means for a slot.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultPath           = "/health"
	DefaultInterval       = time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// Target identifies the worker to probe.
type Target struct {
	Name    string
	BaseURL string
	// Exited, when non-nil, is closed once the worker process is gone.
	// AwaitReady stops early when it fires.
	Exited <-chan struct{}
}

// Options configures a Prober. Zero values take package defaults.
type Options struct {
	Path           string
	Interval       time.Duration
	RequestTimeout time.Duration
	Client         *http.Client
	Logger         zerolog.Logger
}

// Prober issues readiness and liveness probes against workers.
type Prober struct {
	path           string
	interval       time.Duration
	requestTimeout time.Duration
	client         *http.Client
	log            zerolog.Logger
}

var errExited = errors.New("worker exited")

// New constructs a Prober.
func New(opts Options) *Prober {
	p := &Prober{
		path:           opts.Path,
		interval:       opts.Interval,
		requestTimeout: opts.RequestTimeout,
		client:         opts.Client,
		log:            opts.Logger,
	}
	if p.path == "" {
		p.path = DefaultPath
	}
	if !strings.HasPrefix(p.path, "/") {
		p.path = "/" + p.path
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.requestTimeout <= 0 {
		p.requestTimeout = DefaultRequestTimeout
	}
	if p.client == nil {
		// Timeout=0: every probe carries its own context deadline.
		p.client = &http.Client{Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,
		}, Timeout: 0}
	}
	return p
}

// AwaitReady polls the readiness endpoint until it answers 2xx, the worker
// exits, timeout elapses, or ctx is cancelled. It reports whether the worker
// became ready.
func (p *Prober) AwaitReady(ctx context.Context, t Target, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := 0
	op := func() error {
		attempts++
		if t.Exited != nil {
			select {
			case <-t.Exited:
				return backoff.Permanent(errExited)
			default:
			}
		}
		reqTimeout := p.requestTimeout
		if reqTimeout > timeout {
			reqTimeout = timeout
		}
		return p.probe(ctx, t.BaseURL, reqTimeout)
	}
	bo := backoff.WithContext(backoff.NewConstantBackOff(p.interval), ctx)
	err := backoff.Retry(op, bo)
	if err == nil {
		p.log.Debug().Str("worker", t.Name).Int("attempts", attempts).Msg("worker ready")
		return true
	}
	p.log.Debug().Str("worker", t.Name).Int("attempts", attempts).Err(err).Msg("worker not ready")
	return false
}

// CheckAlive performs a single bounded probe.
func (p *Prober) CheckAlive(ctx context.Context, t Target, timeout time.Duration) bool {
	if t.Exited != nil {
		select {
		case <-t.Exited:
			return false
		default:
		}
	}
	if timeout <= 0 {
		timeout = p.requestTimeout
	}
	if err := p.probe(ctx, t.BaseURL, timeout); err != nil {
		p.log.Debug().Str("worker", t.Name).Err(err).Msg("liveness probe failed")
		return false
	}
	return true
}

func (p *Prober) probe(ctx context.Context, baseURL string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+p.path, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("readiness status %d", resp.StatusCode)
	}
	return nil
}
