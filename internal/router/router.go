// Package router dispatches client requests to READY worker slots in
// round-robin order, evicting slots that fail and retrying on the next one.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"slotd/internal/manager"
	"slotd/pkg/types"
)

// Pool is the view of the slot manager the router needs. *manager.Manager
// implements it.
type Pool interface {
	SelectReady() (manager.SlotRef, bool)
	Evict(ref manager.SlotRef, reason string) bool
	ReadyCount() int
	Bound() []manager.SlotRef
}

const (
	DefaultCompletionsPath = "/v1/chat/completions"
	DefaultModelsPath      = "/v1/models"
	DefaultCancelPath      = "/v1/cancel"
	DefaultForwardTimeout  = 60 * time.Second
	DefaultModelsTimeout   = 15 * time.Second
	DefaultCancelTimeout   = 10 * time.Second
)

// Options configures a Router. Zero values take package defaults.
type Options struct {
	CompletionsPath string
	ModelsPath      string
	CancelPath      string
	ForwardTimeout  time.Duration
	ModelsTimeout   time.Duration
	CancelTimeout   time.Duration
	Client          *http.Client
	Logger          zerolog.Logger
}

// Response is a worker response relayed to the client.
type Response struct {
	Status  int
	Header  http.Header
	Body    []byte
	Profile string
}

type Router struct {
	pool   Pool
	opts   Options
	client *http.Client
	log    zerolog.Logger
}

// New constructs a Router over pool.
func New(pool Pool, opts Options) *Router {
	if opts.CompletionsPath == "" {
		opts.CompletionsPath = DefaultCompletionsPath
	}
	if opts.ModelsPath == "" {
		opts.ModelsPath = DefaultModelsPath
	}
	if opts.CancelPath == "" {
		opts.CancelPath = DefaultCancelPath
	}
	if opts.ForwardTimeout <= 0 {
		opts.ForwardTimeout = DefaultForwardTimeout
	}
	if opts.ModelsTimeout <= 0 {
		opts.ModelsTimeout = DefaultModelsTimeout
	}
	if opts.CancelTimeout <= 0 {
		opts.CancelTimeout = DefaultCancelTimeout
	}
	cli := opts.Client
	if cli == nil {
		tr := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		}
		// Timeout=0: every forward carries a context deadline.
		cli = &http.Client{Transport: tr, Timeout: 0}
	}
	return &Router{pool: pool, opts: opts, client: cli, log: opts.Logger}
}

// Completion validates a completion payload and forwards it to a READY slot.
func (r *Router) Completion(ctx context.Context, body []byte, header http.Header) (*Response, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ProtocolViolation("request body must be a JSON object")
	}
	var req types.CompletionRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, ProtocolViolation("invalid JSON body: " + err.Error())
	}
	if req.Stream {
		return nil, ProtocolViolation("Streaming is not supported by the coordinator.")
	}
	return r.dispatch(ctx, http.MethodPost, r.opts.CompletionsPath, body, header, r.opts.ForwardTimeout)
}

// Models forwards a model listing request to a READY slot.
func (r *Router) Models(ctx context.Context) (*Response, error) {
	return r.dispatch(ctx, http.MethodGet, r.opts.ModelsPath, nil, nil, r.opts.ModelsTimeout)
}

type attemptKey struct {
	index      int
	generation uint64
}

// dispatch tries up to max(1, ReadyCount) distinct slots. Transport errors,
// timeouts and 5xx responses evict the slot; anything else is relayed.
func (r *Router) dispatch(ctx context.Context, method, path string, body []byte, header http.Header, timeout time.Duration) (*Response, error) {
	maxAttempts := r.pool.ReadyCount()
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	tried := make(map[attemptKey]struct{}, maxAttempts)
	attempts := 0
	var lastErr error
	for sel := 0; attempts < maxAttempts && sel < 2*maxAttempts; sel++ {
		ref, ok := r.pool.SelectReady()
		if !ok {
			break
		}
		key := attemptKey{ref.Index, ref.Generation}
		if _, seen := tried[key]; seen {
			continue
		}
		tried[key] = struct{}{}
		attempts++

		resp, err := r.forward(ctx, ref, method, path, body, header, timeout)
		if err == nil && resp.Status < http.StatusInternalServerError {
			return resp, nil
		}
		if cerr := ctx.Err(); cerr != nil {
			// client went away; the worker is not at fault
			return nil, cerr
		}
		if err == nil {
			err = fmt.Errorf("worker %s returned status %d", ref.Profile, resp.Status)
		}
		lastErr = err
		r.log.Warn().Err(err).Int("slot", ref.Index).Str("profile", ref.Profile).Int("attempt", attempts).Msg("forward failed; evicting slot")
		r.pool.Evict(ref, manager.ReasonRequestFailure)
	}
	if attempts == 0 {
		return nil, ServiceUnavailable("no healthy workers available")
	}
	return nil, gatewayError{attempts: attempts, last: lastErr}
}

func (r *Router) forward(ctx context.Context, ref manager.SlotRef, method, path string, body []byte, header http.Header, timeout time.Duration) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(ref.BaseURL, "/")+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range passThroughHeaders {
		if v := header.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read worker response: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: relayHeaders(resp.Header), Body: b, Profile: ref.Profile}, nil
}

var passThroughHeaders = []string{"Authorization", "X-Request-Id", "Accept"}

// hopHeaders are never relayed back to the client.
var hopHeaders = []string{
	"Connection",
	"Content-Length",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func relayHeaders(in http.Header) http.Header {
	out := in.Clone()
	if out == nil {
		out = http.Header{}
	}
	for _, f := range out.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, h := range hopHeaders {
		out.Del(h)
	}
	return out
}

// Cancel fans a cancellation out to every bound worker. It never evicts.
func (r *Router) Cancel(ctx context.Context, id string) types.CancelResponse {
	res := types.CancelResponse{Completed: []string{}, Failed: []string{}}
	var mu sync.Mutex
	var g errgroup.Group
	for _, ref := range r.pool.Bound() {
		g.Go(func() error {
			ok := r.cancelOne(ctx, ref, id)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				res.Completed = append(res.Completed, ref.Profile)
			} else {
				res.Failed = append(res.Failed, ref.Profile)
			}
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(res.Completed)
	sort.Strings(res.Failed)
	res.Success = len(res.Completed) > 0
	return res
}

func (r *Router) cancelOne(ctx context.Context, ref manager.SlotRef, id string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.opts.CancelTimeout)
	defer cancel()
	u := strings.TrimRight(ref.BaseURL, "/") + strings.TrimRight(r.opts.CancelPath, "/") + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.log.Debug().Err(err).Str("profile", ref.Profile).Str("request_id", id).Msg("cancel failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		r.log.Debug().Int("status", resp.StatusCode).Str("profile", ref.Profile).Str("request_id", id).Msg("cancel not applied")
		return false
	}
	return true
}
