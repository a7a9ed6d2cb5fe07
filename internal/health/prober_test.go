package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newProber() *Prober {
	return New(Options{Interval: 10 * time.Millisecond, RequestTimeout: 200 * time.Millisecond})
}

func TestAwaitReady_BecomesReady(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !newProber().AwaitReady(context.Background(), Target{Name: "a", BaseURL: srv.URL}, 2*time.Second) {
		t.Fatalf("expected ready")
	}
	if hits.Load() < 3 {
		t.Fatalf("expected at least 3 probes, got %d", hits.Load())
	}
}

func TestAwaitReady_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	start := time.Now()
	if newProber().AwaitReady(context.Background(), Target{BaseURL: srv.URL}, 100*time.Millisecond) {
		t.Fatalf("expected not ready")
	}
	if el := time.Since(start); el > time.Second {
		t.Fatalf("timeout not honored: %v", el)
	}
}

func TestAwaitReady_ExitedStopsEarly(t *testing.T) {
	exited := make(chan struct{})
	close(exited)
	start := time.Now()
	if newProber().AwaitReady(context.Background(), Target{BaseURL: "http://127.0.0.1:1", Exited: exited}, 5*time.Second) {
		t.Fatalf("expected not ready")
	}
	if el := time.Since(start); el > time.Second {
		t.Fatalf("exit not detected early: %v", el)
	}
}

func TestAwaitReady_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if newProber().AwaitReady(ctx, Target{BaseURL: "http://127.0.0.1:1"}, 5*time.Second) {
		t.Fatalf("expected not ready")
	}
}

func TestCheckAlive(t *testing.T) {
	status := atomic.Int32{}
	status.Store(http.StatusOK)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := newProber()
	tgt := Target{BaseURL: srv.URL}
	if !p.CheckAlive(context.Background(), tgt, time.Second) {
		t.Fatalf("expected alive")
	}
	status.Store(http.StatusBadGateway)
	if p.CheckAlive(context.Background(), tgt, time.Second) {
		t.Fatalf("expected not alive on 502")
	}
}

func TestCheckAlive_SlowWorkerTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	if newProber().CheckAlive(context.Background(), Target{BaseURL: srv.URL}, 50*time.Millisecond) {
		t.Fatalf("expected not alive")
	}
}

func TestNew_CustomPath(t *testing.T) {
	p := New(Options{Path: "ping"})
	if p.path != "/ping" {
		t.Fatalf("path = %q", p.path)
	}
	if p.interval != DefaultInterval || p.requestTimeout != DefaultRequestTimeout {
		t.Fatalf("defaults not applied: %+v", p)
	}
}
