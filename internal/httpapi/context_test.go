package httpapi

import (
	"context"
	"testing"
	"time"
)

func TestJoinContexts_CancelsWhenEitherDone(t *testing.T) {
	for _, first := range []string{"base", "req"} {
		base, bc := context.WithCancel(context.Background())
		req, rc := context.WithCancel(context.Background())
		j, cancel := joinContexts(base, req)
		if first == "base" {
			bc()
		} else {
			rc()
		}
		select {
		case <-j.Done():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("joined context did not cancel when %s was canceled", first)
		}
		cancel()
		bc()
		rc()
	}
}

func TestJoinContexts_CancelReleases(t *testing.T) {
	base, bc := context.WithCancel(context.Background())
	defer bc()
	j, cancel := joinContexts(base, context.Background())
	cancel()
	if j.Err() == nil {
		t.Fatal("cancel func did not cancel the joined context")
	}
}

func TestSetBaseContext_NilResetsToBackground(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	// nolint:staticcheck // SA1012: nil is the documented reset
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatal("base context not reset")
	}
}

func TestSetMaxBodyBytes(t *testing.T) {
	SetMaxBodyBytes(10)
	if maxBodyBytes != 10 {
		t.Fatalf("got %d", maxBodyBytes)
	}
	SetMaxBodyBytes(-1)
	if maxBodyBytes != 1<<20 {
		t.Fatalf("reset got %d", maxBodyBytes)
	}
}

func TestSetCORSOptions_Defaults(t *testing.T) {
	SetCORSOptions(true, []string{"*"}, nil, nil)
	defer SetCORSOptions(false, nil, nil, nil)
	if len(corsAllowedMethods) == 0 || len(corsAllowedHeaders) == 0 {
		t.Fatalf("methods=%v headers=%v", corsAllowedMethods, corsAllowedHeaders)
	}
}
