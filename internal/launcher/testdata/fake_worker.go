package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
)

func main() {
	var apiPort, streamPort, debugPort int
	var profile string
	var headless, unhealthy, ignoreTerm bool
	var exitAfter time.Duration
	// Accept the flags the launcher passes to real workers
	flag.IntVar(&apiPort, "server-port", 0, "api port")
	flag.IntVar(&streamPort, "stream-port", 0, "stream port")
	flag.IntVar(&debugPort, "debug-port", 0, "debug port")
	flag.StringVar(&profile, "profile", "", "auth profile path")
	flag.BoolVar(&headless, "headless", false, "headless")
	// Test knobs
	flag.BoolVar(&unhealthy, "unhealthy", false, "answer 503 on /health")
	flag.BoolVar(&ignoreTerm, "ignore-term", false, "ignore SIGTERM")
	flag.DurationVar(&exitAfter, "exit-after", 0, "exit with status 3 after this long")
	flag.Parse()

	fmt.Printf("fake worker profile=%s api=%d stream=%d debug=%d headless=%v\n", profile, apiPort, streamPort, debugPort, headless)
	fmt.Fprintf(os.Stderr, "env profile=%s\n", os.Getenv("SLOTD_PROFILE_NAME"))

	name := os.Getenv("SLOTD_PROFILE_NAME")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if unhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"fake","object":"model"}]}`))
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"profile": name, "object": "chat.completion"})
	})
	mux.HandleFunc("/v1/cancel/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/v1/cancel/")
		if id == "known" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	srv := &http.Server{Addr: fmt.Sprintf("127.0.0.1:%d", apiPort), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	if exitAfter > 0 {
		go func() {
			time.Sleep(exitAfter)
			os.Exit(3)
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	for sig := range sigCh {
		if ignoreTerm && sig == syscall.SIGTERM {
			fmt.Println("ignoring SIGTERM")
			continue
		}
		break
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
