package httpapi

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// zlog is the structured logger of the HTTP layer. Nop until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// LogLevel controls per-request logging behavior.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelInfo
	LevelDebug
)

func parseLevel(s string) LogLevel {
	switch s {
	case "off", "":
		return LevelOff
	case "error":
		return LevelError
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// global default, read once
var defaultLogLevel = func() LogLevel {
	if v, ok := os.LookupEnv("SLOTD_HTTP_LOG_LEVEL"); ok {
		return parseLevel(v)
	}
	return LevelInfo
}()

func requestLogLevel(r *http.Request) LogLevel {
	// Per-request overrides
	if v := r.URL.Query().Get("log"); v != "" {
		if v == "1" {
			return LevelDebug
		}
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// reqLog carries the start time and level of one proxied request.
type reqLog struct {
	r     *http.Request
	lvl   LogLevel
	start time.Time
}

func startLog(r *http.Request, op string) reqLog {
	rl := reqLog{r: r, lvl: requestLogLevel(r), start: time.Now()}
	if rl.lvl >= LevelDebug {
		rl.event(zlog.Debug()).Str("op", op).Int64("content_length", r.ContentLength).Msg("request start")
	}
	return rl
}

func (rl reqLog) event(e *zerolog.Event) *zerolog.Event {
	e = e.Str("path", rl.r.URL.Path).Str("method", rl.r.Method)
	if rid := middleware.GetReqID(rl.r.Context()); rid != "" {
		e = e.Str("request_id", rid)
	}
	return e
}

// end logs the outcome. Failures log at error level whenever logging is on.
func (rl reqLog) end(status int, profile string, err error) {
	if rl.lvl == LevelOff {
		return
	}
	if err != nil {
		rl.event(zlog.Error()).Int("status", status).Dur("dur", time.Since(rl.start)).Err(err).Msg("request end")
		return
	}
	if rl.lvl >= LevelInfo {
		e := rl.event(zlog.Info()).Int("status", status).Dur("dur", time.Since(rl.start))
		if profile != "" {
			e = e.Str("profile", profile)
		}
		e.Msg("request end")
	}
}
