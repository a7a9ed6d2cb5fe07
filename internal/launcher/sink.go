package launcher

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// sink is the rotating log file shared by every launch of one profile.
type sink struct {
	w   io.WriteCloser
	log zerolog.Logger
}

func (s *sink) Close() error {
	if s.w == nil {
		return nil
	}
	return s.w.Close()
}

func (l *Launcher) sinkFor(profile string) (*sink, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.sinks[profile]; ok {
		return s, nil
	}
	s := &sink{}
	if l.opts.LogDir == "" {
		s.log = zerolog.Nop()
	} else {
		if err := os.MkdirAll(l.opts.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		s.w = &lumberjack.Logger{
			Filename:   filepath.Join(l.opts.LogDir, logFileName(profile)),
			MaxSize:    l.opts.LogMaxSizeMB,
			MaxBackups: l.opts.LogMaxBackups,
		}
		s.log = zerolog.New(s.w).With().Timestamp().Str("profile", profile).Logger()
	}
	l.sinks[profile] = s
	return s, nil
}

// LogPath returns the log file a profile's worker output goes to, or "" when
// worker output is discarded.
func (l *Launcher) LogPath(profile string) string {
	if l.opts.LogDir == "" {
		return ""
	}
	return filepath.Join(l.opts.LogDir, logFileName(profile))
}

func logFileName(profile string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, profile)
	if name == "" || name == "." || name == ".." {
		name = "worker"
	}
	return name + ".log"
}

// maxLineBytes caps a buffered partial line; longer output is logged in pieces.
const maxLineBytes = 64 << 10

// lineWriter logs complete output lines from one worker stream.
type lineWriter struct {
	mu     sync.Mutex
	log    zerolog.Logger
	stream string
	buf    []byte
}

func (lw *lineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx < 0 {
			break
		}
		lw.emit(lw.buf[:idx])
		lw.buf = lw.buf[idx+1:]
	}
	if len(lw.buf) >= maxLineBytes {
		lw.emit(lw.buf)
		lw.buf = nil
	}
	return len(p), nil
}

func (lw *lineWriter) setLogger(l zerolog.Logger) {
	lw.mu.Lock()
	lw.log = l
	lw.mu.Unlock()
}

// Flush logs a trailing partial line, if any.
func (lw *lineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buf) > 0 {
		lw.emit(lw.buf)
		lw.buf = nil
	}
}

func (lw *lineWriter) emit(b []byte) {
	line := strings.TrimRight(string(b), "\r")
	if line == "" {
		return
	}
	lw.log.Info().Str("stream", lw.stream).Msg(line)
}
