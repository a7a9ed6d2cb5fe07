package launcher

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Process is a running worker.
type Process struct {
	cmd     *exec.Cmd
	pid     int
	profile string
	done    chan struct{}

	mu      sync.Mutex
	exitErr error
}

func (p *Process) PID() int { return p.pid }

// Profile is the name of the profile the worker was launched with.
func (p *Process) Profile() string { return p.profile }

// Exited is closed once the process has been reaped.
func (p *Process) Exited() <-chan struct{} { return p.done }

// ExitErr returns the wait error after exit, nil before.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}

func (p *Process) finish(err error) {
	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()
	close(p.done)
}

// Terminate sends SIGTERM, waits up to grace, then kills. It returns once the
// process has been reaped. Terminating an exited process is a no-op.
func (p *Process) Terminate(grace time.Duration) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			<-p.done
			return nil
		}
		_ = p.cmd.Process.Kill()
		<-p.done
		return nil
	}
	if grace > 0 {
		t := time.NewTimer(grace)
		defer t.Stop()
		select {
		case <-p.done:
			return nil
		case <-t.C:
		}
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}
