package runtime

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// maxLogBytes caps per-instance captured stdout/stderr to bound disk use.
const maxLogBytes = 50 * 1024 * 1024

const defaultGracePeriod = 5 * time.Second

// limitWriter discards writes once limit bytes have been written, leaving
// a truncation marker in the log.
type limitWriter struct {
	w       *os.File
	written int64
	limit   int64
}

func (l *limitWriter) Write(p []byte) (int, error) {
	if l.written >= l.limit {
		return len(p), nil
	}
	if l.written+int64(len(p)) > l.limit {
		remaining := l.limit - l.written
		l.w.Write(p[:remaining])
		l.w.WriteString("\n[log limit exceeded - truncated]\n")
		l.written += int64(len(p))
		return len(p), nil
	}
	n, err := l.w.Write(p)
	l.written += int64(n)
	return n, err
}

type instance struct {
	cmd      *exec.Cmd
	done     chan struct{}
	workload string
}

// Fake is an os/exec-backed Driver standing in for the out-of-scope
// Podman driver. runtimeConfig is interpreted as a shell command line,
// launched under its own process group so Stop can signal the whole
// group rather than a single PID.
type Fake struct {
	logDir string
	logger *slog.Logger

	mu        sync.Mutex
	instances map[Handle]*instance

	exits chan Exit
}

// NewFake returns a Fake driver that writes captured instance logs under
// logDir.
func NewFake(logDir string, logger *slog.Logger) *Fake {
	return &Fake{
		logDir:    logDir,
		logger:    logger,
		instances: map[Handle]*instance{},
		exits:     make(chan Exit, 64),
	}
}

func (f *Fake) Exits() <-chan Exit { return f.exits }

// Start launches runtimeConfig as a shell command line. runtimeName is
// recorded for logging only; the fake driver does not branch on it.
func (f *Fake) Start(workloadName, runtimeName, runtimeConfig string) (Handle, error) {
	if err := os.MkdirAll(f.logDir, 0o755); err != nil {
		return "", &RuntimeError{Workload: workloadName, Op: "start", Err: fmt.Errorf("creating log dir: %w", err)}
	}

	h := Handle(uuid.New().String())
	logFile := filepath.Join(f.logDir, fmt.Sprintf("%s-%s.log", workloadName, h))
	logFd, err := os.Create(logFile)
	if err != nil {
		return "", &RuntimeError{Workload: workloadName, Op: "start", Err: fmt.Errorf("creating log file: %w", err)}
	}

	out := &limitWriter{w: logFd, limit: maxLogBytes}

	cmd := exec.Command("sh", "-c", runtimeConfig)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		logFd.Close()
		return "", &RuntimeError{Workload: workloadName, Op: "start", Err: err}
	}

	inst := &instance{cmd: cmd, done: make(chan struct{}), workload: workloadName}
	f.mu.Lock()
	f.instances[h] = inst
	f.mu.Unlock()

	f.logger.Info("runtime instance started", "workload", workloadName, "runtime", runtimeName, "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		logFd.Close()
		close(inst.done)

		status := ExitSucceeded
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				if exitErr.ExitCode() < 0 {
					status = ExitSignaled
				} else {
					status = ExitFailed
				}
			} else {
				status = ExitFailed
			}
		}
		f.logger.Info("runtime instance exited", "workload", workloadName, "status", status)
		f.exits <- Exit{Handle: h, Status: status}
	}()

	return h, nil
}

// Stop sends SIGTERM to the instance's process group, escalating to
// SIGKILL after policy.GracePeriod (default 5s) if it hasn't exited.
func (f *Fake) Stop(h Handle, policy DeletionPolicy) error {
	f.mu.Lock()
	inst, ok := f.instances[h]
	f.mu.Unlock()
	if !ok {
		return nil // already reaped; stop is idempotent
	}

	select {
	case <-inst.done:
		return nil
	default:
	}

	grace := policy.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}

	pgid, pgidErr := syscall.Getpgid(inst.cmd.Process.Pid)
	if pgidErr == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		inst.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-inst.done:
		return nil
	case <-time.After(grace):
	}

	if pgidErr == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		inst.cmd.Process.Kill()
	}
	<-inst.done
	return nil
}
