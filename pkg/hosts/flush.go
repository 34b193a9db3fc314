package hosts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cuemby/hostsaccel/pkg/log"
)

// Flusher clears the operating system's resolver cache
type Flusher interface {
	Flush(ctx context.Context) error
}

// CommandFlusher flushes the resolver cache by running platform commands
type CommandFlusher struct {
	// Candidates are tried in order until one exits 0
	Candidates [][]string

	// Followups run after a successful candidate; their failures are ignored
	Followups [][]string

	// Timeout bounds each command (default: 10 seconds)
	Timeout time.Duration
}

// NewCommandFlusher returns the flusher for the running platform
func NewCommandFlusher() *CommandFlusher {
	f := &CommandFlusher{Timeout: 10 * time.Second}

	switch runtime.GOOS {
	case "windows":
		f.Candidates = [][]string{{"ipconfig", "/flushdns"}}
	case "darwin":
		f.Candidates = [][]string{{"dscacheutil", "-flushcache"}}
		f.Followups = [][]string{{"killall", "-HUP", "mDNSResponder"}}
	default:
		f.Candidates = [][]string{
			{"resolvectl", "flush-caches"},
			{"systemd-resolve", "--flush-caches"},
			{"nscd", "-i", "hosts"},
		}
	}

	return f
}

// Flush runs the candidates until one succeeds
func (f *CommandFlusher) Flush(ctx context.Context) error {
	logger := log.WithComponent("hosts")

	var failures []string
	for _, argv := range f.Candidates {
		if err := f.run(ctx, argv); err != nil {
			failures = append(failures, err.Error())
			continue
		}

		for _, followup := range f.Followups {
			if err := f.run(ctx, followup); err != nil {
				logger.Debug().Err(err).Msg("resolver cache followup failed")
			}
		}

		logger.Debug().Strs("command", argv).Msg("resolver cache flushed")
		return nil
	}

	if len(failures) == 0 {
		return fmt.Errorf("%w: no flush command for %s", ErrCacheFlush, runtime.GOOS)
	}
	return fmt.Errorf("%w: %s", ErrCacheFlush, strings.Join(failures, "; "))
}

func (f *CommandFlusher) run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("no command specified")
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, path, argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("%s: %v", strings.Join(argv, " "), err)
		if stderr.Len() > 0 {
			output := strings.TrimSpace(stderr.String())
			if len(output) > 100 {
				output = output[:100] + "..."
			}
			message = fmt.Sprintf("%s, stderr: %s", message, output)
		}
		return fmt.Errorf("%s", message)
	}
	return nil
}

// NopFlusher does nothing; used when flushing is disabled
type NopFlusher struct{}

// Flush implements Flusher
func (NopFlusher) Flush(context.Context) error { return nil }
