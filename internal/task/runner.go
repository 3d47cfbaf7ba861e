package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/tesseralab/tessera/internal/log"
)

// DefaultGrace is how long a cancelled task gets to exit after SIGTERM
// before the process group is killed.
const DefaultGrace = 2 * time.Second

// ExitError reports a child process that exited non-zero. The CLI propagates
// the code as tessera's own exit status.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("task exited with code %d", e.Code)
}

// Runner executes bound invocations with inherited stdio.
type Runner struct {
	// Grace overrides DefaultGrace when positive.
	Grace time.Duration

	// Stdin, Stdout and Stderr default to the process's own.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts the invocation and waits for it. The child runs in its own
// process group; when ctx is cancelled the group gets SIGTERM, then SIGKILL
// after the grace period.
func (r *Runner) Run(ctx context.Context, inv *Invocation) error {
	argv := inv.Command()
	env, err := environ(inv.Task)
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = inv.Task.Dir
	cmd.Env = env
	cmd.Stdin = r.stdin()
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()
	setProcessGroup(cmd)

	log.Debug("task starting", "task", inv.Task.Name, "argv", argv, "dir", cmd.Dir)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting task %q: %w", inv.Task.Name, err)
	}

	exited := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		close(exited)
		done <- err
	}()

	select {
	case <-ctx.Done():
		grace := r.Grace
		if grace <= 0 {
			grace = DefaultGrace
		}
		log.Debug("task cancelled, terminating", "task", inv.Task.Name, "grace", grace)
		terminate(cmd, grace, exited)
		<-done
		return ctx.Err()
	case err := <-done:
		if err == nil {
			return nil
		}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code := exitCode(ee)
			log.Debug("task exited", "task", inv.Task.Name, "code", code)
			return &ExitError{Code: code}
		}
		return fmt.Errorf("running task %q: %w", inv.Task.Name, err)
	}
}

func (r *Runner) stdin() io.Reader {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// environ builds the child environment: process env, then the project's
// .env file, then the task's own env, later layers winning.
func environ(t *Task) ([]string, error) {
	merged := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			merged[k] = v
		}
	}

	if t.manifestDir != "" {
		envPath := filepath.Join(t.manifestDir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			fileEnv, err := godotenv.Read(envPath)
			if err != nil {
				return nil, fmt.Errorf("reading .env: %w", err)
			}
			for k, v := range fileEnv {
				merged[k] = v
			}
			log.Debug("loaded project .env", "path", envPath, "vars", len(fileEnv))
		}
	}

	for k, v := range t.Env {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, len(keys))
	for i, k := range keys {
		env[i] = k + "=" + merged[k]
	}
	return env, nil
}
