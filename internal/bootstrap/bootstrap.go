// Package bootstrap recreates the Redis container the movie API depends on,
// by driving the docker CLI: force-remove, run detached, wait a fixed delay.
// There is no retry; a failed docker run aborts the whole verification.
package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/movie-api/moviecheck/internal/config"
	"github.com/movie-api/moviecheck/internal/telemetry"
)

// Result is the captured outcome of one command
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Commander runs external commands. err is reserved for commands that could
// not be started or were cancelled; a non-zero exit is reported in Result.
type Commander interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecCommander runs commands with os/exec
type ExecCommander struct{}

// Run implements Commander
func (ExecCommander) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr) && ctx.Err() == nil:
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}
	return res, nil
}

// Error reports a failed container operation
type Error struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Stderr != "":
		return fmt.Sprintf("%s failed (exit %d): %s", e.Op, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("%s failed (exit %d)", e.Op, e.ExitCode)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Bootstrapper recreates the dependency container
type Bootstrapper struct {
	cfg config.BootstrapConfig
	cmd Commander

	// Ping checks readiness after the delay when redis_ping is enabled.
	Ping func(ctx context.Context, addr string) error
	// Sleep waits out the ready delay.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New creates a bootstrapper. A nil commander runs the real docker binary.
func New(cfg config.BootstrapConfig, cmd Commander) *Bootstrapper {
	if cmd == nil {
		cmd = ExecCommander{}
	}
	return &Bootstrapper{
		cfg:   cfg,
		cmd:   cmd,
		Ping:  PingRedis,
		Sleep: sleep,
	}
}

// Recreate force-removes the container, starts a fresh one and waits the
// ready delay. It returns the new container id.
func (b *Bootstrapper) Recreate(ctx context.Context) (string, error) {
	id, err := b.recreate(ctx)
	if err != nil {
		telemetry.BootstrapTotal.WithLabelValues(telemetry.OutcomeFail).Inc()
		return "", err
	}
	telemetry.BootstrapTotal.WithLabelValues(telemetry.OutcomePass).Inc()
	return id, nil
}

func (b *Bootstrapper) recreate(ctx context.Context) (string, error) {
	docker := b.cfg.DockerBinary
	if docker == "" {
		docker = "docker"
	}

	// The container may not exist; any outcome of rm is acceptable.
	if _, err := b.cmd.Run(ctx, docker, "rm", "-f", b.cfg.ContainerName); err != nil {
		if ctx.Err() != nil {
			return "", &Error{Op: "docker rm", Err: ctx.Err()}
		}
		slog.Debug("docker rm failed", "container", b.cfg.ContainerName, "error", err)
	}

	res, err := b.cmd.Run(ctx, docker, "run",
		"--name", b.cfg.ContainerName,
		"-p", b.cfg.PortMapping(),
		"-d", b.cfg.Image,
	)
	if err != nil {
		return "", &Error{Op: "docker run", Err: err}
	}
	if res.ExitCode != 0 {
		return "", &Error{Op: "docker run", ExitCode: res.ExitCode, Stderr: strings.TrimSpace(string(res.Stderr))}
	}

	id := strings.TrimSpace(string(res.Stdout))
	slog.Info("container recreated", "container", b.cfg.ContainerName, "image", b.cfg.Image, "container_id", id)

	if err := b.Sleep(ctx, b.cfg.ReadyDelay); err != nil {
		return "", &Error{Op: "ready delay", Err: err}
	}

	if ps, err := b.cmd.Run(ctx, docker, "ps"); err == nil {
		slog.Debug("docker ps", "output", string(ps.Stdout))
	}

	if b.cfg.RedisPing.Enabled {
		if err := b.Ping(ctx, b.cfg.RedisPing.Addr); err != nil {
			return "", &Error{Op: "redis ping", Err: err}
		}
		slog.Debug("redis ping ok", "addr", b.cfg.RedisPing.Addr)
	}

	return id, nil
}

// PingRedis sends a single PING to addr, without retries
func PingRedis(ctx context.Context, addr string) error {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		MaxRetries:  -1,
		DialTimeout: 2 * time.Second,
	})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
