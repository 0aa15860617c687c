package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"nozomi-tproxy/internal/redirect"
	"nozomi-tproxy/pkg/logger"
)

// Supervisor runs one redirection session: either around a command it
// spawns, or around an existing process until interrupted.
type Supervisor struct {
	config  *Config
	backend redirect.Backend
	logger  logger.Logger
	base    logger.Logger

	selfPID func() int
	alive   func(pid int) bool
	command func(name string, args ...string) *exec.Cmd

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

type Params struct {
	fx.In

	Config  *Config
	Backend redirect.Backend
	Logger  logger.Logger
}

func New(p Params) *Supervisor {
	return &Supervisor{
		config:  p.Config,
		backend: p.Backend,
		logger:  p.Logger.With(logger.String("component", "supervisor")),
		base:    p.Logger,
		selfPID: os.Getpid,
		alive:   processAlive,
		command: exec.Command,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

// Run attaches to the configured pid if one is set and spawns command
// otherwise. Cancelling ctx stops an attach session; a spawned command is
// always waited for.
func (s *Supervisor) Run(ctx context.Context, command []string) error {
	if s.config.PID != 0 {
		if len(command) > 0 {
			s.logger.Warn("ignoring command in attach mode", logger.String("command", command[0]))
		}
		return s.Attach(ctx, s.config.PID)
	}
	return s.Spawn(ctx, command)
}

func (s *Supervisor) guard(pid int) *redirect.Guard {
	return redirect.NewGuard(s.config.Key(pid), s.config.Strategy(), s.backend, s.base)
}

func release(ctx context.Context, g *redirect.Guard, err *error) {
	if rerr := g.Release(ctx); rerr != nil {
		*err = multierr.Append(*err, rerr)
	}
}

// Spawn classifies the supervisor itself, so the child inherits the group
// from its first instruction, then runs command with the supervisor's stdio
// and returns its exit status.
func (s *Supervisor) Spawn(ctx context.Context, command []string) (err error) {
	if len(command) == 0 {
		return ErrNoCommand
	}

	g := s.guard(s.selfPID())
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer release(ctx, g, &err)

	cmd := s.command(command[0], command[1:]...)
	cmd.Stdin = s.stdin
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", command[0], err)
	}

	log := s.logger.With(logger.Int("child_pid", cmd.Process.Pid))
	log.Info("command started", logger.String("command", command[0]))

	exited := make(chan struct{})
	var eg errgroup.Group

	eg.Go(func() error {
		defer close(exited)
		return cmd.Wait()
	})

	eg.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info("interrupt received, waiting for command to exit")
		case <-exited:
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return exitStatus(command[0], err)
	}

	log.Info("command exited")
	return nil
}

func exitStatus(name string, err error) error {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return fmt.Errorf("failed to wait for %s: %w", name, err)
	}

	code := exitErr.ExitCode()
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		code = 128 + int(ws.Signal())
	}
	if code <= 0 {
		code = ExitFailure
	}
	return &ExitError{Code: code}
}

// Attach classifies an existing process and keeps the redirection in place
// until ctx is cancelled or the process goes away.
func (s *Supervisor) Attach(ctx context.Context, pid int) (err error) {
	if !s.alive(pid) {
		return fmt.Errorf("cannot attach to pid %d: %w", pid, ErrNoSuchProcess)
	}

	g := s.guard(pid)
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer release(ctx, g, &err)

	log := s.logger.With(logger.Int("pid", pid))
	log.Info("attached", logger.Duration("poll_interval", s.config.PollInterval))

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("interrupt received, detaching")
			return nil
		case <-ticker.C:
			if !s.alive(pid) {
				log.Info("process exited, detaching")
				return nil
			}
		}
	}
}

// processAlive checks pid with signal 0. EPERM still means the process
// exists.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
