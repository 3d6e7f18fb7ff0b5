// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"

	ps "github.com/mitchellh/go-ps"

	"github.com/roosthq/roost/internal/config"
	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/netport"
)

// ErrExecutableMissing is returned when the worker binary cannot be
// found. Fatal to starting a worker; surfaced to the shell as a blocking
// error, never retried automatically.
var ErrExecutableMissing = errors.New("worker executable not found")

// ErrWorkerNotFound is returned when no worker is tracked for a directory.
var ErrWorkerNotFound = errors.New("no worker for directory")

// workerBinary is the name of the embedded worker executable, expected
// next to the daemon binary unless overridden in config.
const workerBinary = "roost-worker"

// Supervisor owns all worker processes, keyed by working directory. All
// state lives on the instance; it is created at application start and
// torn down at application exit.
type Supervisor struct {
	cfg   config.WorkerConfig
	bus   events.Bus
	ports *netport.Allocator

	mu      sync.RWMutex
	workers map[string]*process
}

// NewSupervisor creates a worker supervisor.
func NewSupervisor(cfg config.WorkerConfig, bus events.Bus, ports *netport.Allocator) *Supervisor {
	return &Supervisor{
		cfg:     cfg,
		bus:     bus,
		ports:   ports,
		workers: make(map[string]*process),
	}
}

// Start ensures a worker is running for the given working directory and
// returns its connection parameters. An empty directory defaults to the
// user's home directory. Start is idempotent per directory.
func (s *Supervisor) Start(ctx context.Context, workingDir string) (StartResult, error) {
	dir, err := normalizeDir(workingDir)
	if err != nil {
		return StartResult{}, err
	}

	// Pass-through mode: an externally managed worker on the default port
	if s.cfg.Disabled {
		return StartResult{Port: s.cfg.DefaultPort, WorkingDir: dir}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if proc, ok := s.workers[dir]; ok {
		state, _, _, _, _ := proc.status()
		if state != StateExited {
			return StartResult{Port: proc.port, WorkingDir: dir}, nil
		}
		proc.logs.CloseAllSubscribers()
		delete(s.workers, dir)
	}

	command, err := s.resolveCommand()
	if err != nil {
		log.Printf("Worker start failed for %s: %v", dir, err)
		return StartResult{}, err
	}

	var port int
	if s.cfg.PreferredPort > 0 {
		port, err = s.ports.ScanFrom(s.cfg.PreferredPort)
	} else {
		port, err = s.ports.Allocate()
	}
	if err != nil {
		log.Printf("Worker start failed for %s: %v", dir, err)
		return StartResult{}, err
	}

	proc := newProcess(command, dir, port)
	proc.setOnExit(func(exitCode int) {
		log.Printf("Worker for %s exited with code %d", dir, exitCode)
		if s.bus != nil {
			s.bus.Publish(context.Background(), events.Event{
				Type:   events.EventWorkerExited,
				Window: dir,
				Payload: map[string]any{
					"working_dir": dir,
					"port":        port,
					"exit_code":   exitCode,
				},
			})
		}
	})

	if err := proc.start(); err != nil {
		return StartResult{}, err
	}
	s.workers[dir] = proc

	log.Printf("Worker started for %s (PID %d, port %d)", dir, proc.pid, port)
	if s.bus != nil {
		s.bus.Publish(ctx, events.Event{
			Type:   events.EventWorkerStarted,
			Window: dir,
			Payload: map[string]any{
				"working_dir": dir,
				"port":        port,
				"pid":         proc.pid,
			},
		})
	}

	return StartResult{Port: port, WorkingDir: dir}, nil
}

// Stop sends a terminate signal to the worker for the given directory
// and returns without waiting. No error if the worker already exited.
func (s *Supervisor) Stop(workingDir string) error {
	dir, err := normalizeDir(workingDir)
	if err != nil {
		return err
	}

	s.mu.RLock()
	proc, ok := s.workers[dir]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorkerNotFound, dir)
	}

	proc.terminate()
	return nil
}

// StopAll terminates every tracked worker, best-effort and non-blocking.
// Called on application shutdown; shutdown never waits on worker exit.
func (s *Supervisor) StopAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, proc := range s.workers {
		proc.terminate()
	}
}

// Status returns the handle for the worker serving a directory. A
// tracked PID that no longer appears in the process table is reported
// as exited even if the wait has not completed yet.
func (s *Supervisor) Status(workingDir string) (Handle, error) {
	dir, err := normalizeDir(workingDir)
	if err != nil {
		return Handle{}, err
	}

	s.mu.RLock()
	proc, ok := s.workers[dir]
	s.mu.RUnlock()
	if !ok {
		return Handle{}, fmt.Errorf("%w: %s", ErrWorkerNotFound, dir)
	}

	return s.handleFor(dir, proc), nil
}

// List returns handles for all tracked workers.
func (s *Supervisor) List() []Handle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	handles := make([]Handle, 0, len(s.workers))
	for dir, proc := range s.workers {
		handles = append(handles, s.handleFor(dir, proc))
	}
	return handles
}

// Logs returns the last n output lines for a worker.
func (s *Supervisor) Logs(workingDir string, n int) ([]string, error) {
	dir, err := normalizeDir(workingDir)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	proc, ok := s.workers[dir]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, dir)
	}
	return proc.logs.Lines(n), nil
}

func (s *Supervisor) handleFor(dir string, proc *process) Handle {
	state, pid, exitCode, startedAt, stoppedAt := proc.status()

	// Cross-check a running PID against the live process table
	if state == StateRunning && pid > 0 {
		if found, err := ps.FindProcess(pid); err == nil && found == nil {
			state = StateExited
		}
	}

	return Handle{
		Key:        dir,
		Port:       proc.port,
		WorkingDir: dir,
		PID:        pid,
		State:      state,
		ExitCode:   exitCode,
		StartedAt:  startedAt,
		StoppedAt:  stoppedAt,
	}
}

// resolveCommand returns the worker command: the config override when
// set, otherwise the platform default next to the daemon binary. The
// executable must exist; a missing binary aborts the start.
func (s *Supervisor) resolveCommand() ([]string, error) {
	if len(s.cfg.Command) > 0 {
		path := s.cfg.Command[0]
		if !filepath.IsAbs(path) {
			resolved, err := exec.LookPath(path)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrExecutableMissing, path)
			}
			path = resolved
		} else if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrExecutableMissing, path)
		}
		return append([]string{path}, s.cfg.Command[1:]...), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve daemon executable: %w", err)
	}
	name := workerBinary
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	path := filepath.Join(filepath.Dir(exe), name)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutableMissing, path)
	}
	return []string{path}, nil
}

func normalizeDir(dir string) (string, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return abs, nil
}
