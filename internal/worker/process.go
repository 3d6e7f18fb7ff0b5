// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// portEnv is the environment variable the worker reads its listen port from.
const portEnv = "ROOST_WORKER_PORT"

// process manages a single worker process.
type process struct {
	command    []string
	workingDir string
	port       int

	mu        sync.RWMutex
	cmd       *exec.Cmd
	state     State
	pid       int
	exitCode  int
	startedAt time.Time
	stoppedAt time.Time
	logs      *LogBuffer

	onExit   func(int)
	waitDone chan struct{}
	running  bool
}

func newProcess(command []string, workingDir string, port int) *process {
	return &process{
		command:    command,
		workingDir: workingDir,
		port:       port,
		state:      StateStarting,
		logs:       NewLogBuffer(defaultLogBufferSize),
	}
}

// start spawns the worker with cwd set to the working directory and the
// inherited environment overlaid with HOME, USERPROFILE, and the port.
func (p *process) start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("worker already running")
	}
	if len(p.command) == 0 {
		return fmt.Errorf("empty worker command")
	}

	cmd := exec.Command(p.command[0], p.command[1:]...)
	cmd.Dir = p.workingDir

	// New process group so a terminate reaches worker children too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	cmd.Env = overlayEnv(os.Environ(), p.port)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		p.state = StateExited
		return fmt.Errorf("start worker: %w", err)
	}

	p.cmd = cmd
	p.pid = cmd.Process.Pid
	p.startedAt = time.Now()
	p.running = true
	p.state = StateRunning
	p.waitDone = make(chan struct{})

	go p.captureOutput(stdout, "stdout")
	go p.captureOutput(stderr, "stderr")
	go p.waitForExit()

	return nil
}

// terminate sends SIGTERM to the worker's process group and returns
// immediately. Shutdown never waits on worker exit.
func (p *process) terminate() {
	p.mu.RLock()
	cmd := p.cmd
	running := p.running
	p.mu.RUnlock()

	if !running || cmd == nil || cmd.Process == nil {
		return
	}
	// Negative PID signals the whole process group
	syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func (p *process) status() (State, int, int, time.Time, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.pid, p.exitCode, p.startedAt, p.stoppedAt
}

func (p *process) setOnExit(fn func(int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onExit = fn
}

// captureOutput bridges one worker stream into the log buffer and the
// daemon log, tagged with port and directory for multi-instance
// disambiguation.
func (p *process) captureOutput(r io.Reader, stream string) {
	tag := fmt.Sprintf("[worker :%d %s]", p.port, p.workingDir)
	br := bufio.NewReader(r)

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")

			// Truncate very long lines to bound memory
			const maxLineLen = 1024 * 1024
			if len(line) > maxLineLen {
				line = line[:maxLineLen] + "... [truncated]"
			}
			p.logs.Write(line)
			log.Printf("%s %s", tag, line)
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("%s %s read error: %v", tag, stream, err)
			}
			break
		}
	}
}

func (p *process) waitForExit() {
	err := p.cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.stoppedAt = time.Now()
	p.state = StateExited

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			p.exitCode = exitErr.ExitCode()
		} else {
			p.exitCode = -1
		}
	} else {
		p.exitCode = 0
	}

	exitCode := p.exitCode
	onExit := p.onExit
	waitDone := p.waitDone
	p.cmd = nil
	p.mu.Unlock()

	close(waitDone)

	if onExit != nil {
		onExit(exitCode)
	}
}

// overlayEnv returns the inherited environment with HOME, USERPROFILE,
// and the worker port overlaid. HOME and USERPROFILE are both set so the
// worker resolves the same home directory on every platform.
func overlayEnv(base []string, port int) []string {
	home, err := os.UserHomeDir()

	env := make([]string, 0, len(base)+3)
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if key == portEnv {
			continue
		}
		if err == nil && (key == "HOME" || key == "USERPROFILE") {
			continue
		}
		env = append(env, kv)
	}
	if err == nil {
		env = append(env, "HOME="+home, "USERPROFILE="+home)
	}
	env = append(env, portEnv+"="+strconv.Itoa(port))
	return env
}
