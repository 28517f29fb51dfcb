package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nextlevelbuilder/agentchat/internal/prompt"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

const (
	// DefaultTimeout bounds one turn end to end.
	DefaultTimeout = 300 * time.Second

	// killGrace is how long a terminated child gets before SIGKILL.
	killGrace = 5 * time.Second

	// maxLineBytes bounds one stdout JSONL line.
	maxLineBytes = 10 * 1024 * 1024
)

// Request is the input for one turn.
type Request struct {
	Prompt     string
	SystemFlag string
	Env        map[string]string // merged over the parent environment
	Dir        string
	Timeout    time.Duration // 0 = DefaultTimeout
	OnEvent    func(Event)   // called from the stream goroutine, in order
}

// Runner executes turns for one member. Each turn spawns a fresh child
// process; the runner itself only carries the invocation config and the
// cancellation flag.
type Runner struct {
	memberID string
	cfg      TypeConfig

	mu  sync.Mutex
	cmd *exec.Cmd

	cancelCh   chan struct{}
	cancelOnce sync.Once
}

// New creates a runner for one member.
func New(memberID string, cfg TypeConfig) *Runner {
	return &Runner{memberID: memberID, cfg: cfg, cancelCh: make(chan struct{})}
}

// Cancel requests cooperative cancellation of the in-flight turn. The
// outstanding RunTurn resolves with finishReason=cancelled. Idempotent.
func (r *Runner) Cancel() {
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

// Cancelled reports whether Cancel was called.
func (r *Runner) Cancelled() bool {
	select {
	case <-r.cancelCh:
		return true
	default:
		return false
	}
}

// RunTurn spawns the CLI once, streams parsed events to req.OnEvent, and
// resolves when the agent signals turn completion, the process exits, the
// timeout fires, or the turn is cancelled.
func (r *Runner) RunTurn(ctx context.Context, req Request) (Result, error) {
	args := make([]string, 0, len(r.cfg.DefaultArgs)+len(r.cfg.ExtraArgs)+len(r.cfg.PromptArgs)+3)
	args = append(args, r.cfg.DefaultArgs...)
	args = append(args, r.cfg.ExtraArgs...)
	args = append(args, r.cfg.PromptArgs...)
	if r.cfg.SystemFlagName != "" && req.SystemFlag != "" {
		args = append(args, r.cfg.SystemFlagName, req.SystemFlag)
	}
	args = append(args, req.Prompt)

	cmd := exec.Command(r.cfg.Command, args...)
	cmd.Dir = req.Dir
	cmd.Env = mergedEnv(req.Env)
	cmd.Stdin = nil // stdio: {ignore, pipe, pipe}
	// Own process group so SIGTERM/SIGKILL reach the CLI's children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, &SpawnError{Command: r.cfg.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{}, &SpawnError{Command: r.cfg.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return Result{}, &SpawnError{Command: r.cfg.Command, Err: err}
	}

	r.mu.Lock()
	r.cmd = cmd
	r.mu.Unlock()

	turnID := uuid.NewString()
	slog.Debug("agent turn started",
		"member", r.memberID, "turn", turnID, "command", r.cfg.Command,
		"family", r.cfg.Family, "prompt_bytes", len(req.Prompt))

	st := &turnState{turnID: turnID, family: r.cfg.Family, onEvent: req.OnEvent}
	parser := newParser(r.cfg.Family)

	var g errgroup.Group
	g.Go(func() error {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			for _, ev := range parser.ParseLine(scanner.Text()) {
				st.apply(ev)
			}
		}
		return scanner.Err()
	})
	g.Go(func() error {
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
		for scanner.Scan() {
			slog.Debug("agent stderr", "member", r.memberID, "line", scanner.Text())
		}
		return nil
	})

	waitCh := make(chan error, 1)
	go func() {
		pumpErr := g.Wait()
		waitErr := cmd.Wait()
		if waitErr == nil {
			waitErr = pumpErr
		}
		waitCh <- waitErr
	}()

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case waitErr := <-waitCh:
		return r.finalize(st, waitErr)
	case <-timer.C:
		slog.Warn("agent turn timed out", "member", r.memberID, "timeout", timeout)
		r.terminate(waitCh)
		return st.finish(protocol.FinishTimeout), nil
	case <-r.cancelCh:
		r.terminate(waitCh)
		return st.finish(protocol.FinishCancelled), nil
	case <-ctx.Done():
		r.terminate(waitCh)
		return st.finish(protocol.FinishCancelled), nil
	}
}

// finalize maps a natural process exit to a result.
func (r *Runner) finalize(st *turnState, waitErr error) (Result, error) {
	if reason := st.completedReason(); reason != "" {
		return st.finish(reason), nil
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return Result{}, &ExitError{Command: r.cfg.Command, ExitCode: exitErr.ExitCode()}
	}
	if waitErr != nil {
		return Result{}, fmt.Errorf("agent stream: %w", waitErr)
	}
	// Exit 0 without an explicit completion: synthesize done.
	return st.finish(protocol.FinishDone), nil
}

// terminate sends SIGTERM, escalating to SIGKILL after the grace period.
func (r *Runner) terminate(waitCh <-chan error) {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := signalGroup(cmd.Process.Pid, syscall.SIGTERM); err != nil {
		slog.Debug("SIGTERM failed", "member", r.memberID, "error", err)
	}
	select {
	case <-waitCh:
	case <-time.After(killGrace):
		slog.Warn("agent ignored SIGTERM, killing", "member", r.memberID)
		_ = signalGroup(cmd.Process.Pid, syscall.SIGKILL)
		<-waitCh
	}
}

// signalGroup signals the child's whole process group, falling back to the
// single process when the group is gone.
func signalGroup(pid int, sig syscall.Signal) error {
	if err := syscall.Kill(-pid, sig); err == nil {
		return nil
	}
	return syscall.Kill(pid, sig)
}

func mergedEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

// turnState tracks accumulation and completion across the stream goroutine
// and the turn driver.
type turnState struct {
	turnID  string
	family  string
	onEvent func(Event)

	mu        sync.Mutex
	acc       string
	completed string
}

// apply folds one event into the accumulated text per the family rules:
// claude-code's final text arrives as a "result" event (streaming chunks are
// display-only); codex/gemini/plain accumulate "message" events. Reasoning
// never contributes.
func (s *turnState) apply(ev Event) {
	s.mu.Lock()
	switch {
	case ev.Type == protocol.AgentEventTurnCompleted:
		if s.completed == "" {
			s.completed = ev.FinishReason
		}
	case ev.Type == protocol.AgentEventText && ev.Category == "result":
		s.acc = ev.Text
	case ev.Type == protocol.AgentEventText && ev.Category == "message" && s.family != prompt.FamilyClaudeCode:
		if s.acc != "" {
			s.acc += "\n"
		}
		s.acc += ev.Text
	}
	s.mu.Unlock()

	if s.onEvent != nil {
		s.onEvent(ev)
	}
}

func (s *turnState) completedReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

func (s *turnState) finish(reason string) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Result{
		TurnID:          s.turnID,
		Success:         reason == protocol.FinishDone,
		FinishReason:    reason,
		AccumulatedText: s.acc,
	}
}
