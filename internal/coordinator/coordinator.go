// Package coordinator glues the marker parser, identity resolver, context
// manager, prompt assemblers, routing queue, and agent runners into the
// top-level conversation state machine.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/agentchat/internal/bus"
	"github.com/nextlevelbuilder/agentchat/internal/convo"
	"github.com/nextlevelbuilder/agentchat/internal/routing"
	"github.com/nextlevelbuilder/agentchat/internal/runner"
	"github.com/nextlevelbuilder/agentchat/internal/team"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further work can happen in this state.
func (s Status) Terminal() bool { return s == StatusStopped || s == StatusCompleted }

// StatusChange is the payload of OnStatusChange.
type StatusChange struct {
	Status             Status `json:"status"`
	WaitingForMemberID string `json:"waitingForMemberId,omitempty"`
	Reason             string `json:"reason,omitempty"`
	Err                error  `json:"-"`
}

// AgentEvent pairs a normalized runner event with the member it came from.
type AgentEvent struct {
	MemberID   string       `json:"memberId"`
	MemberName string       `json:"memberName"`
	Event      runner.Event `json:"event"`
}

// Callbacks are the optional per-event observers. Every callback may be nil.
// A panicking callback aborts the current turn and stops the session.
type Callbacks struct {
	OnMessage               func(convo.Message)
	OnStatusChange          func(StatusChange)
	OnAgentEvent            func(AgentEvent)
	OnQueueUpdate           func(routing.Update)
	OnQueueProtection       func(routing.Protection)
	OnPartialResolveFailure func([]string)
	OnUnresolvedAddressees  func([]string)
	OnTeamTaskChanged       func(*string)
}

// Config tunes the coordinator. Zero values take defaults.
type Config struct {
	Context convo.Options
	Queue   routing.Config // limits only; callbacks are owned by the coordinator

	TurnTimeout time.Duration // per-turn cap, default runner.DefaultTimeout
	WorkDir     string        // working directory for spawned CLIs

	// ProxyEnv is injected unchanged into every spawned child when set
	// (https_proxy / HTTPS_PROXY / http_proxy / HTTP_PROXY).
	ProxyEnv map[string]string

	// MaxRounds is a soft governance knob: after this many AI turns in one
	// drive the coordinator pauses at the first human; a team with no human
	// member is marked completed instead, even with routes still queued.
	// 0 = unlimited.
	MaxRounds int

	// TurnsPerMinute paces agent spawns. 0 = unlimited.
	TurnsPerMinute float64

	// Instruction is appended to every member's system instruction
	// (contents of the team's instruction file).
	Instruction string
}

// InvalidStateError reports API misuse; the operation had no effect.
type InvalidStateError struct {
	Op     string
	Detail string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

// agentEntry tracks the live runner for one member.
type agentEntry struct {
	runner     *runner.Runner
	systemFlag string
}

// Coordinator drives one conversation session over a team.
type Coordinator struct {
	team     *team.Team
	registry *runner.Registry
	cfg      Config
	cbs      Callbacks
	events   bus.EventPublisher

	log   *convo.Log
	queue *routing.Queue

	limiter *rate.Limiter

	// driveMu serializes drives (SendMessage / InjectMessage): the session
	// is single-threaded cooperative; one drive owns the loop at a time.
	driveMu sync.Mutex

	mu                 sync.Mutex
	status             Status
	waitingForMemberID string
	agents             map[string]*agentEntry
	currentRunner      *runner.Runner
	rounds             int

	stopCtx    context.Context
	stopCancel context.CancelFunc
	stopOnce   sync.Once
}

// New builds a coordinator from a validated team document.
func New(doc *team.Document, cfg Config, cbs Callbacks) (*Coordinator, error) {
	reg := runner.NewRegistry(doc.Agents)
	t := doc.Team
	if err := t.Validate(reg.Known()); err != nil {
		return nil, err
	}
	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = doc.MaxRounds
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		team:       &t,
		registry:   reg,
		cfg:        cfg,
		cbs:        cbs,
		events:     bus.New(),
		status:     StatusIdle,
		agents:     make(map[string]*agentEntry),
		stopCtx:    ctx,
		stopCancel: cancel,
	}

	if cfg.TurnsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.TurnsPerMinute/60.0), 1)
	}

	c.log = convo.NewLog(convo.Hooks{
		OnMessageAdded: func(m convo.Message) {
			c.emitMessage(m)
		},
		OnTeamTaskChanged: func(task *string) {
			c.broadcast(protocol.EventTeamTask, task)
			if c.cbs.OnTeamTaskChanged != nil {
				c.safeCall("onTeamTaskChanged", func() { c.cbs.OnTeamTaskChanged(task) })
			}
		},
	})

	qcfg := cfg.Queue
	qcfg.OnUpdate = func(u routing.Update) {
		c.broadcast(protocol.EventQueue, u)
		if c.cbs.OnQueueUpdate != nil {
			c.safeCall("onQueueUpdate", func() { c.cbs.OnQueueUpdate(u) })
		}
	}
	qcfg.OnProtection = func(p routing.Protection) {
		slog.Warn("queue protection", "type", p.Type, "parent", p.ParentMessageID, "member", p.TargetMemberID)
		c.broadcast(protocol.EventQueueProtection, p)
		if c.cbs.OnQueueProtection != nil {
			c.safeCall("onQueueProtection", func() { c.cbs.OnQueueProtection(p) })
		}
	}
	c.queue = routing.New(qcfg)

	return c, nil
}

// Events returns the coordinator's event stream for subscribers.
func (c *Coordinator) Events() bus.EventPublisher { return c.events }

// Team returns a copy of the team.
func (c *Coordinator) Team() team.Team { return *c.team }

// Status returns the current session status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// WaitingFor returns the member id the session is paused on, if any.
func (c *Coordinator) WaitingFor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitingForMemberID
}

// Messages returns a copy of the conversation log.
func (c *Coordinator) Messages() []convo.Message { return c.log.Messages() }

// TeamTask returns the current shared team task.
func (c *Coordinator) TeamTask() *string { return c.log.TeamTask() }

// QueueStats returns a snapshot of the routing queue.
func (c *Coordinator) QueueStats() routing.Stats { return c.queue.Stats() }

// setStatus transitions the state machine and emits the change.
func (c *Coordinator) setStatus(s Status, waitingFor, reason string) {
	c.mu.Lock()
	// Terminal states only admit the stop transition.
	if (c.status.Terminal() && s != StatusStopped) || (c.status == s && c.waitingForMemberID == waitingFor) {
		c.mu.Unlock()
		return
	}
	c.status = s
	c.waitingForMemberID = waitingFor
	c.mu.Unlock()

	change := StatusChange{Status: s, WaitingForMemberID: waitingFor, Reason: reason}
	c.broadcast(protocol.EventStatus, change)
	if c.cbs.OnStatusChange != nil {
		c.safeCall("onStatusChange", func() { c.cbs.OnStatusChange(change) })
	}
}

func (c *Coordinator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusStopped
}

// Stop enters the terminal stopped state: the in-flight turn is cancelled
// (SIGTERM, then SIGKILL), the queue is cleared, and any pending
// InjectMessage fails. Idempotent.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		cur := c.currentRunner
		c.mu.Unlock()

		c.setStatus(StatusStopped, "", "stopped")
		if cur != nil {
			cur.Cancel()
		}
		c.stopCancel()
		c.queue.Clear()
	})
}

// stopWithError is the callback-panic escape hatch: abort the turn and
// surface the failure through the status change.
func (c *Coordinator) stopWithError(err error) {
	c.mu.Lock()
	alreadyStopped := c.status == StatusStopped
	cur := c.currentRunner
	c.mu.Unlock()
	if alreadyStopped {
		return
	}

	c.mu.Lock()
	c.status = StatusStopped
	c.waitingForMemberID = ""
	c.mu.Unlock()

	if cur != nil {
		cur.Cancel()
	}
	c.stopCancel()
	c.queue.Clear()

	change := StatusChange{Status: StatusStopped, Reason: "callback error", Err: err}
	c.broadcast(protocol.EventStatus, change)
	if c.cbs.OnStatusChange != nil {
		func() {
			defer func() { _ = recover() }()
			c.cbs.OnStatusChange(change)
		}()
	}
}

// safeCall invokes a callback, converting a panic into a session stop.
func (c *Coordinator) safeCall(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("callback panicked, stopping session", "callback", name, "panic", r)
			c.stopWithError(fmt.Errorf("callback %s panicked: %v", name, r))
		}
	}()
	fn()
}

func (c *Coordinator) broadcast(name string, payload interface{}) {
	c.events.Broadcast(bus.Event{Name: name, Payload: payload})
}

func (c *Coordinator) emitMessage(m convo.Message) {
	c.broadcast(protocol.EventMessage, m)
	if c.cbs.OnMessage != nil {
		c.safeCall("onMessage", func() { c.cbs.OnMessage(m) })
	}
}

// ExportSnapshot serializes the conversation (messages, team task, id
// counter) as versioned JSON.
func (c *Coordinator) ExportSnapshot() ([]byte, error) { return c.log.Export() }

// ImportSnapshot restores a previously exported snapshot. Only valid while
// the session is not actively driving turns.
func (c *Coordinator) ImportSnapshot(data []byte) error {
	c.mu.Lock()
	status := c.status
	c.mu.Unlock()
	if status == StatusRunning {
		return &InvalidStateError{Op: "importSnapshot", Detail: "session is running"}
	}
	if err := c.log.Import(data); err != nil {
		return err
	}
	c.queue.Clear()
	return nil
}
