package coordinator

import (
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/agentchat/internal/convo"
	"github.com/nextlevelbuilder/agentchat/internal/markers"
	"github.com/nextlevelbuilder/agentchat/internal/prompt"
	"github.com/nextlevelbuilder/agentchat/internal/routing"
	"github.com/nextlevelbuilder/agentchat/internal/runner"
	"github.com/nextlevelbuilder/agentchat/internal/team"
	"github.com/nextlevelbuilder/agentchat/internal/tracing"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

// sendToAgent runs one turn on an AI member. A produced message (done,
// timeout, or cancelled finish) is recorded and returned with its parsed
// markers; a crash returns nil and the drive loop continues.
func (c *Coordinator) sendToAgent(member *team.Member, item routing.Item) (*convo.Message, *markers.Parsed, string) {
	input := c.contextFor(member, item)
	system := prompt.BuildSystemInstruction(c.team, member, c.cfg.Instruction)
	out := prompt.Assemble(member.AgentType, input, system)

	r, err := c.ensureRunner(member, out.SystemFlag)
	if err != nil {
		slog.Error("agent type lookup failed", "member", member.ID, "agent_type", member.AgentType, "error", err)
		c.emitAgentError(member, "config", err.Error())
		return nil, nil, protocol.FinishError
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(c.stopCtx); err != nil {
			return nil, nil, protocol.FinishCancelled
		}
	}

	ctx, span := tracing.Tracer().Start(c.stopCtx, "turn "+member.Name)
	span.SetAttributes(
		attribute.String("agentchat.member", member.ID),
		attribute.String("agentchat.agent_type", member.AgentType),
		attribute.String("agentchat.intent", string(item.Intent)),
		attribute.String("agentchat.parent_message_id", item.ParentMessageID),
		attribute.Int("agentchat.prompt_bytes", len(out.Prompt)),
	)
	defer span.End()

	c.emitAgentEvent(member, runner.Event{Type: protocol.AgentEventSystem, Text: "turn.started"})

	res, err := r.RunTurn(ctx, runner.Request{
		Prompt:     out.Prompt,
		SystemFlag: out.SystemFlag,
		Env:        c.cfg.ProxyEnv,
		Dir:        c.cfg.WorkDir,
		Timeout:    c.cfg.TurnTimeout,
		OnEvent: func(ev runner.Event) {
			c.emitAgentEvent(member, ev)
		},
	})
	c.releaseRunner(member, r)

	if err != nil {
		// Spawn failure or non-zero exit without completion: error event,
		// no message, no routes; the queue drain continues.
		span.SetStatus(codes.Error, err.Error())
		slog.Error("agent turn failed", "member", member.ID, "error", err)
		c.emitAgentError(member, "process", err.Error())
		return nil, nil, protocol.FinishError
	}

	span.SetAttributes(
		attribute.String("agentchat.turn_id", res.TurnID),
		attribute.String("agentchat.finish_reason", res.FinishReason),
	)

	content := runner.Sanitize(res.AccumulatedText)
	if content == "" && res.FinishReason != protocol.FinishDone {
		content = "[turn " + res.FinishReason + " before any output]"
	}

	parsed := markers.Parse(content)
	if parsed.TeamTask != nil && res.FinishReason == protocol.FinishDone {
		c.log.SetTeamTask(*parsed.TeamTask)
	}

	msg := convo.Message{
		Content: content,
		Speaker: convo.Speaker{
			ID:          member.ID,
			Name:        member.Name,
			DisplayName: member.DisplayName,
			Type:        member.Type,
		},
		Routing: buildRouting(c.team, parsed, item.ParentMessageID, item.Intent),
	}
	stored, err := c.log.AddMessage(msg)
	if err != nil {
		slog.Error("failed to record agent message", "member", member.ID, "error", err)
		return nil, nil, protocol.FinishError
	}

	if res.FinishReason != protocol.FinishDone {
		// Surface interrupted turns; the session itself keeps running.
		change := StatusChange{Status: c.Status(), Reason: "turn " + res.FinishReason + " for " + member.Name}
		c.broadcast(protocol.EventStatus, change)
		if c.cbs.OnStatusChange != nil {
			c.safeCall("onStatusChange", func() { c.cbs.OnStatusChange(change) })
		}
	}

	return &stored, parsed, res.FinishReason
}

// contextFor builds the ContextInput for a turn: route-anchored when the
// item has a parent, latest-message otherwise.
func (c *Coordinator) contextFor(member *team.Member, item routing.Item) convo.ContextInput {
	opts := c.cfg.Context
	if item.ParentMessageID != "" {
		// Reinsert the parent whenever it falls out of the window; a reply
		// must always see what it is replying to.
		opts.ForceParentReinsertion = true
		return c.log.ContextForRoute(convo.Route{
			ParentMessageID: item.ParentMessageID,
			TargetMemberID:  item.TargetMemberID,
			Intent:          item.Intent,
		}, opts)
	}
	return c.log.ContextForAgent(member.AgentType, opts)
}

// ensureRunner returns the live runner for a member, spawning a fresh one
// when none exists or the previous turn was cancelled.
func (c *Coordinator) ensureRunner(member *team.Member, systemFlag string) (*runner.Runner, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.agents[member.ID]
	if ok && !entry.runner.Cancelled() {
		entry.systemFlag = systemFlag
		c.currentRunner = entry.runner
		return entry.runner, nil
	}

	tc, err := c.registry.Lookup(member.AgentType)
	if err != nil {
		return nil, err
	}
	r := runner.New(member.ID, tc)
	c.agents[member.ID] = &agentEntry{runner: r, systemFlag: systemFlag}
	c.currentRunner = r
	return r, nil
}

// releaseRunner clears the in-flight runner, evicting it when cancelled so
// the next turn spawns fresh.
func (c *Coordinator) releaseRunner(member *team.Member, r *runner.Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentRunner == r {
		c.currentRunner = nil
	}
	if r.Cancelled() {
		delete(c.agents, member.ID)
	}
}

func (c *Coordinator) emitAgentEvent(member *team.Member, ev runner.Event) {
	ae := AgentEvent{MemberID: member.ID, MemberName: member.Name, Event: ev}
	c.broadcast(protocol.EventAgent, ae)
	if c.cbs.OnAgentEvent != nil {
		c.safeCall("onAgentEvent", func() { c.cbs.OnAgentEvent(ae) })
	}
}

func (c *Coordinator) emitAgentError(member *team.Member, code, message string) {
	c.emitAgentEvent(member, runner.Event{
		Type:    protocol.AgentEventError,
		Code:    code,
		Message: message,
	})
}
