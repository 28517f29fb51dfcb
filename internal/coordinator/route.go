package coordinator

import (
	"log/slog"

	"github.com/nextlevelbuilder/agentchat/internal/convo"
	"github.com/nextlevelbuilder/agentchat/internal/markers"
	"github.com/nextlevelbuilder/agentchat/internal/routing"
	"github.com/nextlevelbuilder/agentchat/internal/team"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

// SendMessage admits a user-originated message and starts (or resumes) the
// conversation loop. It returns once the session reaches paused, completed,
// or stopped.
func (c *Coordinator) SendMessage(content, speakerMemberID string) error {
	member := c.team.MemberByID(speakerMemberID)
	if member == nil {
		return &InvalidStateError{Op: "sendMessage", Detail: "unknown member " + speakerMemberID}
	}

	c.mu.Lock()
	if c.status.Terminal() {
		status := c.status
		c.mu.Unlock()
		return &InvalidStateError{Op: "sendMessage", Detail: "session is " + string(status)}
	}
	c.mu.Unlock()

	c.driveMu.Lock()
	defer c.driveMu.Unlock()

	msg, parsed, err := c.admit(content, member, "")
	if err != nil {
		return err
	}
	c.setStatus(StatusRunning, "", "")
	c.drive(&msg, parsed)
	return nil
}

// InjectMessage is the human reply path: only valid while the session is
// paused waiting on exactly this member.
func (c *Coordinator) InjectMessage(memberID, content string) error {
	member := c.team.MemberByID(memberID)
	if member == nil {
		return &InvalidStateError{Op: "injectMessage", Detail: "unknown member " + memberID}
	}

	c.mu.Lock()
	if c.status != StatusPaused || c.waitingForMemberID != memberID {
		detail := "session is " + string(c.status)
		if c.status == StatusPaused {
			detail = "paused waiting for " + c.waitingForMemberID + ", not " + memberID
		}
		c.mu.Unlock()
		return &InvalidStateError{Op: "injectMessage", Detail: detail}
	}
	c.mu.Unlock()

	c.driveMu.Lock()
	defer c.driveMu.Unlock()

	// Anchor the reply to the message that paused the session, so sibling
	// collection sees human answers alongside AI ones.
	parentID := ""
	if last, ok := c.log.Last(); ok {
		parentID = last.ID
	}

	msg, parsed, err := c.admit(content, member, parentID)
	if err != nil {
		return err
	}
	c.setStatus(StatusRunning, "", "")
	c.drive(&msg, parsed)
	return nil
}

// admit parses markers, applies any TEAM_TASK, records the message with its
// routing metadata, and returns both for the drive loop.
func (c *Coordinator) admit(content string, member *team.Member, parentID string) (convo.Message, *markers.Parsed, error) {
	parsed := markers.Parse(content)
	if parsed.TeamTask != nil {
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
		Routing: buildRouting(c.team, parsed, parentID, ""),
	}
	stored, err := c.log.AddMessage(msg)
	if err != nil {
		return convo.Message{}, nil, err
	}
	return stored, parsed, nil
}

// buildRouting materializes the routing metadata stored on a message.
func buildRouting(t *team.Team, parsed *markers.Parsed, parentID string, intent markers.Intent) *convo.Routing {
	r := &convo.Routing{
		RawNextMarkers:   parsed.RawNextMarkers,
		ParsedAddressees: parsed.ParsedAddressees,
		ParentMessageID:  parentID,
		Intent:           intent,
		DropTargets:      parsed.DropTargets,
	}
	if parsed.DropAll {
		r.DropTargets = []string{"ALL"}
	}
	res := t.Resolve(parsed.Addressees)
	for _, m := range res.Resolved {
		r.ResolvedAddressees = append(r.ResolvedAddressees, m.Name)
	}
	if r.RawNextMarkers == nil && r.ParentMessageID == "" && r.Intent == "" &&
		r.DropTargets == nil && r.ResolvedAddressees == nil {
		return nil
	}
	return r
}

// drive is the conversation loop: route the latest message, then drain the
// queue one turn at a time until the session pauses, completes, or stops.
func (c *Coordinator) drive(latest *convo.Message, parsed *markers.Parsed) {
	c.mu.Lock()
	c.rounds = 0
	c.mu.Unlock()

	for {
		if c.isStopped() {
			return
		}

		if latest != nil {
			paused := c.routeFrom(*latest, parsed)
			latest, parsed = nil, nil
			if paused || c.isStopped() {
				return
			}
		}

		item, ok := c.queue.SelectNext()
		if !ok {
			c.noMoreWork()
			return
		}

		member := c.team.MemberByID(item.TargetMemberID)
		if member == nil {
			// Invalid member in routing: drop the item silently.
			slog.Warn("routing item targets unknown member, dropping", "member", item.TargetMemberID)
			c.queue.CompleteItem(item.ID)
			continue
		}

		if member.Type == team.MemberHuman {
			c.queue.CompleteItem(item.ID)
			c.setStatus(StatusPaused, member.ID, "waiting for "+member.Name)
			return
		}

		msg, msgParsed, reason := c.sendToAgent(member, item)
		c.queue.CompleteItem(item.ID)
		if c.isStopped() {
			return
		}

		if msg != nil {
			c.queue.MarkCompleted(msg.ID)
			if reason == protocol.FinishDone {
				latest, parsed = msg, msgParsed
			}
			// Cancelled/timeout turns record their partial text but never
			// propagate routes from it.
		}

		c.mu.Lock()
		c.rounds++
		rounds := c.rounds
		c.mu.Unlock()
		if c.cfg.MaxRounds > 0 && rounds >= c.cfg.MaxRounds {
			slog.Warn("max rounds reached, pausing", "rounds", rounds)
			c.pauseAtFirstHuman("max rounds reached")
			return
		}
	}
}

// routeFrom applies DROP directives, resolves addressees, and enqueues one
// routing item per resolved target. Returns true when the classification
// paused the session (total resolve failure).
func (c *Coordinator) routeFrom(msg convo.Message, parsed *markers.Parsed) bool {
	if parsed == nil {
		parsed = markers.Parse(msg.Content)
	}

	// DROP takes effect before enqueuing anything from the same message.
	if parsed.DropAll {
		n := c.queue.DropAll()
		slog.Info("drop all directive", "dropped", n, "message", msg.ID)
	} else if len(parsed.DropTargets) > 0 {
		var ids []string
		for _, name := range parsed.DropTargets {
			if res := c.team.Resolve([]string{name}); len(res.Resolved) > 0 {
				ids = append(ids, res.Resolved[0].ID)
			}
		}
		if len(ids) > 0 {
			n := c.queue.DropMembers(ids)
			slog.Info("drop directive", "targets", parsed.DropTargets, "dropped", n, "message", msg.ID)
		}
	}

	if len(parsed.ParsedAddressees) == 0 {
		return false
	}

	var targets []routing.Target
	var unresolved []string
	for _, pa := range parsed.ParsedAddressees {
		res := c.team.Resolve([]string{pa.Name})
		if len(res.Resolved) == 0 {
			unresolved = append(unresolved, pa.Name)
			continue
		}
		targets = append(targets, routing.Target{MemberID: res.Resolved[0].ID, Intent: pa.Intent})
	}

	if len(targets) == 0 {
		// Total failure: every addressee was unresolvable.
		c.broadcast(protocol.EventResolveFailed, unresolved)
		if c.cbs.OnUnresolvedAddressees != nil {
			c.safeCall("onUnresolvedAddressees", func() { c.cbs.OnUnresolvedAddressees(unresolved) })
		}
		if c.isStopped() {
			return true
		}
		if msg.Speaker.Type == team.MemberHuman {
			c.setStatus(StatusPaused, msg.Speaker.ID, "unresolved addressees")
		} else {
			c.pauseAtFirstHuman("unresolved addressees")
		}
		return true
	}

	if len(unresolved) > 0 {
		c.broadcast(protocol.EventResolvePartial, unresolved)
		if c.cbs.OnPartialResolveFailure != nil {
			c.safeCall("onPartialResolveFailure", func() { c.cbs.OnPartialResolveFailure(unresolved) })
		}
	}

	c.queue.Enqueue(routing.EnqueueRequest{
		ParentMessageID:  msg.ID,
		TriggerMessageID: msg.ID,
		Targets:          targets,
		Unresolved:       unresolved,
	})
	return false
}

// noMoreWork decides between pausing at the first human and completing.
func (c *Coordinator) noMoreWork() {
	if human := c.team.FirstHuman(); human != nil {
		c.setStatus(StatusPaused, human.ID, "queue empty")
		return
	}
	c.setStatus(StatusCompleted, "", "queue empty, no humans")
}

func (c *Coordinator) pauseAtFirstHuman(reason string) {
	if human := c.team.FirstHuman(); human != nil {
		c.setStatus(StatusPaused, human.ID, reason)
		return
	}
	c.setStatus(StatusCompleted, "", reason)
}
