package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nextlevelbuilder/agentchat/internal/prompt"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

// shConfig builds a TypeConfig that runs an inline shell script. The prompt
// is appended as the script's $0 and ignored.
func shConfig(family, script string) TypeConfig {
	return TypeConfig{
		Name:        "test",
		Family:      family,
		Command:     "sh",
		DefaultArgs: []string{"-c", script},
	}
}

func TestRunTurn_ClaudeResult(t *testing.T) {
	script := `printf '%s\n' '{"type":"assistant","message":{"content":[{"type":"text","text":"chunk"}]}}' '{"type":"result","result":"hello from claude"}'`
	r := New("m1", shConfig(prompt.FamilyClaudeCode, script))

	var events []Event
	res, err := r.RunTurn(context.Background(), Request{
		Prompt:  "ignored",
		Timeout: 30 * time.Second,
		OnEvent: func(ev Event) { events = append(events, ev) },
	})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if !res.Success || res.FinishReason != protocol.FinishDone {
		t.Errorf("result = %+v", res)
	}
	if res.AccumulatedText != "hello from claude" {
		t.Errorf("accumulated = %q", res.AccumulatedText)
	}

	var sawStream, sawCompleted bool
	for _, ev := range events {
		if ev.Category == "stream" && ev.Text == "chunk" {
			sawStream = true
		}
		if ev.Type == protocol.AgentEventTurnCompleted {
			sawCompleted = true
		}
	}
	if !sawStream || !sawCompleted {
		t.Errorf("events missing stream/completed: %+v", events)
	}
}

func TestRunTurn_SynthesizesDoneOnCleanExit(t *testing.T) {
	// Plain family, clean exit, no explicit completion event.
	r := New("m1", shConfig(prompt.FamilyPlain, `echo partial output`))

	res, err := r.RunTurn(context.Background(), Request{Prompt: "x", Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.FinishReason != protocol.FinishDone {
		t.Errorf("finishReason = %s, want synthesized done", res.FinishReason)
	}
	if res.AccumulatedText != "partial output" {
		t.Errorf("accumulated = %q", res.AccumulatedText)
	}
}

func TestRunTurn_NonZeroExitIsError(t *testing.T) {
	r := New("m1", shConfig(prompt.FamilyPlain, `exit 3`))

	_, err := r.RunTurn(context.Background(), Request{Prompt: "x", Timeout: 30 * time.Second})
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.ExitCode)
	}
}

func TestRunTurn_SpawnFailure(t *testing.T) {
	r := New("m1", TypeConfig{Family: prompt.FamilyPlain, Command: "/nonexistent/definitely-not-a-binary"})

	_, err := r.RunTurn(context.Background(), Request{Prompt: "x", Timeout: 5 * time.Second})
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("err = %v, want *SpawnError", err)
	}
}

func TestRunTurn_Timeout(t *testing.T) {
	r := New("m1", shConfig(prompt.FamilyPlain, `echo before; sleep 30`))

	start := time.Now()
	res, err := r.RunTurn(context.Background(), Request{Prompt: "x", Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.FinishReason != protocol.FinishTimeout {
		t.Errorf("finishReason = %s, want timeout", res.FinishReason)
	}
	if res.AccumulatedText != "before" {
		t.Errorf("partial text = %q", res.AccumulatedText)
	}
	if time.Since(start) > 10*time.Second {
		t.Error("timeout path took too long (SIGTERM not delivered?)")
	}
}

func TestRunTurn_Cancel(t *testing.T) {
	r := New("m1", shConfig(prompt.FamilyPlain, `sleep 30`))

	done := make(chan struct{})
	var res Result
	var err error
	go func() {
		res, err = r.RunTurn(context.Background(), Request{Prompt: "x", Timeout: 60 * time.Second})
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	r.Cancel()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("RunTurn did not resolve after Cancel")
	}
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if res.FinishReason != protocol.FinishCancelled {
		t.Errorf("finishReason = %s, want cancelled", res.FinishReason)
	}
	if !r.Cancelled() {
		t.Error("Cancelled() should report true")
	}
}
