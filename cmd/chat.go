package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	runewidth "github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/agentchat/internal/config"
	"github.com/nextlevelbuilder/agentchat/internal/convo"
	"github.com/nextlevelbuilder/agentchat/internal/coordinator"
	"github.com/nextlevelbuilder/agentchat/internal/routing"
	"github.com/nextlevelbuilder/agentchat/internal/store"
	_ "github.com/nextlevelbuilder/agentchat/internal/store/file"
	_ "github.com/nextlevelbuilder/agentchat/internal/store/sqlite"
	"github.com/nextlevelbuilder/agentchat/internal/team"
	"github.com/nextlevelbuilder/agentchat/internal/tracing"
)

// previewWidth bounds one echoed line on the terminal.
const previewWidth = 100

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Run a team conversation from a team config file",
		Run: func(cmd *cobra.Command, args []string) {
			runChat()
		},
	}
}

func runChat() {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	shutdown, err := tracing.Setup(context.Background(), cfg.Tracing, Version)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tracing:", err)
		os.Exit(1)
	}
	defer shutdown(context.Background())

	doc, err := team.LoadDocument(cfg.Session.TeamFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "team config:", err)
		os.Exit(1)
	}

	if w, err := team.Watch(cfg.Session.TeamFile, func(d *team.Document) {
		slog.Info("team config changed on disk; restart chat to apply", "team", d.Team.Name)
	}); err == nil {
		defer w.Close()
	} else {
		slog.Debug("team config watch unavailable", "error", err)
	}

	instruction := ""
	if doc.Team.InstructionFile != "" {
		if data, err := os.ReadFile(config.ExpandHome(doc.Team.InstructionFile)); err == nil {
			instruction = string(data)
		} else {
			slog.Warn("instruction file unreadable", "path", doc.Team.InstructionFile, "error", err)
		}
	}

	coord, err := coordinator.New(doc, coordinator.Config{
		Context: convo.Options{
			Window:          cfg.Context.Window,
			MaxSiblings:     cfg.Context.MaxSiblings,
			SiblingMaxRunes: cfg.Context.SiblingMaxRunes,
			MaxBytes:        cfg.Context.MaxBytes,
		},
		Queue: routing.Config{
			MaxQueueSize:  cfg.Queue.MaxQueueSize,
			MaxBranchSize: cfg.Queue.MaxBranchSize,
			MaxLocalSeq:   cfg.Queue.MaxLocalSeq,
		},
		TurnTimeout:    cfg.TurnTimeout(),
		WorkDir:        cfg.Runner.WorkDir,
		ProxyEnv:       config.ProxyEnv(),
		MaxRounds:      cfg.Session.MaxRounds,
		TurnsPerMinute: cfg.Session.TurnsPerMinute,
		Instruction:    instruction,
	}, coordinator.Callbacks{
		OnMessage: func(m convo.Message) {
			fmt.Printf("%s %s: %s\n", m.ID, m.Speaker.Name, clip(m.Content))
		},
		OnStatusChange: func(sc coordinator.StatusChange) {
			if sc.WaitingForMemberID != "" {
				fmt.Printf("-- %s (waiting for %s)\n", sc.Status, sc.WaitingForMemberID)
			} else {
				fmt.Printf("-- %s %s\n", sc.Status, sc.Reason)
			}
		},
		OnQueueProtection: func(p routing.Protection) {
			fmt.Printf("-- queue protection: %s\n", p.Type)
		},
		OnPartialResolveFailure: func(names []string) {
			fmt.Printf("-- unresolved addressees (continuing): %s\n", strings.Join(names, ", "))
		},
		OnUnresolvedAddressees: func(names []string) {
			fmt.Printf("-- no addressee resolved: %s\n", strings.Join(names, ", "))
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "coordinator:", err)
		os.Exit(1)
	}

	tm := coord.Team()
	human := tm.FirstHuman()
	if human == nil {
		fmt.Fprintln(os.Stderr, "team has no human member to read input for")
		os.Exit(1)
	}

	fmt.Printf("team %s ready — speak as %s (ctrl-d to stop)\n", doc.Team.Name, human.Name)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var err error
		if waiting := coord.WaitingFor(); waiting != "" {
			err = coord.InjectMessage(waiting, line)
		} else {
			err = coord.SendMessage(line, human.ID)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		if coord.Status().Terminal() {
			break
		}
	}
	coord.Stop()

	// Keep the transcript recoverable across sessions.
	if data, err := coord.ExportSnapshot(); err == nil {
		if s, err := store.Open(cfg.Store); err == nil {
			defer s.Close()
			if err := s.Save(context.Background(), "last-session", data); err != nil {
				slog.Warn("failed to save session snapshot", "error", err)
			}
		}
	}
}

// clip shortens a message to one terminal-width-aware preview line.
func clip(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " …"
	}
	return runewidth.Truncate(s, previewWidth, "…")
}
