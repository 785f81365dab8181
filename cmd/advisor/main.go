package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"advising-chat/internal/bootstrap"
	"advising-chat/internal/cache"
	"advising-chat/internal/config"
	"advising-chat/internal/events"
	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/logger"
	"advising-chat/internal/remote"
	"advising-chat/internal/session"
	"advising-chat/internal/terminal"
)

func main() {
	cfg := config.Load()

	token := flag.String("token", cfg.Auth.IdToken, "identity provider ID token (default: $ADVISOR_ID_TOKEN)")
	schedule := flag.Bool("schedule", false, "start with schedule generation enabled")
	plain := flag.Bool("plain", false, "disable colours and markdown rendering")
	flag.StringVar(&cfg.Cache.Backend, "cache", cfg.Cache.Backend, "cache backend: file, redis or memory")
	flag.StringVar(&cfg.Cache.Dir, "cache-dir", cfg.Cache.Dir, "directory of the file cache")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	display := terminal.NewDisplay(os.Stdout)
	if *plain {
		display = terminal.NewPlainDisplay(os.Stdout)
	}
	input := terminal.NewInput(os.Stdin)

	// Logs go to the file only; the terminal belongs to the transcript.
	log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *token == "" {
		secret, err := input.ReadSecret(os.Stdout, "ID token: ")
		if err != nil || secret == "" {
			display.PrintError(errors.New("an ID token is required (flag -token or ADVISOR_ID_TOKEN)"))
			os.Exit(1)
		}
		*token = secret
	}
	principal, err := identity.NewTokenSourcePrincipal(identity.StaticTokenSource(*token))
	if err != nil {
		display.PrintError(err)
		os.Exit(1)
	}

	store, _, err := bootstrap.NewStore(ctx, cfg.Cache, log)
	if err != nil {
		display.PrintError(err)
		os.Exit(1)
	}
	policy := cache.DefaultPolicy()
	policy.TTL = cfg.Cache.TTL
	accessor := cache.NewAccessor(store, "", policy, log)

	client := remote.NewClient(remote.Endpoints{ChatURL: cfg.Remote.ChatAPI, CrudURL: cfg.Remote.CrudAPI}, cfg.Remote.Timeout)
	publisher := events.NewPublisher(ctx, cfg.App.NatsURL, log)
	defer publisher.Close()

	opts := session.DefaultOptions()
	opts.MaxQueryLength = cfg.Session.MaxQueryLength
	opts.RemoteTimeout = cfg.Remote.Timeout
	manager := session.NewManager(principal, accessor, client, publisher, log, opts)
	defer manager.Close()
	manager.SetScheduleMode(*schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		display.PrintInfo("\nShutting down...")
		manager.Close()
		cancel()
		os.Exit(0)
	}()

	display.PrintWelcome(principal.Identity())
	display.PrintInfo("Loading conversations...")
	if err := manager.Bootstrap(ctx); err != nil && manager.State() == session.StateBootstrapping {
		display.PrintError(err)
		os.Exit(1)
	}
	view := manager.View()
	display.PrintTranscript(view.Messages)
	display.PrintStatus(view)

	for {
		display.PrintPrompt(manager.View().ScheduleMode)
		line, err := input.ReadLine()
		if err != nil {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := terminal.ParseCommand(line)
		if err != nil {
			display.PrintError(err)
			continue
		}
		if cmd.Kind == terminal.CommandExit {
			break
		}
		run(ctx, manager, display, cmd)
	}
}

func run(ctx context.Context, m *session.Manager, display *terminal.Display, cmd terminal.Command) {
	switch cmd.Kind {
	case terminal.CommandSend:
		before := len(m.View().Messages)
		err := m.Send(ctx, cmd.Arg)
		view := m.View()
		if err != nil && !errors.Is(err, session.ErrEmptyQuery) {
			display.PrintStatus(view)
			report(display, err, view)
			return
		}
		// The user message is already on screen as typed input; print only what followed it.
		if before+1 < len(view.Messages) {
			display.PrintTranscript(view.Messages[before+1:])
		}

	case terminal.CommandNew:
		id, err := m.StartNewChat()
		if err != nil {
			display.PrintError(err)
			return
		}
		display.PrintInfo("Started a new conversation (" + id + ")")

	case terminal.CommandList:
		view := m.View()
		display.PrintConversations(view.Conversations, view.ConversationId)

	case terminal.CommandSwitch:
		id, err := terminal.ResolveConversation(cmd.Arg, m.View().Conversations)
		if err != nil {
			display.PrintError(err)
			return
		}
		err = m.SwitchConversation(ctx, id)
		view := m.View()
		if err != nil {
			display.PrintStatus(view)
			report(display, err, view)
			return
		}
		display.PrintTranscript(view.Messages)

	case terminal.CommandDelete:
		id, err := terminal.ResolveConversation(cmd.Arg, m.View().Conversations)
		if err != nil {
			display.PrintError(err)
			return
		}
		if err := m.Delete(ctx, id); err != nil {
			view := m.View()
			display.PrintStatus(view)
			report(display, err, view)
			return
		}
		display.PrintInfo("Deleted " + id)

	case terminal.CommandSchedule:
		m.SetScheduleMode(cmd.Enabled)
		if cmd.Enabled {
			display.PrintInfo("Schedule generation on")
		} else {
			display.PrintInfo("Schedule generation off")
		}

	case terminal.CommandClear:
		if err := m.ClearCache(); err != nil {
			display.PrintError(err)
			return
		}
		display.PrintInfo("Local cache cleared")

	case terminal.CommandHelp:
		display.PrintHelp()
	}
}

// report prints errors the view does not already describe.
func report(display *terminal.Display, err error, view session.View) {
	if view.ChatError != "" || view.Error != "" {
		return
	}
	display.PrintError(err)
}
