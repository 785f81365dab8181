package terminal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"advising-chat/internal/entity"
)

type CommandKind int

const (
	CommandSend CommandKind = iota
	CommandNew
	CommandList
	CommandSwitch
	CommandDelete
	CommandSchedule
	CommandClear
	CommandHelp
	CommandExit
)

type Command struct {
	Kind    CommandKind
	Arg     string
	Enabled bool
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingArg     = errors.New("missing argument")
)

// ParseCommand turns one input line into a command. Anything not starting with "/" is a query.
func ParseCommand(line string) (Command, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandSend, Arg: line}, nil
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/new":
		return Command{Kind: CommandNew}, nil
	case "/list", "/history":
		return Command{Kind: CommandList}, nil
	case "/switch", "/open":
		if arg == "" {
			return Command{}, fmt.Errorf("%w: /switch <id|#n>", ErrMissingArg)
		}
		return Command{Kind: CommandSwitch, Arg: arg}, nil
	case "/delete":
		if arg == "" {
			return Command{}, fmt.Errorf("%w: /delete <id|#n>", ErrMissingArg)
		}
		return Command{Kind: CommandDelete, Arg: arg}, nil
	case "/schedule":
		switch strings.ToLower(arg) {
		case "on", "true", "1":
			return Command{Kind: CommandSchedule, Enabled: true}, nil
		case "off", "false", "0":
			return Command{Kind: CommandSchedule, Enabled: false}, nil
		default:
			return Command{}, fmt.Errorf("%w: /schedule on|off", ErrMissingArg)
		}
	case "/clear":
		return Command{Kind: CommandClear}, nil
	case "/help":
		return Command{Kind: CommandHelp}, nil
	case "/exit", "/quit":
		return Command{Kind: CommandExit}, nil
	default:
		return Command{}, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

// ResolveConversation accepts either a conversation id or "#n", the 1-based position in the list.
func ResolveConversation(arg string, index entity.Index) (string, error) {
	if n, ok := strings.CutPrefix(arg, "#"); ok {
		pos, err := strconv.Atoi(n)
		if err != nil || pos < 1 || pos > len(index) {
			return "", fmt.Errorf("no conversation at position %s", arg)
		}
		return index[pos-1].ConversationId, nil
	}
	return arg, nil
}
