package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"advising-chat/internal/constant"
	"advising-chat/internal/entity"
	"advising-chat/internal/session"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// Display renders the session view. Bot replies are markdown and go through glamour.
type Display struct {
	out      io.Writer
	width    int
	renderer *glamour.TermRenderer

	user *color.Color
	bot  *color.Color
	dim  *color.Color
	info *color.Color
	warn *color.Color
	err  *color.Color
}

func NewDisplay(out io.Writer) *Display {
	width := terminalWidth()
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Display{
		out:      out,
		width:    width,
		renderer: renderer,
		user:     color.New(color.FgGreen, color.Bold),
		bot:      color.New(color.FgCyan, color.Bold),
		dim:      color.New(color.FgHiBlack),
		info:     color.New(color.FgCyan),
		warn:     color.New(color.FgYellow),
		err:      color.New(color.FgRed),
	}
}

// NewPlainDisplay writes without colours or markdown rendering.
func NewPlainDisplay(out io.Writer) *Display {
	d := NewDisplay(out)
	d.renderer = nil
	for _, c := range []*color.Color{d.user, d.bot, d.dim, d.info, d.warn, d.err} {
		c.DisableColor()
	}
	return d
}

func terminalWidth() int {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return 80
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 20 {
		return 80
	}
	return width
}

func (d *Display) PrintWelcome(userId string) {
	d.bot.Fprintln(d.out, "Academic Advising Chat")
	d.dim.Fprintf(d.out, "Signed in as %s\n", userId)
	d.dim.Fprintln(d.out, "Commands: /new /list /switch <id|#n> /delete <id|#n> /schedule on|off /clear /help /exit")
	fmt.Fprintln(d.out)
}

func (d *Display) PrintHelp() {
	fmt.Fprintln(d.out, "  /new               start a new conversation")
	fmt.Fprintln(d.out, "  /list              list conversations, most recent first")
	fmt.Fprintln(d.out, "  /switch <id|#n>    open a conversation")
	fmt.Fprintln(d.out, "  /delete <id|#n>    delete a conversation")
	fmt.Fprintln(d.out, "  /schedule on|off   ask the advisor to generate a schedule")
	fmt.Fprintln(d.out, "  /clear             clear the local cache")
	fmt.Fprintln(d.out, "  /exit              quit")
}

func (d *Display) PrintPrompt(scheduleMode bool) {
	if scheduleMode {
		d.warn.Fprint(d.out, "[schedule] ")
	}
	d.user.Fprint(d.out, "> ")
}

func (d *Display) PrintTranscript(messages []entity.Message) {
	if len(messages) == 0 {
		d.dim.Fprintln(d.out, "(empty conversation)")
		return
	}
	for _, msg := range messages {
		d.PrintMessage(msg)
	}
}

func (d *Display) PrintMessage(msg entity.Message) {
	stamp := ""
	if t := msg.SentAt(); !t.IsZero() {
		stamp = " · " + t.Local().Format("15:04")
	}

	if msg.Role == constant.MessageRoleUser {
		d.user.Fprint(d.out, "You")
		d.dim.Fprintln(d.out, stamp)
		fmt.Fprintln(d.out, msg.Content)
		fmt.Fprintln(d.out)
		return
	}

	d.bot.Fprint(d.out, "Advisor")
	d.dim.Fprintln(d.out, stamp)
	if d.renderer != nil {
		if rendered, err := d.renderer.Render(msg.Content); err == nil {
			fmt.Fprint(d.out, rendered)
			return
		}
	}
	fmt.Fprintln(d.out, msg.Content)
	fmt.Fprintln(d.out)
}

func (d *Display) PrintConversations(index entity.Index, activeId string) {
	if len(index) == 0 {
		d.dim.Fprintln(d.out, "No conversations yet.")
		return
	}
	for i, conv := range index {
		marker := " "
		if conv.ConversationId == activeId {
			marker = "*"
		}
		title := conv.Title()
		if title == "" {
			title = constant.UntitledConversation
		}
		when := ""
		if t := conv.LastActivity(); !t.IsZero() {
			when = t.Local().Format(time.DateTime)
		}
		fmt.Fprintf(d.out, "%s #%-3d %s  ", marker, i+1, truncate(title, d.width-40))
		d.dim.Fprintf(d.out, "%s  %s\n", when, conv.ConversationId)
	}
}

// PrintStatus shows the status lines the session recorded for its last operation.
func (d *Display) PrintStatus(v session.View) {
	if v.ChatError != "" {
		d.err.Fprintln(d.out, v.ChatError)
	}
	if v.Error != "" {
		d.err.Fprintln(d.out, v.Error)
	}
	if v.CacheDegraded {
		d.warn.Fprintln(d.out, "Local cache unavailable; history is loaded from the server.")
	}
}

func (d *Display) PrintInfo(msg string) {
	d.info.Fprintln(d.out, msg)
}

func (d *Display) PrintWarning(msg string) {
	d.warn.Fprintln(d.out, msg)
}

func (d *Display) PrintError(err error) {
	d.err.Fprintf(d.out, "Error: %v\n", err)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if max < 10 {
		max = 10
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
