package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Input reads REPL lines. Secrets are read without echo when stdin is a terminal.
type Input struct {
	reader *bufio.Reader
	in     *os.File
}

func NewInput(in *os.File) *Input {
	return &Input{reader: bufio.NewReader(in), in: in}
}

func (i *Input) ReadLine() (string, error) {
	line, err := i.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (i *Input) ReadSecret(out io.Writer, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	fd := int(i.in.Fd())
	if !term.IsTerminal(fd) {
		line, err := i.ReadLine()
		return strings.TrimSpace(line), err
	}
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}
