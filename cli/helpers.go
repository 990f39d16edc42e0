package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompt reads answers and passwords from the user. Passwords are read
// without echo when the input is a terminal.
type Prompt struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	p := &Prompt{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

func (p *Prompt) Println(a ...interface{}) {
	fmt.Fprintln(p.out, a...)
}

func (p *Prompt) Printf(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format, a...)
}

// Line prints prompt and returns the next input line without its line
// ending. io.EOF is returned once input is exhausted.
func (p *Prompt) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password reads a secret. The caller owns the returned slice and should
// wipe it; vault.Open does so.
func (p *Prompt) Password(prompt string) ([]byte, error) {
	if p.fd < 0 {
		line, err := p.Line(prompt)
		if err != nil {
			return nil, err
		}
		return []byte(line), nil
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	return pw, err
}

// Confirm asks a yes/no question; only "y" and "yes" count as yes.
func (p *Prompt) Confirm(prompt string) (bool, error) {
	answer, err := p.Line(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
