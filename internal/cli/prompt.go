package cli

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/term"

	"github.com/semmy-space/monthend/internal/output"
)

const minPasswordLen = 8

// Prompter reads answers and passwords. On a terminal passwords are read
// without echo; otherwise one line per answer is read from the input.
type Prompter struct {
	in      *bufio.Reader
	fd      int
	tty     bool
	errOut  io.Writer
	noInput bool
}

func newPrompter(in io.Reader, errOut io.Writer, noInput bool) *Prompter {
	p := &Prompter{in: bufio.NewReader(in), errOut: errOut, noInput: noInput}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.tty = true
	}
	return p
}

var errNoInput = output.NewCLIError(output.ExitUsage, "input required but prompts are disabled").
	WithHint("Drop --no-input or pipe the answers on stdin")

// Line prompts for a single line of visible input.
func (p *Prompter) Line(prompt string) (string, error) {
	if p.noInput {
		return "", errNoInput
	}
	fmt.Fprint(p.errOut, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Password prompts for hidden input. The caller owns the returned slice and
// should wipe it.
func (p *Prompter) Password(prompt string) ([]byte, error) {
	if p.noInput {
		return nil, errNoInput
	}
	fmt.Fprint(p.errOut, prompt)
	if p.tty {
		pw, err := term.ReadPassword(p.fd)
		fmt.Fprintln(p.errOut)
		return pw, err
	}

	line, err := p.in.ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		memguard.WipeBytes(line)
		return nil, err
	}
	pw := bytes.TrimRight(line, "\r\n")
	out := append([]byte(nil), pw...)
	memguard.WipeBytes(line)
	return out, nil
}

// NewPassword asks for a password twice and enforces the minimum length.
func (p *Prompter) NewPassword(prompt string) ([]byte, error) {
	pw, err := p.Password(prompt)
	if err != nil {
		return nil, err
	}
	if len(pw) < minPasswordLen {
		memguard.WipeBytes(pw)
		return nil, output.Errorf(output.ExitUsage, "password must be at least %d characters", minPasswordLen)
	}

	confirm, err := p.Password("Confirm password: ")
	if err != nil {
		memguard.WipeBytes(pw)
		return nil, err
	}
	defer memguard.WipeBytes(confirm)
	if !bytes.Equal(pw, confirm) {
		memguard.WipeBytes(pw)
		return nil, output.NewCLIError(output.ExitUsage, "passwords do not match")
	}
	return pw, nil
}

// Confirm asks a yes/no question. force answers yes without asking.
func (p *Prompter) Confirm(question string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	answer, err := p.Line(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
