package remediation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompter is the input/output binding of a Flow. The flow never reads a
// terminal directly, so a CLI, a scripted harness or an API can drive it.
type Prompter interface {
	// Ask shows question and returns the operator's answer without the
	// trailing newline. It returns io.EOF when no more input will come.
	Ask(ctx context.Context, question string) (string, error)

	// Say shows an informational line.
	Say(msg string)
}

// IOPrompter reads answers line by line from r and writes prompts to w.
type IOPrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewIOPrompter returns a Prompter over r and w.
func NewIOPrompter(r io.Reader, w io.Writer) *IOPrompter {
	return &IOPrompter{in: bufio.NewScanner(r), out: w}
}

func (p *IOPrompter) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(p.out, "%s ", question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		fmt.Fprintln(p.out)
		return "", io.EOF
	}
	return strings.TrimRight(p.in.Text(), "\r"), nil
}

func (p *IOPrompter) Say(msg string) {
	fmt.Fprintln(p.out, msg)
}

// ScriptedPrompter answers from a fixed list and records every exchange.
type ScriptedPrompter struct {
	Answers []string
	Asked   []string
	Said    []string
}

// NewScriptedPrompter returns a prompter that replays answers in order.
func NewScriptedPrompter(answers ...string) *ScriptedPrompter {
	return &ScriptedPrompter{Answers: answers}
}

func (p *ScriptedPrompter) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.Asked = append(p.Asked, question)
	if len(p.Answers) == 0 {
		return "", io.EOF
	}
	a := p.Answers[0]
	p.Answers = p.Answers[1:]
	return a, nil
}

func (p *ScriptedPrompter) Say(msg string) {
	p.Said = append(p.Said, msg)
}
