package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"example.com/activitytimer/internal/merge"
)

// linePrompter asks the merge questions on a terminal. Preset answers skip the question.
type linePrompter struct {
	in  *bufio.Reader
	out io.Writer

	assumeYes       bool
	mergeCollisions *bool
}

func newLinePrompter(in io.Reader, out io.Writer) *linePrompter {
	return &linePrompter{in: bufio.NewReader(in), out: out}
}

func (p *linePrompter) ConfirmMerge(ctx context.Context, prompt merge.Prompt) (bool, error) {
	if p.assumeYes {
		return true, nil
	}
	return p.ask(ctx, prompt.Message)
}

func (p *linePrompter) ConfirmCollisionMerge(ctx context.Context, prompt merge.Prompt) (bool, error) {
	if p.mergeCollisions != nil {
		return *p.mergeCollisions, nil
	}
	fmt.Fprintf(p.out, "Activities on both sides: %s\n", strings.Join(prompt.Collisions, ", "))
	return p.ask(ctx, prompt.Message)
}

// ask reads one answer. Anything but y or yes is a no, and so is end of input.
func (p *linePrompter) ask(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
