package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// errNoInput is returned when stdin closes before a required answer.
var errNoInput = errors.New("no input")

// prompter asks for values that were not given as flags.
type prompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{scanner: bufio.NewScanner(in), out: out}
}

// ask prints label and reads one trimmed line. An empty answer yields def.
func (p *prompter) ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return "", errNoInput
	}
	v := strings.TrimSpace(p.scanner.Text())
	if v == "" {
		return def, nil
	}
	return v, nil
}

// fill prompts for *dst when it is empty. Blank answers are rejected.
func (p *prompter) fill(dst *string, label string) error {
	if *dst != "" {
		return nil
	}
	v, err := p.ask(label, "")
	if err != nil {
		return err
	}
	if v == "" {
		return fmt.Errorf("%s is required", strings.ToLower(label))
	}
	*dst = v
	return nil
}
