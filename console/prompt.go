package console

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoChoices is returned by Choice when there is nothing to choose from.
var ErrNoChoices = errors.New("no choices")

// Field is one labelled entry of a Form.
type Field struct {
	Label  string
	Masked bool
}

// readLine returns io.EOF once the input is exhausted.
func (c *Console) readLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// Input prompts until a non-empty answer is given.
func (c *Console) Input(prompt string) (string, error) {
	return c.input(prompt, false)
}

func (c *Console) input(prompt string, masked bool) (string, error) {
	for {
		fmt.Fprint(c.out, prompt)
		var (
			answer string
			err    error
		)
		if masked && c.readPassword != nil {
			answer, err = c.readPassword()
		} else {
			answer, err = c.readLine()
		}
		if err != nil {
			return "", err
		}
		if answer != "" {
			return answer, nil
		}
		c.Println(c.paint(StyleError, "Empty input, please try again."))
	}
}

// Int prompts until an integer is given.
func (c *Console) Int(prompt string) (int, error) {
	for {
		answer, err := c.Input(prompt)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil {
			return n, nil
		}
		c.Println(c.paint(StyleError, "Invalid input, please enter a whole number."))
	}
}

// Choice prompts until a number in [1, n] is given.
func (c *Console) Choice(n int) (int, error) {
	if n < 1 {
		return 0, ErrNoChoices
	}
	for {
		choice, err := c.Int("\n-> Your choice: ")
		if err != nil {
			return 0, err
		}
		if choice >= 1 && choice <= n {
			return choice, nil
		}
		c.Println(c.paint(StyleError, fmt.Sprintf("%d is not between 1 and %d, please try again.", choice, n)))
	}
}

// Menu prints numbered options under title and returns the chosen number.
func (c *Console) Menu(title string, options ...string) (int, error) {
	c.Println(c.paint(StyleEmphasis, title))
	for i, opt := range options {
		c.Printf("%d - %s\n", i+1, opt)
	}
	return c.Choice(len(options))
}

// Form asks for each field in order, masking sensitive ones, and returns the answers
// keyed by label. Every answer is non-empty.
func (c *Console) Form(title string, fields []Field) (map[string]string, error) {
	width := 0
	for _, f := range fields {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}

	c.Println(c.paint(StyleEmphasis, title))
	answers := make(map[string]string, len(fields))
	for _, f := range fields {
		answer, err := c.input(fmt.Sprintf("%*s : ", width, f.Label), f.Masked)
		if err != nil {
			return nil, err
		}
		answers[f.Label] = answer
	}
	return answers, nil
}
