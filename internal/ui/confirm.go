package ui

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// Prompter asks yes/no questions on the terminal. When gg is not attached
// to a terminal every question is answered no.
type Prompter struct {
	interactive func() bool
	ask         func(message string) (bool, error)
}

// NewPrompter returns a Prompter backed by survey
func NewPrompter() *Prompter {
	return &Prompter{
		interactive: IsInteractive,
		ask:         askSurvey,
	}
}

// Confirm asks message and reports the answer
func (p *Prompter) Confirm(message string) (bool, error) {
	if !p.interactive() {
		return false, nil
	}
	return p.ask(message)
}

func askSurvey(message string) (bool, error) {
	var answer bool
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &answer); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	return answer, nil
}
