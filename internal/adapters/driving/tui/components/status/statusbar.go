// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/styles"
)

// State represents the run state shown in the bar.
type State string

const (
	StateRunning    State = "running"
	StateCancelling State = "cancelling"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Bar displays the run state, elapsed time and keybinding hints.
type Bar struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	state   State
	message string
	elapsed time.Duration
	width   int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateRunning,
		width:  80,
	}
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	padding := s.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	elapsed := s.elapsed.Round(time.Second).String()
	switch s.state {
	case StateCancelling:
		return s.styles.Warning.Render("Cancelling... " + elapsed)
	case StateFailed:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Failed after %s: %s", elapsed, s.message))
		}
		return s.styles.Error.Render("Failed after " + elapsed)
	case StateDone:
		return s.styles.Success.Render("Done in " + elapsed)
	}
	return s.styles.Muted.Render("Running " + elapsed)
}

func (s *Bar) renderRight() string {
	bindings := s.keymap.RunningHelp()
	if s.state == StateDone || s.state == StateFailed {
		bindings = s.keymap.FinishedHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if hint := helpHint(b); hint != "" {
			hints = append(hints, hint)
		}
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// helpHint formats a binding as "key: desc". Disabled bindings render empty.
func helpHint(b key.Binding) string {
	if !b.Enabled() {
		return ""
	}
	h := b.Help()
	return fmt.Sprintf("%s: %s", h.Key, h.Desc)
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets the failure message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetElapsed sets the displayed run time.
func (s *Bar) SetElapsed(d time.Duration) {
	s.elapsed = d
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}
