// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the keybindings of the progress view.
type KeyMap struct {
	// Cancel stops the running generation.
	Cancel key.Binding

	// Details toggles the event log.
	Details key.Binding

	// Quit closes the view once the run has finished.
	Quit key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("ctrl+c", "cancel"),
		),
		Details: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "details"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "enter", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// RunningHelp returns the bindings shown while a run is in progress.
func (k *KeyMap) RunningHelp() []key.Binding {
	return []key.Binding{k.Details, k.Cancel}
}

// FinishedHelp returns the bindings shown after the run ends.
func (k *KeyMap) FinishedHelp() []key.Binding {
	return []key.Binding{k.Details, k.Quit}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
