// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// EventReceived carries a pipeline progress event into the model.
type EventReceived struct {
	Event domain.Event
}

// RunFinished is sent once Generate returns.
type RunFinished struct {
	Result *driving.GenerateResult
	Err    error
}

// Succeeded reports whether the run produced a document.
func (m RunFinished) Succeeded() bool {
	return m.Err == nil && m.Result != nil
}
