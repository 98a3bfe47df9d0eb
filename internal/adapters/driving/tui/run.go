package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// GenerateFunc runs one generation, reporting progress to observer.
type GenerateFunc func(ctx context.Context, observer func(domain.Event)) (*driving.GenerateResult, error)

// Run shows the progress view while generate runs and returns its result.
// Cancelling from the view cancels the context passed to generate.
func Run(
	ctx context.Context, repo string, stages []domain.Stage, generate GenerateFunc, opts ...tea.ProgramOption,
) (*driving.GenerateResult, error) {
	if generate == nil {
		return nil, ErrMissingGenerator
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(NewProgress(repo, stages, cancel), opts...)

	var (
		result *driving.GenerateResult
		genErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		result, genErr = generate(ctx, func(ev domain.Event) {
			program.Send(messages.EventReceived{Event: ev})
		})
		program.Send(messages.RunFinished{Result: result, Err: genErr})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		if genErr != nil {
			return nil, genErr
		}
		return result, fmt.Errorf("progress view: %w", err)
	}
	<-done
	return result, genErr
}
