package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// maxLogLines bounds the event log shown with details enabled.
const maxLogLines = 8

var stageLabels = map[domain.Stage]string{
	domain.StageMaterialize: "Load source tree",
	domain.StageAnalyze:     "Explore codebase",
	domain.StageLessons:     "Learn from history",
	domain.StageSynthesize:  "Synthesize conventions",
	domain.StageExtract:     "Extract sections",
	domain.StageRender:      "Render AGENTS.md",
	domain.StagePersist:     "Write AGENTS.md",
}

// Stages returns the stages a run visits, in order.
func Stages(withLessons bool) []domain.Stage {
	stages := []domain.Stage{domain.StageMaterialize, domain.StageAnalyze}
	if withLessons {
		stages = append(stages, domain.StageLessons)
	}
	return append(stages,
		domain.StageSynthesize, domain.StageExtract, domain.StageRender, domain.StagePersist)
}

// Progress is the bubbletea model of a running generation.
type Progress struct {
	styles  *styles.Styles
	keymap  *keymap.KeyMap
	spinner spinner.Model
	bar     *status.Bar

	repo     string
	stages   []domain.Stage
	current  int
	notes    map[domain.Stage]string
	log      []string
	details  bool
	finished bool
	failed   bool
	result   *driving.GenerateResult
	err      error

	cancel  context.CancelFunc
	started time.Time
	now     func() time.Time
}

// Ensure Progress implements tea.Model.
var _ tea.Model = (*Progress)(nil)

// NewProgress creates a progress model. cancel is called when the user
// asks to stop the run; it may be nil.
func NewProgress(repo string, stages []domain.Stage, cancel context.CancelFunc) *Progress {
	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Spinner

	return &Progress{
		styles:  s,
		keymap:  km,
		spinner: sp,
		bar:     status.NewBar(s, km),
		repo:    repo,
		stages:  stages,
		current: -1,
		notes:   make(map[domain.Stage]string),
		cancel:  cancel,
		started: time.Now(),
		now:     time.Now,
	}
}

// Init implements tea.Model.
func (p *Progress) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update implements tea.Model.
func (p *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.bar.SetWidth(msg.Width)
		return p, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		p.bar.SetElapsed(p.now().Sub(p.started))
		return p, cmd

	case messages.EventReceived:
		p.handleEvent(msg.Event)
		return p, nil

	case messages.RunFinished:
		p.finished = true
		p.result = msg.Result
		p.err = msg.Err
		p.bar.SetElapsed(p.now().Sub(p.started))
		if msg.Succeeded() {
			p.current = len(p.stages)
			p.bar.SetState(status.StateDone)
		} else {
			p.failed = true
			p.bar.SetState(status.StateFailed)
			if msg.Err != nil {
				p.bar.SetMessage(msg.Err.Error())
			}
		}
		return p, tea.Quit

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return p, nil
}

func (p *Progress) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch {
	case keymap.Matches(key, p.keymap.Details):
		p.details = !p.details
	case p.finished && keymap.Matches(key, p.keymap.Quit):
		return p, tea.Quit
	case !p.finished && keymap.Matches(key, p.keymap.Cancel):
		if p.cancel != nil {
			p.cancel()
		}
		p.bar.SetState(status.StateCancelling)
	}
	return p, nil
}

func (p *Progress) handleEvent(ev domain.Event) {
	for i, s := range p.stages {
		if s == ev.Stage && i > p.current {
			p.current = i
		}
	}
	if ev.Message != "" {
		p.notes[ev.Stage] = ev.Message
		p.log = append(p.log, fmt.Sprintf("[%s] %s", ev.Stage, ev.Message))
		if len(p.log) > maxLogLines {
			p.log = p.log[len(p.log)-maxLogLines:]
		}
	}
	if ev.State == domain.RunFailed {
		p.failed = true
	}
}

// View implements tea.Model.
func (p *Progress) View() string {
	var b strings.Builder

	b.WriteString(p.styles.Title.Render("Generating AGENTS.md for " + p.repo))
	b.WriteString("\n\n")

	for i, stage := range p.stages {
		label := stageLabels[stage]
		if label == "" {
			label = string(stage)
		}
		note := p.notes[stage]

		var line string
		switch {
		case i < p.current:
			line = p.styles.StageDone.Render("✓ " + label)
		case i == p.current && p.failed:
			line = p.styles.Error.Render("✗ " + label)
		case i == p.current:
			line = p.spinner.View() + " " + p.styles.StageActive.Render(label)
		default:
			line = p.styles.StagePending.Render("· " + label)
			note = ""
		}
		b.WriteString("  " + line)
		if note != "" {
			b.WriteString("  " + p.styles.Muted.Render(note))
		}
		b.WriteString("\n")
	}

	if p.details && len(p.log) > 0 {
		b.WriteString("\n")
		b.WriteString(p.styles.Border.Render(strings.Join(p.log, "\n")))
		b.WriteString("\n")
	}

	if p.result != nil {
		for _, d := range p.result.Run.Degradations {
			b.WriteString("\n  " + p.styles.Warning.Render(fmt.Sprintf("! %s: %s", d.Stage, d.Message)))
		}
		if p.result.OutputPath != "" {
			b.WriteString("\n  " + p.styles.Success.Render("Saved to "+p.result.OutputPath))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(p.bar.View())
	b.WriteString("\n")
	return b.String()
}

// Current returns the index of the active stage, -1 before the first event.
func (p *Progress) Current() int {
	return p.current
}

// Finished reports whether the run has ended.
func (p *Progress) Finished() bool {
	return p.finished
}
