package cli

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	getErr      error
	validateErr error
	llmErr      error

	setProvider domain.AIProvider
	setModel    string
	setAPIKey   string
	setVariant  domain.SchemaVariant
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.setProvider = provider
	m.setModel = model
	m.setAPIKey = apiKey
	return nil
}

func (m *mockSettingsService) SetSchemaVariant(variant domain.SchemaVariant) error {
	m.setVariant = variant
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.llmErr }

func (m *mockSettingsService) ApplyModel(settings *domain.AppSettings, arg string) error {
	choice, err := domain.ResolveModel(arg)
	if err != nil {
		return err
	}
	settings.LLM.Provider = choice.Provider
	settings.LLM.Model = choice.Model
	settings.LLM.MiniModel = choice.MiniModel
	return nil
}

// mockGenerator is a mock implementation of driving.AgentsGenerator.
type mockGenerator struct {
	result   *driving.GenerateResult
	err      error
	events   []domain.Event
	requests []driving.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req driving.GenerateRequest) (*driving.GenerateResult, error) {
	m.requests = append(m.requests, req)
	if req.Observer != nil {
		for _, ev := range m.events {
			req.Observer(ev)
		}
	}
	return m.result, m.err
}

// mockRunHistory is a mock implementation of driving.RunHistoryService.
type mockRunHistory struct {
	runs []domain.RunRecord
	err  error
}

func (m *mockRunHistory) Recent(_ context.Context, limit int) ([]domain.RunRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	if limit > 0 && len(m.runs) > limit {
		return m.runs[:limit], nil
	}
	return m.runs, nil
}

func (m *mockRunHistory) Get(_ context.Context, id string) (*domain.RunRecord, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.runs {
		if m.runs[i].ID == id {
			r := m.runs[i]
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

// testServices holds the mocks installed by setupTestServices.
type testServices struct {
	settings  *mockSettingsService
	generator *mockGenerator
	runs      *mockRunHistory
	options   []driving.GeneratorOptions
}

// setupTestServices installs mock services and returns them with a cleanup
// restoring the previous globals.
func setupTestServices() (*testServices, func()) {
	prevSettings, prevRuns, prevFactory := settingsService, runHistoryService, generatorFactory
	prevTerminal := isTerminal

	ts := &testServices{
		settings: newMockSettings(),
		generator: &mockGenerator{result: &driving.GenerateResult{
			OutputPath: "projects/widgets/AGENTS.md",
		}},
		runs: &mockRunHistory{},
	}
	SetServices(Services{
		Settings: ts.settings,
		Runs:     ts.runs,
		Generators: func(opts driving.GeneratorOptions) (driving.AgentsGenerator, func(), error) {
			ts.options = append(ts.options, opts)
			return ts.generator, func() {}, nil
		},
	})
	isTerminal = func() bool { return false }
	genFlags = generateFlags{}

	return ts, func() {
		settingsService, runHistoryService, generatorFactory = prevSettings, prevRuns, prevFactory
		isTerminal = prevTerminal
		genFlags = generateFlags{}
	}
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, stdin io.Reader, args ...string) (string, string, error) {
	t.Helper()

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}
