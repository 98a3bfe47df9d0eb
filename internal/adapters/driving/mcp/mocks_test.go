package mcp

import (
	"context"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings domain.AppSettings
	err      error
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	if m.err != nil {
		return nil, m.err
	}
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) SetLLMProvider(_ domain.AIProvider, _, _ string) error { return m.err }

func (m *mockSettingsService) SetSchemaVariant(_ domain.SchemaVariant) error { return m.err }

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) ValidateLLMConfig() error { return m.err }

func (m *mockSettingsService) ApplyModel(_ *domain.AppSettings, _ string) error { return m.err }

// mockGenerator is a mock implementation of driving.AgentsGenerator.
type mockGenerator struct {
	result  *driving.GenerateResult
	err     error
	request driving.GenerateRequest
}

func (m *mockGenerator) Generate(_ context.Context, req driving.GenerateRequest) (*driving.GenerateResult, error) {
	m.request = req
	return m.result, m.err
}

// factoryFor returns a factory recording the options it was called with.
func factoryFor(gen *mockGenerator, got *driving.GeneratorOptions, cleaned *bool) driving.GeneratorFactory {
	return func(opts driving.GeneratorOptions) (driving.AgentsGenerator, func(), error) {
		if got != nil {
			*got = opts
		}
		return gen, func() {
			if cleaned != nil {
				*cleaned = true
			}
		}, nil
	}
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
