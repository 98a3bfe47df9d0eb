package mcp

import (
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// Ports aggregates the driving ports required by the MCP server.
type Ports struct {
	// Settings supplies the base configuration of every run.
	Settings driving.SettingsService

	// Generators builds a pipeline per tool call, since the schema
	// variant is fixed per pipeline.
	Generators driving.GeneratorFactory

	// Runs exposes run history. Optional.
	Runs driving.RunHistoryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Settings == nil {
		return ErrMissingSettings
	}
	if p.Generators == nil {
		return ErrMissingGenerator
	}
	return nil
}
