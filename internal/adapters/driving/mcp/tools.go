package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
)

// GenerateInput is the input schema for the generate_agents_md tool.
type GenerateInput struct {
	Path    string `json:"path" jsonschema:"absolute path of the local repository to document"`
	Variant string `json:"variant,omitempty" jsonschema:"section schema: comprehensive (default) or strict"`
	Merge   bool   `json:"merge,omitempty" jsonschema:"merge into an existing AGENTS.md instead of replacing it"`
	Lessons bool   `json:"lessons,omitempty" jsonschema:"analyse reverted commits for lessons learned"`
}

// GenerateOutput is the output schema for the generate_agents_md tool.
type GenerateOutput struct {
	RunID        string   `json:"run_id"`
	Repository   string   `json:"repository"`
	Variant      string   `json:"variant"`
	OutputPath   string   `json:"output_path"`
	Content      string   `json:"content"`
	Degradations []string `json:"degradations,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "generate_agents_md",
		Description: "Analyse a local repository and write an AGENTS.md describing its " +
			"architecture, conventions and constraints for AI coding assistants",
	}, s.handleGenerate)
}

// handleGenerate handles the generate_agents_md tool invocation.
func (s *Server) handleGenerate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateInput,
) (*mcp.CallToolResult, GenerateOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, GenerateOutput{}, fmt.Errorf("%w: path is required", domain.ErrInvalidInput)
	}
	target, err := domain.LocalTarget(input.Path)
	if err != nil {
		return nil, GenerateOutput{}, err
	}

	settings, err := s.ports.Settings.Get()
	if err != nil {
		return nil, GenerateOutput{}, fmt.Errorf("loading settings: %w", err)
	}
	if input.Variant != "" {
		variant, err := domain.ParseSchemaVariant(input.Variant)
		if err != nil {
			return nil, GenerateOutput{}, err
		}
		settings.Pipeline.Variant = variant
	}

	generator, cleanup, err := s.ports.Generators(driving.GeneratorOptions{Settings: *settings})
	if err != nil {
		return nil, GenerateOutput{}, fmt.Errorf("building generator: %w", err)
	}
	defer cleanup()

	result, err := generator.Generate(ctx, driving.GenerateRequest{
		Target:  target,
		Lessons: input.Lessons,
		Merge:   input.Merge,
	})
	if err != nil {
		return nil, GenerateOutput{}, err
	}

	output := GenerateOutput{
		RunID:      result.Run.ID,
		Repository: target.Name,
		Variant:    settings.Pipeline.Variant.String(),
		OutputPath: result.OutputPath,
		Content:    result.Document.Content,
	}
	for _, d := range result.Run.Degradations {
		output.Degradations = append(output.Degradations, fmt.Sprintf("%s: %s", d.Stage, d.Message))
	}
	return nil, output, nil
}
