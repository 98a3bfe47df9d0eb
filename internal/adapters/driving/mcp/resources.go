package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

const (
	uriScheme = "agentsmd://"

	// recentRunsLimit bounds the runs resource.
	recentRunsLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "runs",
		Name:        "runs",
		Description: "Recent AGENTS.md generation runs, newest first",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "runs/{runId}",
		Name:        "run",
		Description: "Diagnostics of a single generation run",
		MIMEType:    "application/json",
	}, s.handleRunResource)
}

// runInfo is the JSON shape of a run record.
type runInfo struct {
	ID           string               `json:"id"`
	Repository   string               `json:"repository"`
	Variant      string               `json:"variant"`
	State        string               `json:"state"`
	FailedStage  string               `json:"failed_stage,omitempty"`
	Error        string               `json:"error,omitempty"`
	Degradations []domain.Degradation `json:"degradations,omitempty"`
	Iterations   int                  `json:"iterations"`
	CharsShown   int                  `json:"chars_shown"`
	StopReason   string               `json:"stop_reason,omitempty"`
	OutputPath   string               `json:"output_path,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	Duration     string               `json:"duration"`
}

func toRunInfo(r domain.RunRecord) runInfo {
	return runInfo{
		ID:           r.ID,
		Repository:   r.Repository,
		Variant:      r.Variant.String(),
		State:        string(r.State),
		FailedStage:  string(r.FailedStage),
		Error:        r.Error,
		Degradations: r.Degradations,
		Iterations:   r.Iterations,
		CharsShown:   r.CharsShown,
		StopReason:   string(r.StopReason),
		OutputPath:   r.OutputPath,
		StartedAt:    r.StartedAt,
		Duration:     r.Duration().Round(time.Millisecond).String(),
	}
}

// handleRunsResource returns recent runs.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Runs == nil {
		return jsonResult(req.Params.URI, []runInfo{})
	}

	runs, err := s.ports.Runs.Recent(ctx, recentRunsLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	infos := make([]runInfo, len(runs))
	for i := range runs {
		infos[i] = toRunInfo(runs[i])
	}
	return jsonResult(req.Params.URI, infos)
}

// handleRunResource returns one run.
func (s *Server) handleRunResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Runs == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	id := extractRunID(req.Params.URI)
	if id == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	run, err := s.ports.Runs.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting run: %w", err)
	}
	return jsonResult(req.Params.URI, toRunInfo(*run))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractRunID extracts the run ID from a URI like agentsmd://runs/{runId}.
func extractRunID(uri string) string {
	const prefix = uriScheme + "runs/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(uri, prefix), "/")
}
