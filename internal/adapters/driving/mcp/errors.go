// Package mcp provides an MCP (Model Context Protocol) server adapter for
// agentsmd. It lets AI assistants generate AGENTS.md files for local
// repositories and inspect recent runs.
package mcp

import "errors"

// ErrMissingGenerator is returned when no generator factory is provided.
var ErrMissingGenerator = errors.New("mcp: generator factory is required")

// ErrMissingSettings is returned when the settings service is not provided.
var ErrMissingSettings = errors.New("mcp: settings service is required")
