package tui

import "errors"

// ErrMissingGenerator is returned when no generation function is provided.
var ErrMissingGenerator = errors.New("tui: generate function is required")
