// Package git shells out to the git binary to clone repositories and read
// their revert history.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// Revert history limits.
const (
	DefaultRevertLimit = 20
	MaxHistoryChars    = 100000
	TruncationNotice   = "\n... [TRUNCATED DUE TO LENGTH]"
)

// ErrGitNotFound is returned when the git binary is not on PATH.
var ErrGitNotFound = errors.New("git is not installed or not found in PATH")

// Ensure interfaces are implemented.
var (
	_ driven.RepositoryFetcher   = (*Client)(nil)
	_ driven.RevertHistorySource = (*Client)(nil)
)

// Client runs git commands.
type Client struct {
	bin         string
	revertLimit int
	tempDir     string
}

// Option configures a Client.
type Option func(*Client)

// WithBinary overrides the git executable.
func WithBinary(bin string) Option {
	return func(c *Client) { c.bin = bin }
}

// WithRevertLimit sets how many reverting commits are read.
func WithRevertLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.revertLimit = n
		}
	}
}

// WithTempDir sets the parent directory of clones. Empty means os.TempDir.
func WithTempDir(dir string) Option {
	return func(c *Client) { c.tempDir = dir }
}

// NewClient creates a git client.
func NewClient(opts ...Option) *Client {
	c := &Client{bin: "git", revertLimit: DefaultRevertLimit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch shallow-clones target.URL into a new temporary directory.
// The cleanup removes the directory and is safe to call more than once.
func (c *Client) Fetch(ctx context.Context, target domain.RepoTarget) (string, func(), error) {
	if target.URL == "" {
		return "", func() {}, fmt.Errorf("%w: target %q has no URL", domain.ErrInvalidInput, target.Name)
	}

	dir, err := os.MkdirTemp(c.tempDir, "agentsmd-"+domain.Slug(target.Name)+"-")
	if err != nil {
		return "", func() {}, fmt.Errorf("create clone directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("remove clone %s: %v", dir, err)
		}
	}

	logger.Info("Cloning %s into %s", target.URL, dir)
	if _, err := c.run(ctx, "", "clone", "--depth", "1", target.URL, dir); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("clone %s: %w", target.URL, err)
	}
	return dir, cleanup, nil
}

// RevertHistory returns the patches of recent commits mentioning "revert",
// truncated to MaxHistoryChars. Git failures are logged and yield "".
func (c *Client) RevertHistory(ctx context.Context, dir string) (string, error) {
	logger.Info("Analyzing git history for reverted commits (limit: %d)", c.revertLimit)

	out, err := c.run(ctx, dir, "log", "-n", strconv.Itoa(c.revertLimit), "-i", "--grep=revert", "--patch")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("Failed to extract git history: %v", err)
		return "", nil
	}

	if strings.TrimSpace(out) == "" {
		logger.Info("No reverted commits found in recent history")
		return "", nil
	}
	return Truncate(out, MaxHistoryChars), nil
}

// Truncate cuts s to limit characters and appends TruncationNotice.
func Truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	logger.Warn("Extracted git history is very large (%d chars); truncating to %d", len(r), limit)
	return string(r[:limit]) + TruncationNotice
}

func (c *Client) run(ctx context.Context, dir string, args ...string) (string, error) {
	if _, err := exec.LookPath(c.bin); err != nil {
		return "", ErrGitNotFound
	}

	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = dir
	// Never prompt for credentials; a private URL fails instead of hanging.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.String(), nil
}
