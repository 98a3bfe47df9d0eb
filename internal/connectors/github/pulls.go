package github

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// MaxDiffChars caps the diff included in a pull request report.
const MaxDiffChars = 100000

// Ensure PullRequests implements the interface.
var _ driven.PullRequestSource = (*PullRequests)(nil)

// PullRequests reports on pull requests, typically failed ones, for the
// lessons-learned stage.
type PullRequests struct {
	client *Client
}

// NewPullRequests creates a pull request source.
func NewPullRequests(client *Client) *PullRequests {
	return &PullRequests{client: client}
}

// PullRequestReport returns the title, body and diff of a pull request.
func (p *PullRequests) PullRequestReport(ctx context.Context, owner, repo string, number int) (string, error) {
	if owner == "" || repo == "" || number <= 0 {
		return "", fmt.Errorf("%w: pull request %s/%s#%d", domain.ErrInvalidInput, owner, repo, number)
	}
	logger.Info("Fetching details for failed PR #%d from %s/%s", number, owner, repo)

	pr, err := p.client.GetPullRequest(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	diff, err := p.client.GetPullRequestDiff(ctx, owner, repo, number)
	if err != nil {
		return "", err
	}
	if len(diff) > MaxDiffChars {
		diff = strings.ToValidUTF8(diff[:MaxDiffChars], "") + "\n... [DIFF TRUNCATED]"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "PR Title: %s\n", pr.GetTitle())
	fmt.Fprintf(&b, "PR State: %s\n", pr.GetState())
	if login := pr.GetUser().GetLogin(); login != "" {
		fmt.Fprintf(&b, "PR Author: %s\n", login)
	}
	body := strings.TrimSpace(pr.GetBody())
	if body == "" {
		body = "(no description)"
	}
	fmt.Fprintf(&b, "PR Body:\n%s\n\n", body)
	fmt.Fprintf(&b, "PR Diff:\n%s", diff)
	return b.String(), nil
}
