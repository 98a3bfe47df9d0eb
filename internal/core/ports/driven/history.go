package driven

import "context"

// RevertHistorySource reads the history of reverted changes of a local checkout.
type RevertHistorySource interface {
	// RevertHistory returns commit messages and diffs of recent reverts.
	// An empty string means nothing was found.
	RevertHistory(ctx context.Context, dir string) (string, error)
}

// PullRequestSource fetches a pull request's title, body and diff.
type PullRequestSource interface {
	PullRequestReport(ctx context.Context, owner, repo string, number int) (string, error)
}
