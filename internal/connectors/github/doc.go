// Package github reads repositories and pull requests through the GitHub
// REST API.
//
// Two components are exposed:
//
//   - TreeMaterializer: builds a SourceTree from the default branch using
//     the recursive tree and blob endpoints, so no clone is needed.
//   - PullRequests: renders a pull request's title, body and diff for the
//     lessons-learned stage.
//
// # Authentication
//
// A token from GITHUB_TOKEN is sent through an oauth2 static token source.
// Without one, requests are anonymous and limited to 60 per hour, and
// private repositories answer 404.
//
// # Rate limiting
//
// The Client throttles proactively with a token bucket and reactively from
// the X-RateLimit-* response headers, waiting for the quota reset when the
// remaining requests run low.
package github
