// Package flags holds the option structs bound to the command line, plus
// their resolution into configured clients. All validation of
// user-supplied input happens here, before any network call.
package flags

import (
	"context"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	gitconfig "github.com/tcnksm/go-gitconfig"

	"github.com/openshift-eng/gh-pulls-summary/pkg/apperrors"
	"github.com/openshift-eng/gh-pulls-summary/pkg/github"
)

// GitHubFlags selects the repository and authentication for a run.
type GitHubFlags struct {
	Owner              string
	Repo               string
	Token              string
	PRNumber           int
	ReviewRequestedFor string
}

func NewGitHubFlags() *GitHubFlags {
	return &GitHubFlags{}
}

func (f *GitHubFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Owner, "owner", f.Owner,
		"Repository owner (e.g. 'microsoft'). Defaults to the owner parsed from the current directory's git remote.")
	fs.StringVar(&f.Repo, "repo", f.Repo,
		"Repository name (e.g. 'vscode'). Defaults to the repo parsed from the current directory's git remote.")
	fs.StringVar(&f.Token, "github-token", f.Token,
		"GitHub personal access token. Can also be set via GITHUB_TOKEN. Raises the rate limit from 60 to 5000 requests/hour.")
	fs.IntVar(&f.PRNumber, "pr-number", f.PRNumber,
		"Query a single pull request number instead of all open PRs.")
	fs.StringVar(&f.ReviewRequestedFor, "review-requested-for", f.ReviewRequestedFor,
		"Only include PRs where a review is requested from this GitHub username.")
}

// Resolve fills owner/repo from the local git remote and the token from
// the environment or git config when the flags were left empty. Owner and
// repo must be known by the time this returns.
func (f *GitHubFlags) Resolve() error {
	if f.Token == "" {
		f.Token = os.Getenv("GITHUB_TOKEN")
	}
	if f.Token == "" {
		if token, err := gitconfig.GithubToken(); err == nil {
			f.Token = token
		}
	}

	if f.Owner == "" || f.Repo == "" {
		if remote, err := gitconfig.OriginURL(); err == nil {
			owner, repo := parseOriginURL(remote)
			if f.Owner == "" {
				f.Owner = owner
			}
			if f.Repo == "" {
				f.Repo = repo
			}
		} else {
			log.WithError(err).Debug("could not read remote.origin.url from git config")
		}
	}

	if f.Owner == "" || f.Repo == "" {
		return apperrors.New(apperrors.KindValidation,
			"repository owner and name must be specified: pass --owner and --repo, or run from a git repository with a GitHub remote")
	}
	return nil
}

// GetClient builds the repository-scoped GitHub client. Resolve must have
// succeeded first.
func (f *GitHubFlags) GetClient(ctx context.Context) *github.Client {
	return github.New(ctx, f.Owner, f.Repo, f.Token)
}

// parseOriginURL extracts owner/repo from an SSH
// (git@github.com:owner/repo.git) or HTTPS
// (https://github.com/owner/repo.git) remote URL.
func parseOriginURL(remote string) (string, string) {
	var path string
	switch {
	case strings.HasPrefix(remote, "git@"):
		_, after, found := strings.Cut(remote, ":")
		if !found {
			return "", ""
		}
		path = after
	case strings.HasPrefix(remote, "https://"):
		parts := strings.SplitN(remote, "/", 6)
		if len(parts) < 5 {
			return "", ""
		}
		path = parts[3] + "/" + parts[4]
	default:
		return "", ""
	}

	path = strings.TrimSuffix(path, ".git")
	owner, repo, found := strings.Cut(path, "/")
	if !found {
		return "", ""
	}
	return owner, repo
}
