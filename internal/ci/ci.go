// Package ci discovers which branch or pull request a CI job analyses.
package ci

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/finding-sync/pkg/shared/config"
)

// CIKind represents the type of CI.
type CIKind int

const (
	// CIUnknown indicates the CI provider could not be identified.
	CIUnknown CIKind = iota
	// CIGitHub identifies GitHub CI environments.
	CIGitHub
	// CIGitLab identifies GitLab CI environments.
	CIGitLab
	// CIBitbucket identifies Bitbucket CI environments.
	CIBitbucket
)

// LookupFunc fetches environment variables and defaults to os.Getenv.
type LookupFunc func(string) string

// Analysis is the population a CI job builds: a branch or a pull request.
type Analysis struct {
	Kind        CIKind
	Branch      string
	PullRequest string
	Commit      string
}

// String returns the human-readable string representation of a CIKind.
func (c CIKind) String() string {
	switch c {
	case CIGitHub:
		return "github"
	case CIGitLab:
		return "gitlab"
	case CIBitbucket:
		return "bitbucket"
	default:
		return "unknown"
	}
}

// DetectCIKind infers the CI provider from well-known environment variables.
func DetectCIKind(lookup LookupFunc) CIKind {
	if lookup == nil {
		lookup = os.Getenv
	}

	if lookup("GITHUB_REPOSITORY") != "" || lookup("GITHUB_SHA") != "" {
		return CIGitHub
	}
	if strings.EqualFold(lookup("GITLAB_CI"), "true") || lookup("CI_PROJECT_PATH") != "" {
		return CIGitLab
	}
	if lookup("BITBUCKET_WORKSPACE") != "" || lookup("BITBUCKET_REPO_SLUG") != "" {
		return CIBitbucket
	}
	return CIUnknown
}

// DetectAnalysis reads the branch or pull request of the running CI job.
func DetectAnalysis(lookup LookupFunc) (Analysis, error) {
	if lookup == nil {
		lookup = os.Getenv
	}

	var a Analysis
	switch kind := DetectCIKind(lookup); kind {
	case CIGitHub:
		a = githubAnalysis(lookup)
	case CIGitLab:
		a = gitlabAnalysis(lookup)
	case CIBitbucket:
		a = bitbucketAnalysis(lookup)
	default:
		return Analysis{}, fmt.Errorf("ci: unable to detect a CI environment")
	}
	if a.Branch == "" && a.PullRequest == "" {
		return Analysis{}, fmt.Errorf("ci: %s job exposes neither a branch nor a pull request", a.Kind)
	}
	return a, nil
}

// githubAnalysis reads GitHub Actions variables.
// See https://docs.github.com/en/actions/reference/workflows-and-actions/variables.
func githubAnalysis(lookup LookupFunc) Analysis {
	a := Analysis{Kind: CIGitHub, Commit: lookup("GITHUB_SHA")}
	ref := lookup("GITHUB_REF")
	switch {
	case strings.HasPrefix(ref, "refs/pull/"):
		// refs/pull/42/merge
		parts := strings.Split(strings.TrimPrefix(ref, "refs/pull/"), "/")
		a.PullRequest = parts[0]
	case strings.HasPrefix(ref, "refs/heads/"):
		a.Branch = strings.TrimPrefix(ref, "refs/heads/")
	default:
		if lookup("GITHUB_REF_TYPE") == "branch" {
			a.Branch = lookup("GITHUB_REF_NAME")
		}
	}
	return a
}

// gitlabAnalysis reads GitLab CI variables.
// See https://docs.gitlab.com/ci/variables/predefined_variables/.
func gitlabAnalysis(lookup LookupFunc) Analysis {
	a := Analysis{Kind: CIGitLab, Commit: lookup("CI_COMMIT_SHA")}
	if iid := lookup("CI_MERGE_REQUEST_IID"); iid != "" {
		a.PullRequest = iid
	} else {
		a.Branch = lookup("CI_COMMIT_BRANCH")
	}
	return a
}

// bitbucketAnalysis reads Bitbucket Pipelines variables.
// See https://support.atlassian.com/bitbucket-cloud/docs/variables-and-secrets/.
func bitbucketAnalysis(lookup LookupFunc) Analysis {
	a := Analysis{Kind: CIBitbucket, Commit: lookup("BITBUCKET_COMMIT")}
	if pr := lookup("BITBUCKET_PR_ID"); pr != "" {
		a.PullRequest = pr
	} else {
		a.Branch = lookup("BITBUCKET_BRANCH")
	}
	return a
}

// Hydrate fills the branch or pull request of an endpoint that names neither
// from the CI job. Endpoints that already designate a population are left untouched.
func Hydrate(log hclog.Logger, name string, e *config.Endpoint, lookup LookupFunc) error {
	if e.Branch != "" || e.PullRequest != "" {
		return nil
	}
	a, err := DetectAnalysis(lookup)
	if err != nil {
		return err
	}
	e.Branch, e.PullRequest = a.Branch, a.PullRequest
	if log != nil {
		log.Info("resolved endpoint from CI environment", "endpoint", name, "ci", a.Kind.String(), "branch", a.Branch, "pull_request", a.PullRequest)
	}
	return nil
}
