package cienv

import (
	"os"
	"strings"
)

// GitHub Actions environment variables.
// Reference: https://docs.github.com/en/actions/learn-github-actions/environment-variables
const (
	GitHubActionsEnvVar         = "GITHUB_ACTIONS"
	GitHubRepositoryEnvVar      = "GITHUB_REPOSITORY"
	GitHubRepositoryOwnerEnvVar = "GITHUB_REPOSITORY_OWNER"
	GitHubWorkflowEnvVar        = "GITHUB_WORKFLOW"
	GitHubRunIDEnvVar           = "GITHUB_RUN_ID"
	GitHubServerUrlEnvVar       = "GITHUB_SERVER_URL"
	GitHubShaEnvVar             = "GITHUB_SHA"
	GitHubRefNameEnvVar         = "GITHUB_REF_NAME"

	GitHubProviderName = "github"
)

type GitHubActionsProvider struct{}

func init() {
	RegisterProvider(&GitHubActionsProvider{})
}

func (g *GitHubActionsProvider) Name() string {
	return GitHubProviderName
}

// IsActive requires GITHUB_ACTIONS=true plus GITHUB_WORKFLOW and GITHUB_RUN_ID, which are always set in a workflow run.
func (g *GitHubActionsProvider) IsActive() bool {
	if os.Getenv(GitHubActionsEnvVar) != "true" {
		return false
	}
	return os.Getenv(GitHubWorkflowEnvVar) != "" && os.Getenv(GitHubRunIDEnvVar) != ""
}

func (g *GitHubActionsProvider) GetVcsInfo() CIVcsInfo {
	info := CIVcsInfo{
		Provider: GitHubProviderName,
		Org:      os.Getenv(GitHubRepositoryOwnerEnvVar),
		Revision: os.Getenv(GitHubShaEnvVar),
		Branch:   os.Getenv(GitHubRefNameEnvVar),
	}
	// GITHUB_REPOSITORY is "owner/repo".
	fullRepo := os.Getenv(GitHubRepositoryEnvVar)
	if fullRepo != "" && info.Org != "" {
		info.Repo = strings.TrimPrefix(fullRepo, info.Org+"/")
	} else {
		info.Repo = fullRepo
	}
	if server := os.Getenv(GitHubServerUrlEnvVar); server != "" && fullRepo != "" {
		info.Url = strings.TrimSuffix(server, "/") + "/" + fullRepo
	}
	return info
}
