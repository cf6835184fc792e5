package cienv

import (
	"os"
	"strings"
)

// GitLab CI environment variables.
// Reference: https://docs.gitlab.com/ee/ci/variables/predefined_variables.html
const (
	GitLabCIEnvVar          = "GITLAB_CI"
	GitLabProjectPathEnvVar = "CI_PROJECT_PATH"
	GitLabProjectUrlEnvVar  = "CI_PROJECT_URL"
	GitLabPipelineIDEnvVar  = "CI_PIPELINE_ID"
	GitLabJobIDEnvVar       = "CI_JOB_ID"
	GitLabCommitShaEnvVar   = "CI_COMMIT_SHA"
	GitLabCommitRefEnvVar   = "CI_COMMIT_REF_NAME"

	GitLabProviderName = "gitlab"
)

type GitLabCIProvider struct{}

func init() {
	RegisterProvider(&GitLabCIProvider{})
}

func (g *GitLabCIProvider) Name() string {
	return GitLabProviderName
}

func (g *GitLabCIProvider) IsActive() bool {
	if os.Getenv(GitLabCIEnvVar) != "true" {
		return false
	}
	return os.Getenv(GitLabPipelineIDEnvVar) != "" && os.Getenv(GitLabJobIDEnvVar) != ""
}

// GetVcsInfo splits CI_PROJECT_PATH, "group/project" or "group/subgroup/project", at the first slash.
func (g *GitLabCIProvider) GetVcsInfo() CIVcsInfo {
	info := CIVcsInfo{
		Provider: GitLabProviderName,
		Url:      os.Getenv(GitLabProjectUrlEnvVar),
		Revision: os.Getenv(GitLabCommitShaEnvVar),
		Branch:   os.Getenv(GitLabCommitRefEnvVar),
	}
	if projectPath := os.Getenv(GitLabProjectPathEnvVar); projectPath != "" {
		org, repo, found := strings.Cut(projectPath, "/")
		if found {
			info.Org, info.Repo = org, repo
		} else {
			info.Repo = org
		}
	}
	return info
}
