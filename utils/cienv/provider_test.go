package cienv

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allVars = []string{
	CIEnvVar,
	GitHubActionsEnvVar, GitHubRepositoryEnvVar, GitHubRepositoryOwnerEnvVar, GitHubWorkflowEnvVar,
	GitHubRunIDEnvVar, GitHubServerUrlEnvVar, GitHubShaEnvVar, GitHubRefNameEnvVar,
	GitLabCIEnvVar, GitLabProjectPathEnvVar, GitLabProjectUrlEnvVar, GitLabPipelineIDEnvVar,
	GitLabJobIDEnvVar, GitLabCommitShaEnvVar, GitLabCommitRefEnvVar,
}

// setupEnv clears every CI variable for the test, then sets vars.
func setupEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, key := range allVars {
		unsetEnvForTest(t, key)
	}
	for key, value := range vars {
		t.Setenv(key, value)
	}
}

func unsetEnvForTest(t *testing.T, key string) {
	t.Helper()
	origVal, existed := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("Failed to unset env var %s: %v", key, err)
	}
	t.Cleanup(func() {
		if existed {
			if err := os.Setenv(key, origVal); err != nil {
				t.Errorf("Failed to restore env var %s: %v", key, err)
			}
		}
	})
}

func TestGetActiveProvider(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected string
	}{
		{"not in CI", map[string]string{}, ""},
		{"CI without provider", map[string]string{CIEnvVar: "true"}, ""},
		{"GitHub without CI=true", map[string]string{GitHubActionsEnvVar: "true", GitHubWorkflowEnvVar: "build", GitHubRunIDEnvVar: "1"}, ""},
		{"GitHub missing run id", map[string]string{CIEnvVar: "true", GitHubActionsEnvVar: "true", GitHubWorkflowEnvVar: "build"}, ""},
		{"GitHub", map[string]string{CIEnvVar: "true", GitHubActionsEnvVar: "true", GitHubWorkflowEnvVar: "build", GitHubRunIDEnvVar: "1"}, GitHubProviderName},
		{"GitLab", map[string]string{CIEnvVar: "true", GitLabCIEnvVar: "true", GitLabPipelineIDEnvVar: "10", GitLabJobIDEnvVar: "20"}, GitLabProviderName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, tt.envVars)
			provider := GetActiveProvider()
			if tt.expected == "" {
				assert.Nil(t, provider)
				assert.False(t, IsRunningInCI())
				assert.True(t, GetCIVcsInfo().IsEmpty())
				return
			}
			if assert.NotNil(t, provider) {
				assert.Equal(t, tt.expected, provider.Name())
			}
		})
	}
}

func TestGitHubVcsInfo(t *testing.T) {
	setupEnv(t, map[string]string{
		CIEnvVar:                    "true",
		GitHubActionsEnvVar:         "true",
		GitHubWorkflowEnvVar:        "build",
		GitHubRunIDEnvVar:           "1",
		GitHubRepositoryEnvVar:      "apache/geode-native",
		GitHubRepositoryOwnerEnvVar: "apache",
		GitHubServerUrlEnvVar:       "https://github.com/",
		GitHubShaEnvVar:             "0a1b2c",
		GitHubRefNameEnvVar:         "develop",
	})
	assert.Equal(t, CIVcsInfo{
		Provider: GitHubProviderName,
		Org:      "apache",
		Repo:     "geode-native",
		Url:      "https://github.com/apache/geode-native",
		Revision: "0a1b2c",
		Branch:   "develop",
	}, GetCIVcsInfo())
}

func TestGitLabVcsInfo(t *testing.T) {
	tests := []struct {
		projectPath string
		org         string
		repo        string
	}{
		{"geode/native", "geode", "native"},
		{"geode/clients/native", "geode", "clients/native"},
		{"native", "", "native"},
	}
	for _, tt := range tests {
		t.Run(tt.projectPath, func(t *testing.T) {
			setupEnv(t, map[string]string{GitLabProjectPathEnvVar: tt.projectPath, GitLabCommitShaEnvVar: "abc"})
			info := (&GitLabCIProvider{}).GetVcsInfo()
			assert.Equal(t, tt.org, info.Org)
			assert.Equal(t, tt.repo, info.Repo)
			assert.Equal(t, "abc", info.Revision)
		})
	}
}
