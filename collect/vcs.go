package collect

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/geode-native/depmanifest/entities"
	"github.com/geode-native/depmanifest/utils"
	"github.com/geode-native/depmanifest/utils/cienv"
	"github.com/jfrog/gofrog/log"
)

const gitSearchDepth = 5

// collectVcsInfo prefers the details exposed by a CI system and falls back to the git repository around workDir.
func collectVcsInfo(workDir string) *entities.Vcs {
	if info := cienv.GetCIVcsInfo(); !info.IsEmpty() && info.Revision != "" {
		log.Debug(fmt.Sprintf("Collected VCS info from %s: url=%s, branch=%s, revision=%s", info.Provider, info.Url, info.Branch, info.Revision))
		return &entities.Vcs{Url: info.Url, Revision: info.Revision, Branch: info.Branch}
	}
	gitRoot, err := utils.FindFileInDirAndParents(workDir, ".git", gitSearchDepth)
	if err != nil {
		log.Debug("Not a git repository, skipping VCS info collection")
		return nil
	}
	vcs := &entities.Vcs{
		Url:      runGitCommand(gitRoot, "config", "--get", "remote.origin.url"),
		Revision: runGitCommand(gitRoot, "rev-parse", "HEAD"),
		Branch:   runGitCommand(gitRoot, "rev-parse", "--abbrev-ref", "HEAD"),
		Message:  runGitCommand(gitRoot, "log", "-1", "--pretty=%B"),
	}
	if vcs.Revision == "" {
		return nil
	}
	log.Debug(fmt.Sprintf("Collected VCS info: url=%s, branch=%s, revision=%s", vcs.Url, vcs.Branch, vcs.Revision))
	return vcs
}

// runGitCommand returns the trimmed output of git, empty on failure.
func runGitCommand(workDir string, args ...string) string {
	cmd := exec.Command("git", args...)
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}
