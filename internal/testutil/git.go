package testutil

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/git"
)

// commitEnv pins dates so hashes are reproducible
var commitEnv = []string{
	"GIT_AUTHOR_DATE=2024-01-01T00:00:00Z",
	"GIT_COMMITTER_DATE=2024-01-01T00:00:00Z",
}

// NewTestGitClient creates a new git client in a temporary directory with an initial commit
func NewTestGitClient(t *testing.T) *git.Client {
	t.Helper()
	tempDir := t.TempDir()

	runIn(t, tempDir, "init", "--initial-branch=main")
	runIn(t, tempDir, "config", "user.email", "test@example.com")
	runIn(t, tempDir, "config", "user.name", "Test User")
	runIn(t, tempDir, "config", "commit.gpgsign", "false")

	gitClient, err := git.NewClientAt(tempDir)
	require.NoError(t, err)

	_ = CommitFile(t, gitClient, "README.md", "# test\n", "Initial commit")
	return gitClient
}

// NewTestGitClientWithRemote creates a repository whose main branch is pushed
// to a bare "origin" remote in another temporary directory.
func NewTestGitClientWithRemote(t *testing.T) (*git.Client, string) {
	t.Helper()
	gitClient := NewTestGitClient(t)

	remoteDir := t.TempDir()
	runIn(t, remoteDir, "init", "--bare", "--initial-branch=main")
	Git(t, gitClient, "remote", "add", "origin", remoteDir)
	Git(t, gitClient, "push", "--quiet", "origin", "main")
	Git(t, gitClient, "fetch", "--quiet", "origin")

	return gitClient, remoteDir
}

// Git runs a git command in the repository and returns trimmed output
func Git(t *testing.T, gitClient *git.Client, args ...string) string {
	t.Helper()
	return runIn(t, gitClient.GitRoot(), args...)
}

func runIn(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), commitEnv...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s failed: %s", strings.Join(args, " "), string(output))
	return strings.TrimSpace(string(output))
}

// WriteFile writes a file relative to the repository root
func WriteFile(t *testing.T, gitClient *git.Client, path, content string) {
	t.Helper()
	full := filepath.Join(gitClient.GitRoot(), path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0644))
}

// ReadFile reads a file relative to the repository root
func ReadFile(t *testing.T, gitClient *git.Client, path string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(gitClient.GitRoot(), path))
	require.NoError(t, err)
	return string(data)
}

// CommitFile writes a file, stages it and commits with the given message
func CommitFile(t *testing.T, gitClient *git.Client, path, content, message string) string {
	t.Helper()
	WriteFile(t, gitClient, path, content)
	Git(t, gitClient, "add", path)
	Git(t, gitClient, "commit", "--quiet", "-m", message)
	return Git(t, gitClient, "rev-parse", "HEAD")
}

// CreateCommitWithTrailers creates a commit with the specified message and trailers
func CreateCommitWithTrailers(t *testing.T, gitClient *git.Client, title, body string, trailers map[string]string) string {
	t.Helper()
	msg := git.CommitMessage{
		Title:    title,
		Body:     body,
		Trailers: trailers,
	}

	// file name derived from the title keeps commits independent of each other
	name := fmt.Sprintf("file-%s.txt", strings.ReplaceAll(title, " ", "-"))
	return CommitFile(t, gitClient, name, fmt.Sprintf("%s\n%s\n", title, body), msg.String())
}

// NewStackBranch creates and checks out a stack branch at main
func NewStackBranch(t *testing.T, gitClient *git.Client, branch string) {
	t.Helper()
	Git(t, gitClient, "checkout", "--quiet", "-b", branch, "main")
}
