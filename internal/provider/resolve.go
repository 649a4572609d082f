package provider

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// RepoInfo is the hosting location parsed from a remote URL
type RepoInfo struct {
	Host  string
	Owner string
	Repo  string
}

// ParseRemoteURL extracts host, owner and repository from a git remote URL.
// Supported forms:
//   - https://github.com/owner/repo.git
//   - git@github.com:owner/repo.git
//   - ssh://git@gitlab.example.com/group/sub/repo.git
//
// For nested GitLab groups Owner holds the full group path.
func ParseRemoteURL(remoteURL string) (*RepoInfo, error) {
	remoteURL = strings.TrimSuffix(strings.TrimSpace(remoteURL), "/")
	remoteURL = strings.TrimSuffix(remoteURL, ".git")

	var host, path string
	switch {
	case strings.Contains(remoteURL, "://"):
		_, rest, _ := strings.Cut(remoteURL, "://")
		if at := strings.Index(rest, "@"); at >= 0 && at < strings.Index(rest+"/", "/") {
			rest = rest[at+1:]
		}
		host, path, _ = strings.Cut(rest, "/")
		host, _, _ = strings.Cut(host, ":")
	case strings.Contains(remoteURL, "@") && strings.Contains(remoteURL, ":"):
		_, rest, _ := strings.Cut(remoteURL, "@")
		host, path, _ = strings.Cut(rest, ":")
	default:
		return nil, fmt.Errorf("unsupported remote URL %q", remoteURL)
	}

	idx := strings.LastIndex(path, "/")
	if host == "" || idx <= 0 || idx == len(path)-1 {
		return nil, fmt.Errorf("remote URL %q must name a host, owner and repository", remoteURL)
	}
	return &RepoInfo{Host: host, Owner: path[:idx], Repo: path[idx+1:]}, nil
}

// Kind names a provider family
type Kind string

const (
	KindGitHub Kind = "github"
	KindGitLab Kind = "gitlab"
)

// DetectKind picks the provider family: the configured value wins, then
// the remote host decides.
func DetectKind(configured, remoteURL string) (Kind, error) {
	switch Kind(strings.ToLower(configured)) {
	case KindGitHub:
		return KindGitHub, nil
	case KindGitLab:
		return KindGitLab, nil
	case "":
	default:
		return "", fmt.Errorf("%w: unknown provider %q", ggerrors.ErrProviderNotConfigured, configured)
	}

	info, err := ParseRemoteURL(remoteURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ggerrors.ErrProviderNotConfigured, err)
	}
	host := strings.ToLower(info.Host)
	switch {
	case host == "github.com" || strings.HasSuffix(host, ".github.com"):
		return KindGitHub, nil
	case strings.Contains(host, "gitlab"):
		return KindGitLab, nil
	}
	return "", fmt.Errorf("%w: cannot tell the provider for host %s, set defaults.provider", ggerrors.ErrProviderNotConfigured, info.Host)
}

// githubToken returns a token from the environment, if any
func githubToken(getenv func(string) string) string {
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if token := getenv(name); token != "" {
			return token
		}
	}
	return ""
}

// Resolve selects the provider for this invocation
func Resolve(ctx context.Context, cfg *config.Config, remoteURL string) (Provider, error) {
	return resolve(ctx, cfg, remoteURL, os.Getenv)
}

func resolve(ctx context.Context, cfg *config.Config, remoteURL string, getenv func(string) string) (Provider, error) {
	kind, err := DetectKind(cfg.Defaults.Provider, remoteURL)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindGitLab:
		slog.Debug("provider resolved", slog.String("provider", "gitlab-cli"))
		return NewGitLabCLI(cfg.Defaults.GitLab.AutoMergeOnLand), nil
	default:
		token := githubToken(getenv)
		if !cfg.Defaults.GitHub.UseAPI && token == "" {
			slog.Debug("provider resolved", slog.String("provider", "github-cli"))
			return NewGitHubCLI(), nil
		}
		if token == "" {
			return nil, fmt.Errorf("%w: github.use_api is set but GITHUB_TOKEN is empty", ggerrors.ErrProviderNotConfigured)
		}
		info, err := ParseRemoteURL(remoteURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ggerrors.ErrProviderNotConfigured, err)
		}
		slog.Debug("provider resolved", slog.String("provider", "github-api"), slog.String("host", info.Host))
		return NewGitHubAPI(ctx, info.Host, info.Owner, info.Repo, token)
	}
}
