// Package gitsource mirrors remote deck repositories into a local cache
// so their markdown decks can be imported like any local directory.
package gitsource

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Fetch clones the repository at repoURL into the cache, or pulls the
// latest changes if it is already mirrored, and returns the local path.
func Fetch(repoURL, cacheDir string, logger *slog.Logger) (string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	localPath, err := LocalPath(cacheDir, repoURL)
	if err != nil {
		return "", err
	}

	_, statErr := os.Stat(localPath)
	switch {
	case os.IsNotExist(statErr):
		logger.Info("cloning deck repository",
			slog.String("url", repoURL), slog.String("path", localPath))
		if _, err := git.PlainClone(localPath, false, &git.CloneOptions{URL: repoURL}); err != nil {
			return "", fmt.Errorf("clone %s: %w", repoURL, err)
		}
	case statErr == nil:
		logger.Info("pulling deck repository", slog.String("path", localPath))
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return "", fmt.Errorf("open mirror at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("worktree at %s: %w", localPath, err)
		}
		if err := worktree.Pull(&git.PullOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
			return "", fmt.Errorf("pull %s: %w", repoURL, err)
		}
	default:
		return "", fmt.Errorf("stat %s: %w", localPath, statErr)
	}

	return localPath, nil
}

// LocalPath maps a repository URL onto a stable directory under the
// cache, so repeated fetches of the same remote reuse one mirror. Both
// https and scp-style ssh URLs are understood.
func LocalPath(cacheDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		return filepath.Join(cacheDir, parsed.Host, strings.TrimSuffix(parsed.Path, ".git")), nil
	}

	// scp-style: git@host:user/repo.git
	if strings.Contains(repoURL, "@") {
		parts := strings.SplitN(repoURL, ":", 2)
		if len(parts) == 2 {
			hostAndUser := strings.SplitN(parts[0], "@", 2)
			if len(hostAndUser) == 2 {
				return filepath.Join(cacheDir, hostAndUser[1], strings.TrimSuffix(parts[1], ".git")), nil
			}
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
