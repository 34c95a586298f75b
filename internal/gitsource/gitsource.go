// Package gitsource keeps local checkouts of wordlist repositories.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones a git repository if it doesn't exist at the given path,
// or pulls the latest changes if it does.
func Sync(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		slog.Info("Cloning repository", "url", url, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL: url,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", url, err)
		}
	case err == nil:
		slog.Info("Pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}

		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}

		err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// IsGitURL reports whether path looks like a remote repository rather than
// a local directory.
func IsGitURL(path string) bool {
	return strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://") ||
		strings.HasPrefix(path, "git@")
}

// LocalPath maps a repository URL to a checkout directory under baseDir.
// Both https and scp-style (git@host:owner/repo.git) URLs are accepted.
func LocalPath(baseDir, repoURL string) (string, error) {
	parsedURL, err := url.Parse(repoURL)
	if err != nil || (parsedURL.Scheme != "https" && parsedURL.Scheme != "http" && parsedURL.Scheme != "file") {
		if at := strings.Index(repoURL, "@"); at >= 0 {
			host, repoPath, ok := strings.Cut(repoURL[at+1:], ":")
			if ok && host != "" && repoPath != "" {
				return checkoutPath(baseDir, host, strings.TrimSuffix(repoPath, ".git"))
			}
		}
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}

	host := parsedURL.Host
	if host == "" {
		host = "local"
	}
	return checkoutPath(baseDir, host, strings.TrimSuffix(parsedURL.Path, ".git"))
}

// checkoutPath joins the URL parts under baseDir and rejects any result
// that escapes it or collapses onto baseDir itself.
func checkoutPath(baseDir, host, repoPath string) (string, error) {
	p := filepath.Join(baseDir, host, repoPath)
	rel, err := filepath.Rel(baseDir, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL %s resolves outside %s", filepath.Join(host, repoPath), baseDir)
	}
	return p, nil
}
