// Package git reads revision metadata from the build context with go-git.
package git

import (
	"context"
	"errors"
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// UnknownRevision is reported when the build context is not a repository.
const UnknownRevision = "unknown"

// Common Git errors
var (
	ErrNotAGitRepo = errors.New("not a git repository")
	ErrInvalidRepo = errors.New("invalid git repository")
)

// Git is the interface for Git operations.
type Git interface {
	GetHeadCommit(ctx context.Context) (string, error)
}

// Client implements the Git interface.
type Client struct {
	repoPath string // Path inside the repository (parents are searched)
}

// NewClient creates a new Git client for the given repository path.
func NewClient(repoPath string) *Client {
	return &Client{
		repoPath: repoPath,
	}
}

// open finds the repository containing repoPath.
func (c *Client) open() (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(c.repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, gogit.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotAGitRepo, c.repoPath)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRepo, err.Error())
	}
	return repo, nil
}

// GetHeadCommit returns the commit hash of HEAD using go-git.
func (c *Client) GetHeadCommit(ctx context.Context) (string, error) {
	// Check context cancellation
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	repo, err := c.open()
	if err != nil {
		return "", err
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}

	return ref.Hash().String(), nil
}

// Revision returns the HEAD commit reported by g, or UnknownRevision when
// there is none (no repository, no commits).
func Revision(ctx context.Context, g Git) string {
	hash, err := g.GetHeadCommit(ctx)
	if err != nil || hash == "" {
		return UnknownRevision
	}
	return hash
}
