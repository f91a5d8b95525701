package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// gitRepo wraps the on-disk git repository storage_root is tracked as.
// Opened once at startup; every commit batch reuses the same worktree.
type gitRepo struct {
	repo *git.Repository
	root string
}

func openOrInitGitRepo(root string) (*gitRepo, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("archive: creating storage root: %w", err)
	}
	repo, err := git.PlainOpen(root)
	if err == git.ErrRepositoryNotExists {
		repo, err = git.PlainInit(root, false)
	}
	if err != nil {
		return nil, fmt.Errorf("archive: opening git repository at %s: %w", root, err)
	}
	return &gitRepo{repo: repo, root: root}, nil
}

// commitPaths stages every path (relative to root) and commits them as a
// single batch. A commit covering zero effective changes (all paths
// unchanged since the last commit) is a harmless no-op in go-git.
func (g *gitRepo) commitPaths(message string, absPaths []string) error {
	wt, err := g.repo.Worktree()
	if err != nil {
		return fmt.Errorf("archive: worktree: %w", err)
	}
	for _, p := range absPaths {
		rel, err := filepath.Rel(g.root, p)
		if err != nil {
			return fmt.Errorf("archive: relativizing %s: %w", p, err)
		}
		if _, err := wt.Add(rel); err != nil {
			return fmt.Errorf("archive: staging %s: %w", rel, err)
		}
	}
	status, err := wt.Status()
	if err != nil {
		return fmt.Errorf("archive: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	_, err = wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "agentmail-archive",
			Email: "archive@agentmail.local",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}
