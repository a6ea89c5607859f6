package gitinfo

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
)

// GitInfoAdapter implements domain.GitInfo using go-git. The project path may
// be any directory inside the working tree.
type GitInfoAdapter struct {
	// ignorePrefixes are repository-relative prefixes left out of DirtyFiles.
	ignorePrefixes []string
}

func New(ignorePrefixes ...string) *GitInfoAdapter {
	return &GitInfoAdapter{ignorePrefixes: ignorePrefixes}
}

func open(projectPath string) (*git.Repository, error) {
	return git.PlainOpenWithOptions(projectPath, &git.PlainOpenOptions{DetectDotGit: true})
}

func (g *GitInfoAdapter) IsGitRepo(projectPath string) bool {
	_, err := open(projectPath)
	return err == nil
}

func (g *GitInfoAdapter) CommitHash(projectPath string) (string, error) {
	repo, err := open(projectPath)
	if err != nil {
		return "", fmt.Errorf("opening git repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("getting HEAD: %w", err)
	}

	return head.Hash().String(), nil
}

// DirtyFiles lists modified, staged and untracked paths relative to the
// repository root, sorted.
func (g *GitInfoAdapter) DirtyFiles(projectPath string) ([]string, error) {
	repo, err := open(projectPath)
	if err != nil {
		return nil, fmt.Errorf("opening git repo: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading status: %w", err)
	}

	var files []string
	for path, st := range status {
		if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
			continue
		}
		if g.ignored(path) {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func (g *GitInfoAdapter) ignored(path string) bool {
	for _, p := range g.ignorePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
