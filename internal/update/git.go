package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitConfig describes a git repository holding *.feed.json files.
type GitConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Branch string `yaml:"branch"`
}

// GitSource keeps a shallow clone of a feed repository under
// <data_dir>/git/<name>.
type GitSource struct {
	cfg     GitConfig
	dir     string
	offline bool
}

// NewGitSource validates cfg and returns the source.
func NewGitSource(cfg GitConfig, env Env) (*GitSource, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.URL == "" {
		return nil, errors.New("git url is required")
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(filepath.Base(cfg.URL), ".git")
	}
	if cfg.Name == "" || cfg.Name == "." || strings.ContainsAny(cfg.Name, `/\`) {
		return nil, fmt.Errorf("invalid git source name %q", cfg.Name)
	}
	if env.DataDir == "" {
		return nil, errors.New("data directory is required")
	}
	return &GitSource{
		cfg:     cfg,
		dir:     filepath.Join(env.DataDir, "git", cfg.Name),
		offline: env.Offline,
	}, nil
}

// Git returns a Factory for cfg.
func Git(cfg GitConfig) Factory {
	return func(env Env) (DataSource, error) { return NewGitSource(cfg, env) }
}

func (s *GitSource) Name() string { return "git:" + s.cfg.Name }

// Dir is the working tree of the clone.
func (s *GitSource) Dir() string { return s.dir }

// Update clones the repository on first use and pulls afterwards.
func (s *GitSource) Update(ctx context.Context) error {
	if s.offline {
		return nil
	}
	var ref plumbing.ReferenceName
	if s.cfg.Branch != "" {
		ref = plumbing.NewBranchReferenceName(s.cfg.Branch)
	}

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(filepath.Dir(s.dir), 0o755); err != nil {
			return &UpdateError{Source: s.Name(), Err: err}
		}
		_, err = git.PlainCloneContext(ctx, s.dir, false, &git.CloneOptions{
			URL:           s.cfg.URL,
			ReferenceName: ref,
			SingleBranch:  true,
			Depth:         1,
		})
		if err != nil {
			_ = os.RemoveAll(s.dir)
			return &UpdateError{Source: s.Name(), Err: fmt.Errorf("clone: %w", err)}
		}
		return nil
	}
	if err != nil {
		return &UpdateError{Source: s.Name(), Err: err}
	}

	wt, err := repo.Worktree()
	if err != nil {
		return &UpdateError{Source: s.Name(), Err: err}
	}
	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: ref,
		SingleBranch:  true,
		Force:         true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return &UpdateError{Source: s.Name(), Err: fmt.Errorf("pull: %w", err)}
	}
	return nil
}
