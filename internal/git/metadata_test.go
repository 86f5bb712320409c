package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestRepoMetadata(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"git@github.com:acme/widgets.git"}}); err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	hash, err := wt.Commit("init", &gogit.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &object.Signature{Name: "tester", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "lib")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	md := RepoMetadata(sub)
	if md.Commit != hash.String() {
		t.Fatalf("expected commit %s, got %q", hash, md.Commit)
	}
	if md.Branch == "" {
		t.Fatalf("expected non-empty branch")
	}
	if md.Repo != "acme/widgets" {
		t.Fatalf("unexpected repo %q", md.Repo)
	}
}

func TestRepoMetadata_OutsideRepository(t *testing.T) {
	if md := RepoMetadata(t.TempDir()); md != (Metadata{}) {
		t.Fatalf("expected zero metadata, got %+v", md)
	}
}

func TestShortRepo(t *testing.T) {
	cases := map[string]string{
		"https://github.com/acme/widgets.git": "acme/widgets",
		"git@gitlab.com:group/sub/proj.git":   "group/sub/proj",
		"ssh://git@host:22/acme/widgets":      "acme/widgets",
	}
	for in, want := range cases {
		if got := shortRepo(in); got != want {
			t.Errorf("shortRepo(%q) = %q, want %q", in, got, want)
		}
	}
}
