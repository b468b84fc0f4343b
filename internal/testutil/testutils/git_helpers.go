package helpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Upstream is a bare repository playing the remote, plus a seed working copy used
// to author commits and push them.
type Upstream struct {
	t      *testing.T
	Branch string
	Bare   string
	Work   string
	Repo   *git.Repository
}

// NewUpstream creates a bare remote whose branch holds one initial commit with files.
func NewUpstream(t *testing.T, branch string, files map[string]string) *Upstream {
	t.Helper()
	tmp := t.TempDir()
	u := &Upstream{t: t, Branch: branch, Bare: filepath.Join(tmp, "remote.git"), Work: filepath.Join(tmp, "seed")}

	initOpts := git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)}
	if _, err := git.PlainInitWithOptions(u.Bare, &git.PlainInitOptions{Bare: true, InitOptions: initOpts}); err != nil {
		t.Fatalf("init bare: %v", err)
	}
	repo, err := git.PlainInitWithOptions(u.Work, &git.PlainInitOptions{InitOptions: initOpts})
	if err != nil {
		t.Fatalf("init seed: %v", err)
	}
	if _, err := repo.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{u.Bare}}); err != nil {
		t.Fatalf("create remote: %v", err)
	}
	u.Repo = repo
	if len(files) == 0 {
		files = map[string]string{"README.md": "initial\n"}
	}
	u.CommitAndPush(files, "initial")
	return u
}

// Commit writes files into the seed working copy and commits them.
func (u *Upstream) Commit(files map[string]string, msg string) plumbing.Hash {
	u.t.Helper()
	return CommitFiles(u.t, u.Repo, u.Work, files, msg)
}

// Push publishes the seed branch and tags to the bare remote.
func (u *Upstream) Push() {
	u.t.Helper()
	spec := ggitcfg.RefSpec("+refs/heads/" + u.Branch + ":refs/heads/" + u.Branch)
	err := u.Repo.Push(&git.PushOptions{RemoteName: "origin", RefSpecs: []ggitcfg.RefSpec{spec, "+refs/tags/*:refs/tags/*"}})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		u.t.Fatalf("push: %v", err)
	}
}

func (u *Upstream) CommitAndPush(files map[string]string, msg string) plumbing.Hash {
	u.t.Helper()
	h := u.Commit(files, msg)
	u.Push()
	return h
}

// Tag creates a lightweight tag on the current seed HEAD and pushes it.
func (u *Upstream) Tag(name string) {
	u.t.Helper()
	head, err := u.Repo.Head()
	if err != nil {
		u.t.Fatalf("head: %v", err)
	}
	if _, err := u.Repo.CreateTag(name, head.Hash(), nil); err != nil {
		u.t.Fatalf("tag %s: %v", name, err)
	}
	u.Push()
}

// CommitFiles writes files relative to repoPath, stages and commits them.
func CommitFiles(t *testing.T, repo *git.Repository, repoPath string, files map[string]string, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	for name, content := range files {
		full := filepath.Join(repoPath, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := wt.Add(filepath.ToSlash(name)); err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
	}
	hash, err := wt.Commit(msg, &git.CommitOptions{AllowEmptyCommits: true, Author: &object.Signature{Name: "tester", Email: "t@example.com", When: time.Now()}})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}
