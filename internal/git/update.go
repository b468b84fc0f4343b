package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	gogit "github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

const remoteName = "origin"

func (c *Client) update(ctx context.Context, name, path, url, ref string) (Result, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return Result{}, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return Result{}, fmt.Errorf("resolve head: %w", err)
	}
	auth, err := c.authFor(url)
	if err != nil {
		return Result{}, err
	}

	// 1. Fetch only the requested ref
	target, err := c.fetchRef(ctx, repo, name, url, ref, auth)
	if err != nil {
		return Result{}, err
	}
	res := Result{Head: head.Hash().String()}

	// 2. Compare
	if target == head.Hash() {
		slog.Debug("Repository already up-to-date", logfields.Project(name), logfields.Commit(res.Head))
		return res, nil
	}
	same, err := sameTree(repo, head.Hash(), target)
	if err != nil {
		return Result{}, err
	}
	if same {
		slog.Debug("Fetched commit has identical content", logfields.Project(name), logfields.Commit(target.String()))
		return res, nil
	}

	// 3. Fast-forward only
	ff, err := isAncestor(repo, head.Hash(), target)
	if err != nil {
		return Result{}, fmt.Errorf("ancestor check: %w", err)
	}
	if !ff {
		if ahead, _ := isAncestor(repo, target, head.Hash()); ahead {
			slog.Warn("Local checkout is ahead of remote, leaving it untouched",
				logfields.Project(name), logfields.Ref(ref), logfields.Commit(res.Head))
			res.Changed = true
			return res, nil
		}
		return Result{}, &RemoteDivergedError{
			Op: "update", URL: url, Ref: ref,
			Local: head.Hash().String(), Remote: target.String(),
			Err: errNotFastForward,
		}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return Result{}, fmt.Errorf("worktree: %w", err)
	}
	// MergeReset refuses to overwrite unstaged local changes.
	if err := wt.Reset(&gogit.ResetOptions{Commit: target, Mode: gogit.MergeReset}); err != nil {
		return Result{}, fmt.Errorf("fast-forward: %w", err)
	}
	slog.Info("Fast-forwarded repository",
		logfields.Project(name),
		logfields.Ref(ref),
		slog.String("from", shortHash(res.Head)),
		slog.String("to", shortHash(target.String())))
	res.Changed = true
	res.Head = target.String()
	return res, nil
}

// fetchRef fetches ref as a branch, or as a tag when the remote has no such branch,
// and returns the commit it points to.
func (c *Client) fetchRef(ctx context.Context, repo *gogit.Repository, name, url, ref string, auth transport.AuthMethod) (plumbing.Hash, error) {
	branchSpec := ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", ref, remoteName, ref))
	tagSpec := ggitcfg.RefSpec(fmt.Sprintf("+refs/tags/%s:refs/tags/%s", ref, ref))

	err := c.fetch(ctx, repo, name, url, ref, branchSpec, auth)
	if err == nil {
		return resolveCommit(repo, plumbing.NewRemoteReferenceName(remoteName, ref))
	}
	if !isRefMissing(err) {
		return plumbing.ZeroHash, err
	}
	slog.Debug("Ref is not a remote branch, fetching tag", logfields.Project(name), logfields.Ref(ref))
	if err := c.fetch(ctx, repo, name, url, ref, tagSpec, auth); err != nil {
		return plumbing.ZeroHash, err
	}
	return resolveCommit(repo, plumbing.NewTagReferenceName(ref))
}

func (c *Client) fetch(ctx context.Context, repo *gogit.Repository, name, url, ref string, spec ggitcfg.RefSpec, auth transport.AuthMethod) error {
	return c.withRetry(ctx, "fetch", name, func(ctx context.Context) error {
		opCtx, cancel := c.withTimeout(ctx)
		defer cancel()
		opts := &gogit.FetchOptions{
			RemoteName: remoteName,
			RemoteURL:  url,
			RefSpecs:   []ggitcfg.RefSpec{spec},
			Auth:       auth,
			Tags:       gogit.NoTags,
		}
		if c.cfg.Depth > 0 {
			opts.Depth = c.cfg.Depth
		}
		err := repo.FetchContext(opCtx, opts)
		if err == nil || errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return nil
		}
		return classifyNetworkError("fetch", url, ref, err)
	})
}

// resolveCommit returns the commit a reference points to, peeling annotated tags.
func resolveCommit(repo *gogit.Repository, name plumbing.ReferenceName) (plumbing.Hash, error) {
	r, err := repo.Reference(name, true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", name, err)
	}
	h := r.Hash()
	if tag, err := repo.TagObject(h); err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, fmt.Errorf("peel tag %s: %w", name, err)
		}
		return commit.Hash, nil
	}
	return h, nil
}

// sameTree reports whether two commits snapshot identical content.
func sameTree(repo *gogit.Repository, a, b plumbing.Hash) (bool, error) {
	ca, err := repo.CommitObject(a)
	if err != nil {
		return false, fmt.Errorf("load commit %s: %w", shortHash(a.String()), err)
	}
	cb, err := repo.CommitObject(b)
	if err != nil {
		return false, fmt.Errorf("load commit %s: %w", shortHash(b.String()), err)
	}
	return ca.TreeHash == cb.TreeHash, nil
}

// isAncestor walks b's history breadth-first looking for a. Commits missing from a
// shallow clone end their branch of the walk.
func isAncestor(repo *gogit.Repository, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true, nil
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false, nil
}
