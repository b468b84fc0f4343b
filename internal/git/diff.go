package git

import (
	"context"
	"fmt"
	"sort"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ChangedPaths lists the slash separated paths whose content differs between the
// commit rev resolves to and HEAD of the repository at repoPath. Renames contribute
// both names. The result is sorted and free of duplicates.
func ChangedPaths(ctx context.Context, repoPath, rev string) ([]string, error) {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	base, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", rev, err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	from, err := commitTree(repo, *base)
	if err != nil {
		return nil, err
	}
	to, err := commitTree(repo, head.Hash())
	if err != nil {
		return nil, err
	}
	changes, err := object.DiffTreeWithOptions(ctx, from, to, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	set := map[string]struct{}{}
	for _, ch := range changes {
		if ch.From.Name != "" {
			set[ch.From.Name] = struct{}{}
		}
		if ch.To.Name != "" {
			set[ch.To.Name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func commitTree(repo *gogit.Repository, h plumbing.Hash) (*object.Tree, error) {
	c, err := repo.CommitObject(h)
	if err != nil {
		return nil, fmt.Errorf("load commit %s: %w", shortHash(h.String()), err)
	}
	t, err := c.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree %s: %w", shortHash(h.String()), err)
	}
	return t, nil
}
