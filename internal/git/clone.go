package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/depsync/internal/logfields"
)

// clone checks ref out into path, trying it as a branch first and as a tag second.
// path must not exist; whatever a failed attempt leaves behind there is removed.
func (c *Client) clone(ctx context.Context, name, path, url, ref string) (Result, error) {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return Result{}, err
	}
	auth, err := c.authFor(url)
	if err != nil {
		return Result{}, err
	}

	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
	var repo *gogit.Repository
	for i, refName := range candidates {
		err = c.withRetry(ctx, "clone", name, func(ctx context.Context) error {
			if rmErr := os.RemoveAll(path); rmErr != nil {
				return fmt.Errorf("failed to remove partial clone: %w", rmErr)
			}
			opCtx, cancel := c.withTimeout(ctx)
			defer cancel()
			opts := &gogit.CloneOptions{
				URL:           url,
				Auth:          auth,
				ReferenceName: refName,
				SingleBranch:  true,
				Tags:          gogit.NoTags,
			}
			if c.cfg.Depth > 0 {
				opts.Depth = c.cfg.Depth
			}
			var cloneErr error
			repo, cloneErr = gogit.PlainCloneContext(opCtx, path, false, opts)
			return classifyNetworkError("clone", url, ref, cloneErr)
		})
		if err == nil {
			break
		}
		if i < len(candidates)-1 && isRefMissing(err) {
			slog.Debug("Ref is not a branch, trying tag", logfields.Project(name), logfields.Ref(ref))
			continue
		}
		_ = os.RemoveAll(path)
		return Result{}, err
	}

	head, err := repo.Head()
	if err != nil {
		return Result{}, fmt.Errorf("resolve head after clone: %w", err)
	}
	slog.Info("Repository cloned",
		logfields.Project(name),
		logfields.URL(url),
		logfields.Ref(ref),
		logfields.Commit(head.Hash().String()),
		logfields.Path(path))
	return Result{Changed: true, Cloned: true, Head: head.Hash().String()}, nil
}
