package git

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/depsync/internal/config"
	"git.home.luguber.info/inful/depsync/internal/logfields"
	"git.home.luguber.info/inful/depsync/internal/metrics"
	"git.home.luguber.info/inful/depsync/internal/retry"
)

// Result describes what a Sync call did to a checkout.
type Result struct {
	Path    string
	Changed bool // the working copy content differs from before the call
	Cloned  bool
	Head    string
}

// Client synchronizes repositories below a checkout root.
type Client struct {
	root     string
	cfg      config.GitConfig
	policy   retry.Policy
	recorder metrics.Recorder
}

// NewClient creates a client rooted at checkoutRoot with default git settings.
func NewClient(checkoutRoot string) *Client {
	return &Client{root: checkoutRoot, policy: retry.DefaultPolicy(), recorder: metrics.NoopRecorder{}}
}

// WithConfig attaches git configuration (timeouts, depth, credentials, retries).
func (c *Client) WithConfig(cfg config.GitConfig) *Client {
	c.cfg = cfg
	c.policy = retry.FromGitConfig(cfg)
	return c
}

func (c *Client) WithRecorder(r metrics.Recorder) *Client {
	c.recorder = metrics.OrNoop(r)
	return c
}

// PathFor returns the checkout directory for a project.
func (c *Client) PathFor(name string) string { return filepath.Join(c.root, name) }

// Sync brings <root>/<name> to the tip of ref on url. A missing checkout is cloned
// (Changed=true); an existing directory that is not a repository is left alone and
// reported as an error. An existing checkout is fetched and fast-forwarded; Changed is false
// when the fetched content equals the local one. Every error is fatal for the caller.
func (c *Client) Sync(ctx context.Context, name, url, ref string) (Result, error) {
	start := time.Now()
	path := c.PathFor(name)

	var (
		res Result
		err error
		op  = "update"
	)
	_, statErr := os.Lstat(path)
	switch {
	case os.IsNotExist(statErr):
		op = "clone"
		slog.Debug("Repository missing, cloning", logfields.Project(name), logfields.Path(path))
		res, err = c.clone(ctx, name, path, url, ref)
	case statErr != nil:
		err = statErr
	case !isRepository(path):
		err = &NotRepositoryError{Op: op, Path: path}
	default:
		res, err = c.update(ctx, name, path, url, ref)
	}
	res.Path = path

	outcome := metrics.SyncUnchanged
	switch {
	case err != nil:
		outcome = metrics.SyncFailed
	case res.Cloned:
		outcome = metrics.SyncCloned
	case res.Changed:
		outcome = metrics.SyncUpdated
	}
	c.recorder.ObserveSyncDuration(time.Since(start), outcome)
	c.recorder.IncSyncResult(outcome)

	if err != nil {
		return res, classify(err, op, name, url, ref)
	}
	slog.Info("Repository synchronized",
		logfields.Project(name),
		logfields.Ref(ref),
		logfields.Commit(res.Head),
		logfields.Changed(res.Changed),
		slog.String("result", string(outcome)),
		logfields.Duration(time.Since(start)))
	return res, nil
}

func isRepository(path string) bool {
	_, err := os.Stat(filepath.Join(path, ".git"))
	return err == nil
}

// withTimeout bounds a single network operation.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.cfg.TimeoutDuration())
}

// withRetry runs op under the configured retry policy. Retries are off unless
// git.max_retries is set; only timeouts and rate limits are retried.
func (c *Client) withRetry(ctx context.Context, op, name string, fn func(context.Context) error) error {
	return c.policy.Do(ctx, fn, isTransient, func(attempt int, err error) {
		c.recorder.IncGitRetry(op)
		slog.Warn("Retrying git operation",
			logfields.Operation(op),
			logfields.Project(name),
			logfields.Attempt(attempt),
			logfields.Error(err))
	})
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create checkout root: %w", err)
	}
	return nil
}
