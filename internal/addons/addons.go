// Package addons finds Odoo modules and the addons directories that hold them inside
// synchronized checkouts.
package addons

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"git.home.luguber.info/inful/depsync/internal/git"
	"git.home.luguber.info/inful/depsync/internal/logfields"
)

// ManifestFiles are the module manifest names, newest first.
var ManifestFiles = []string{"__manifest__.py", "__odoo__.py", "__openerp__.py", "__terp__.py"}

const initFile = "__init__.py"

var notInstallableRE = regexp.MustCompile(`['"]installable['"]\s*:\s*False\b`)

// resolve follows path when it is a symlink and returns it unchanged otherwise.
func resolve(path string) string {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return path
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		slog.Debug("Broken symlink", logfields.Path(path), logfields.Error(err))
		return path
	}
	slog.Debug("Symlink resolved", logfields.Path(path), slog.String("target", target))
	return target
}

// IsModule reports whether path is a module directory: it holds __init__.py and exactly
// one manifest file. The manifest path is returned.
func IsModule(path string) (string, bool) {
	dir := resolve(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var manifest string
	hasInit, manifests := false, 0
	for _, e := range entries {
		name := e.Name()
		if name == initFile {
			hasInit = true
			continue
		}
		for _, m := range ManifestFiles {
			if name == m {
				manifests++
				manifest = name
			}
		}
	}
	if !hasInit || manifests != 1 {
		return "", false
	}
	return filepath.Join(dir, manifest), true
}

// IsInstallable is IsModule restricted to modules whose manifest does not set
// 'installable' to False.
func IsInstallable(path string) (string, bool) {
	manifest, ok := IsModule(path)
	if !ok {
		return "", false
	}
	data, err := os.ReadFile(manifest)
	if err != nil {
		slog.Warn("Cannot read module manifest", logfields.Manifest(manifest), logfields.Error(err))
		return "", false
	}
	if notInstallableRE.Match(data) {
		return "", false
	}
	return manifest, true
}

// Modules lists the installable modules directly under path, sorted by name. A
// symlinked module is reported under the name of its target.
func Modules(path string) []string {
	dir := resolve(filepath.Clean(path))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		item := filepath.Join(dir, e.Name())
		if _, ok := IsInstallable(item); !ok {
			continue
		}
		out = append(out, filepath.Base(resolve(item)))
	}
	sort.Strings(out)
	return out
}

// IsAddons reports whether path directly holds at least one installable module.
func IsAddons(path string) bool { return len(Modules(path)) > 0 }

// AddonsPaths returns the addons directories found at or below path. An addons
// directory is searched further for nested ones; any other directory only
// contributes the addons directories among its immediate children and their
// descendants. Hidden directories are skipped and each path appears once.
func AddonsPaths(path string) []string {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return dedup(addonsPaths(resolve(path)))
}

func addonsPaths(dir string) []string {
	var out []string
	if IsAddons(dir) {
		out = append(out, dir)
		for _, sub := range subdirs(dir) {
			out = append(out, addonsPaths(resolve(sub))...)
		}
		return out
	}
	for _, sub := range subdirs(dir) {
		if IsAddons(sub) {
			out = append(out, addonsPaths(resolve(sub))...)
		}
	}
	return out
}

// subdirs lists the visible child directories of dir in name order, following symlinks.
func subdirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			out = append(out, p)
		}
	}
	return out
}

func dedup(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := paths[:0]
	for _, p := range paths {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// ChangedModules returns the paths of the modules of repoPath whose files differ
// between rev and HEAD. rev must resolve in the local repository.
func ChangedModules(ctx context.Context, repoPath, rev string) ([]string, error) {
	root := resolve(repoPath)
	paths, err := git.ChangedPaths(ctx, root, rev)
	if err != nil {
		return nil, err
	}
	touched := map[string]bool{}
	for _, p := range paths {
		if top, _, found := strings.Cut(p, "/"); found {
			touched[top] = true
		}
	}
	var out []string
	for _, m := range Modules(root) {
		if touched[m] {
			out = append(out, filepath.Join(root, m))
		}
	}
	return out, nil
}

// Filter drops the entries whose name is listed in exclude.
func Filter(items, exclude []string) []string {
	if len(exclude) == 0 {
		return items
	}
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[strings.TrimSpace(e)] = true
	}
	var out []string
	for _, it := range items {
		if !skip[it] {
			out = append(out, it)
		}
	}
	return out
}
