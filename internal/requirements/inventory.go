package requirements

// InstalledIndex maps canonical package names to installed versions.
type InstalledIndex map[string]string

// Has reports whether name (in any spelling) is installed.
func (idx InstalledIndex) Has(name string) bool {
	_, ok := idx[Canonical(name)]
	return ok
}

// NewInstalledIndex canonicalizes raw name to version pairs.
func NewInstalledIndex(raw map[string]string) InstalledIndex {
	idx := make(InstalledIndex, len(raw))
	for name, version := range raw {
		idx[Canonical(name)] = version
	}
	return idx
}

// NeedsInstall reports whether installing m could change the environment, with the
// first reason found. Any version constraint triggers an install regardless of the
// installed version; an unconstrained requirement only triggers when it is missing.
func NeedsInstall(m *Manifest, idx InstalledIndex) (bool, string) {
	if m == nil {
		return false, ""
	}
	if len(m.Direct) > 0 {
		return true, "direct:" + m.Direct[0]
	}
	for _, name := range m.Order {
		if !idx.Has(name) {
			return true, "missing:" + name
		}
		if m.Requirements[name].Constrained() {
			return true, "constrained:" + name
		}
	}
	return false, ""
}
