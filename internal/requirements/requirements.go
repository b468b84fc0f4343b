// Package requirements reads pip style requirement files and decides whether
// installing them would change anything in the current environment.
package requirements

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// FileName is the requirement file looked up at the root of every repository.
const FileName = "requirements.txt"

// Operator is the comparison a requirement line applies to its version.
type Operator string

const (
	OpNone  Operator = ""
	OpExact Operator = "=="
	OpMin   Operator = ">="
	OpMax   Operator = "<="
	// OpOther covers the remaining PEP 440 comparisons (~=, !=, <, >, ===).
	OpOther Operator = "other"
)

type Constraint struct {
	Operator Operator
	Version  string
}

// Constrained reports whether the requirement pins a version in any way.
func (c Constraint) Constrained() bool { return c.Operator != OpNone }

func (c Constraint) String() string {
	switch c.Operator {
	case OpNone:
		return ""
	case OpOther:
		return c.Version
	default:
		return string(c.Operator) + c.Version
	}
}

// Manifest is a parsed requirement file.
type Manifest struct {
	Path         string
	Requirements map[string]Constraint
	// Order lists canonical names in first-seen order.
	Order []string
	// Direct holds URL and VCS requirements, nested requirement files and editable
// installs: entries whose installed state cannot be checked.
	Direct []string
}

var (
	nameRE = regexp.MustCompile(`^([a-zA-Z0-9][-a-zA-Z0-9._]*)\s*(\[[^\]]*\])?\s*(.*)$`)
	sepRE  = regexp.MustCompile(`[-_.]+`)
)

// Canonical lower-cases a distribution name and collapses runs of "-", "_" and "."
// so that "Foo_Bar" and "foo-bar" compare equal. A Caser is stateful, so a fresh
// one is built per call.
func Canonical(name string) string {
	return sepRE.ReplaceAllString(cases.Fold().String(strings.TrimSpace(name)), "-")
}

// Parse reads requirement lines. Later lines for the same name overwrite earlier ones.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{Requirements: map[string]Constraint{}}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := stripComment(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "-") {
			// Nested files and editable installs pull in packages this file does not
			// name, so they count as direct references; other options are ignored.
			if isIndirectOption(line) {
				m.Direct = append(m.Direct, line)
			}
			continue
		}
		if strings.Contains(line, "://") || strings.HasPrefix(line, "git+") {
			m.Direct = append(m.Direct, line)
			continue
		}
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		match := nameRE.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		name := Canonical(match[1])
		if _, seen := m.Requirements[name]; !seen {
			m.Order = append(m.Order, name)
		}
		m.Requirements[name] = parseConstraint(match[3])
	}
	return m, sc.Err()
}

var indirectOptions = []string{"-r", "--requirement", "-e", "--editable"}

// isIndirectOption matches "-r file", "-rfile" and "--requirement=file" style lines.
func isIndirectOption(line string) bool {
	for _, opt := range indirectOptions {
		rest, ok := strings.CutPrefix(line, opt)
		if !ok {
			continue
		}
		if rest == "" {
			return false
		}
		if strings.HasPrefix(opt, "--") {
			if rest[0] == '=' || rest[0] == ' ' || rest[0] == '\t' {
				return true
			}
			continue
		}
		return true
	}
	return false
}

// ParseFile parses the requirement file at path. A missing or unreadable file
// yields (nil, nil).
func ParseFile(path string) (*Manifest, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the traversal
	if err != nil {
		return nil, nil //nolint:nilerr // absence is not an error
	}
	defer func() { _ = f.Close() }()
	m, err := Parse(f)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "\t#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

func parseConstraint(spec string) Constraint {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Constraint{}
	}
	for _, op := range []Operator{OpExact, OpMin, OpMax} {
		if strings.HasPrefix(spec, string(op)) && !strings.HasPrefix(spec, "===") {
			return Constraint{Operator: op, Version: strings.TrimSpace(strings.TrimPrefix(spec, string(op)))}
		}
	}
	if strings.ContainsAny(spec[:1], "<>=!~") {
		return Constraint{Operator: OpOther, Version: spec}
	}
	return Constraint{}
}
