// Package manifest parses dependency manifests: plain text files listing one
// source repository per line as "name [url [ref]]".
package manifest

import (
	"bufio"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/depsync/internal/config"
)

// FileName is the manifest looked up at the root of every repository.
const FileName = "oca_dependencies.txt"

// Declaration is one dependency line after defaults are applied.
type Declaration struct {
	Name string
	URL  string
	Ref  string
}

// Defaults supplies the URL and ref for lines that leave them out.
type Defaults struct {
	Owner       string
	Ref         string
	URLTemplate string
}

// DefaultsFrom adapts the configuration section.
func DefaultsFrom(c config.DefaultsConfig) Defaults {
	return Defaults{Owner: c.Owner, Ref: c.Ref, URLTemplate: c.URLTemplate}
}

// URL renders the conventional location of name.
func (d Defaults) URL(name string) string {
	return config.DefaultsConfig{Owner: d.Owner, URLTemplate: d.URLTemplate}.DefaultURL(name)
}

// Parse reads declarations in input order. Blank lines and lines starting with
// '#' are skipped, tokens past the third are ignored. Duplicate names are kept.
func Parse(r io.Reader, d Defaults) ([]Declaration, error) {
	var out []Declaration
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		decl := Declaration{Name: fields[0], URL: d.URL(fields[0]), Ref: d.Ref}
		if len(fields) > 1 {
			decl.URL = fields[1]
		}
		if len(fields) > 2 {
			decl.Ref = fields[2]
		}
		out = append(out, decl)
	}
	if err := sc.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ParseFile parses the manifest at path. A missing or unreadable file yields no
// declarations and no error.
func ParseFile(path string, d Defaults) ([]Declaration, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the traversal queue
	if err != nil {
		return nil, nil //nolint:nilerr // absence is not an error
	}
	defer func() { _ = f.Close() }()
	return Parse(f, d)
}
