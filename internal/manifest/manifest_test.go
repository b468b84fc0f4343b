package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depsync/internal/config"
)

var ocaDefaults = Defaults{Owner: "OCA", Ref: "8.0"}

func TestParseAppliesDefaults(t *testing.T) {
	decls, err := Parse(strings.NewReader("proj-a\n"), ocaDefaults)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, Declaration{Name: "proj-a", URL: "https://github.com/OCA/proj-a.git", Ref: "8.0"}, decls[0])
}

func TestParseDefaultRefFromVersion(t *testing.T) {
	cfg := config.FromEnv(func(k string) string {
		if k == config.EnvVersion {
			return "10.0"
		}
		return map[string]string{config.EnvDepsDir: "/d", config.EnvBuildDir: "/b"}[k]
	})
	decls, err := Parse(strings.NewReader("web\n"), DefaultsFrom(cfg.Defaults))
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "10.0", decls[0].Ref)
	assert.Equal(t, "https://github.com/OCA/web.git", decls[0].URL)
}

func TestParseTokensCommentsAndOrder(t *testing.T) {
	input := `# leading comment

  server-tools
web https://example.com/acme/web.git
   # indented comment
reporting-engine https://example.com/r.git 9.0 extra tokens ignored
server-tools https://other.example/st.git
`
	decls, err := Parse(strings.NewReader(input), ocaDefaults)
	require.NoError(t, err)

	assert.Equal(t, []Declaration{
		{Name: "server-tools", URL: "https://github.com/OCA/server-tools.git", Ref: "8.0"},
		{Name: "web", URL: "https://example.com/acme/web.git", Ref: "8.0"},
		{Name: "reporting-engine", URL: "https://example.com/r.git", Ref: "9.0"},
		{Name: "server-tools", URL: "https://other.example/st.git", Ref: "8.0"},
	}, decls)
}

func TestParseCustomTemplate(t *testing.T) {
	d := Defaults{Owner: "acme", Ref: "main", URLTemplate: "git@git.example.com:{owner}/{name}.git"}
	decls, err := Parse(strings.NewReader("tools"), d)
	require.NoError(t, err)
	assert.Equal(t, "git@git.example.com:acme/tools.git", decls[0].URL)
}

func TestParseFileMissingIsEmpty(t *testing.T) {
	decls, err := ParseFile(filepath.Join(t.TempDir(), FileName), ocaDefaults)
	require.NoError(t, err)
	assert.Empty(t, decls)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("a\nb https://x/b.git 11.0\n"), 0o600))

	decls, err := ParseFile(path, ocaDefaults)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, "11.0", decls[1].Ref)
}
