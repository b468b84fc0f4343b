package traversal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/depsync/internal/git"
	helpers "git.home.luguber.info/inful/depsync/internal/testutil/testutils"
)

func TestRunWithRealRepositories(t *testing.T) {
	leaf := helpers.NewUpstream(t, "8.0", map[string]string{"requirements.txt": "leafdep\n"})
	mid := helpers.NewUpstream(t, "8.0", map[string]string{
		"oca_dependencies.txt": "leaf " + leaf.Bare + " 8.0\n",
	})
	build, deps := layout(t, "mid "+mid.Bare+" 8.0\n")
	client := git.NewClient(deps)
	inst := newFakeInstaller(map[string]string{"leafdep": "1"})

	first, err := New(options(build, deps), client, inst).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, first.Synced, 2)
	assert.True(t, first.AnyChanged)
	helpers.AssertCheckout(t, first.Synced[1].Path).IsRepository().HasFile("requirements.txt")

	// Both checkouts now exist, so they are seeded and nothing is synchronized.
	second, err := New(options(build, deps), client, inst).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, second.Synced)
	assert.ElementsMatch(t, []string{"leaf", "mid"}, second.Seeded)
	assert.False(t, second.AnyChanged)
}
