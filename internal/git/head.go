package git

import (
	"fmt"

	gogit "github.com/go-git/go-git/v5"
)

// ReadRepoHead returns the commit hash HEAD points at in the checkout at repoPath.
func ReadRepoHead(repoPath string) (string, error) {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve head: %w", err)
	}
	return ref.Hash().String(), nil
}
