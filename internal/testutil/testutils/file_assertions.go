package helpers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CheckoutAssertions asserts on the files of a repository checkout.
type CheckoutAssertions struct {
	t    *testing.T
	root string
}

// AssertCheckout starts a chain of assertions against the directory at root.
func AssertCheckout(t *testing.T, root string) *CheckoutAssertions {
	return &CheckoutAssertions{t: t, root: root}
}

// IsRepository validates that root holds a .git directory.
func (ca *CheckoutAssertions) IsRepository() *CheckoutAssertions {
	ca.t.Helper()
	if info, err := os.Stat(filepath.Join(ca.root, ".git")); err != nil || !info.IsDir() {
		ca.t.Errorf("Expected git checkout at %s", ca.root)
	}
	return ca
}

func (ca *CheckoutAssertions) HasFile(rel string) *CheckoutAssertions {
	ca.t.Helper()
	if _, err := os.Stat(filepath.Join(ca.root, rel)); err != nil {
		ca.t.Errorf("Expected file to exist: %s", filepath.Join(ca.root, rel))
	}
	return ca
}

func (ca *CheckoutAssertions) LacksFile(rel string) *CheckoutAssertions {
	ca.t.Helper()
	if _, err := os.Stat(filepath.Join(ca.root, rel)); err == nil {
		ca.t.Errorf("Expected file to be absent: %s", filepath.Join(ca.root, rel))
	}
	return ca
}

// FileContains validates that rel exists and contains want.
func (ca *CheckoutAssertions) FileContains(rel, want string) *CheckoutAssertions {
	ca.t.Helper()
	data, err := os.ReadFile(filepath.Join(ca.root, rel))
	if err != nil {
		ca.t.Errorf("Failed to read %s: %v", rel, err)
		return ca
	}
	if !strings.Contains(string(data), want) {
		ca.t.Errorf("Expected %s to contain %q, got %q", rel, want, string(data))
	}
	return ca
}
