// Package gitops keeps a spendsort workspace's configuration under git.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Author is the identity used for workspace commits.
type Author struct {
	Name  string
	Email string
}

// DefaultAuthor signs commits made by spendsort itself.
var DefaultAuthor = Author{Name: "spendsort", Email: "spendsort@localhost"}

// Ignore lists the workspace paths that never belong in the repository:
// bank data, the transaction database, trained models and exports.
var Ignore = []string{"import/", "data/", "model/", "exports/"}

// Init initializes a git repository at dir and writes its .gitignore.
func Init(dir string) error {
	if out, err := git(dir, DefaultAuthor, "init", "--quiet"); err != nil {
		return fmt.Errorf("git init: %s: %w", out, err)
	}
	ignore := strings.Join(Ignore, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(ignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}

// Commit stages paths (everything when none are given) and commits them.
// Returns the short commit hash.
func Commit(dir, message string, author Author, paths ...string) (string, error) {
	args := append([]string{"add", "--"}, paths...)
	if len(paths) == 0 {
		args = []string{"add", "-A"}
	}
	if out, err := git(dir, author, args...); err != nil {
		return "", fmt.Errorf("git add: %s: %w", out, err)
	}
	if out, err := git(dir, author, "commit", "--quiet", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %s: %w", out, err)
	}
	out, err := git(dir, author, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func git(dir string, author Author, args ...string) (string, error) {
	full := append([]string{"-c", "user.name=" + author.Name, "-c", "user.email=" + author.Email}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
