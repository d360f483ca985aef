// Package gitinfo reads repository state for run metadata. Lookups
// degrade silently: a project outside version control is not an error.
package gitinfo

import (
	"github.com/go-git/go-git/v5"
)

// Branch returns the checked-out branch for the repository containing
// dir. It returns "" when dir is not inside a repository, when HEAD is
// unborn, or when HEAD is detached.
func Branch(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	if !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}
