// Package gitinfo captures the git state a run was produced from, so run
// artifacts can point back to an exact revision.
package gitinfo

import (
	"os/exec"
	"strings"
)

// Unknown is reported when git is unavailable or the directory is not a
// repository.
const Unknown = "unknown"

// Info is the recorded git state.
type Info struct {
	Commit string // HEAD SHA, Unknown when unavailable
	Dirty  bool   // uncommitted changes in the working tree
}

// Capture reads HEAD and the working-tree status of the repository at dir.
// Provenance is best-effort: any git failure yields {Unknown, false} rather
// than an error, so a missing git never blocks a run.
func Capture(dir string) Info {
	info := Info{Commit: Unknown}

	commit, err := gitOutput(dir, "rev-parse", "HEAD")
	if err != nil {
		return info
	}
	info.Commit = commit

	status, err := gitOutput(dir, "status", "--porcelain")
	if err != nil {
		return info
	}
	info.Dirty = status != ""

	return info
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
