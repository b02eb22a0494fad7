package backend

import "strings"

const (
	// BranchPrefix is the canonical namespace of local branches.
	BranchPrefix = "refs/heads/"
	// RemotePrefix is the canonical namespace of remote-tracking branches.
	RemotePrefix = "refs/remotes/"
)

// Ref is a repository reference in either direct or symbolic form.
type Ref struct {
	Name   string // full reference name, e.g. refs/heads/main or HEAD
	Target string // symbolic target name; empty for direct references
	Hash   string // commit hash; empty for unresolved symbolic references
}

func (r Ref) IsSymbolic() bool { return r.Target != "" }

// IsBranch reports whether the reference lives in the local branch
// namespace.
func (r Ref) IsBranch() bool { return strings.HasPrefix(r.Name, BranchPrefix) }

// OperationState classifies the repository's in-progress multi-step
// operation.
type OperationState uint8

const (
	StateNone OperationState = iota
	StateMerge
	StateRevert
	StateRevertSequence
	StateCherryPick
	StateCherryPickSequence
	StateBisect
	StateRebase
	StateRebaseInteractive
	StateRebaseMerge
	StateApplyMailbox
	StateApplyMailboxOrRebase
	StateUnknown
)

// Tag returns the state label reported to callers. The names match
// gitaction in zsh's vcs_info. Unknown states map to "action" so that
// states introduced later still surface as "something is in progress".
func (s OperationState) Tag() string {
	switch s {
	case StateNone:
		return ""
	case StateMerge:
		return "merge"
	case StateRevert:
		return "revert"
	case StateRevertSequence:
		return "revert-seq"
	case StateCherryPick:
		return "cherry"
	case StateCherryPickSequence:
		return "cherry-seq"
	case StateBisect:
		return "bisect"
	case StateRebase:
		return "rebase"
	case StateRebaseInteractive:
		return "rebase-i"
	case StateRebaseMerge:
		return "rebase-m"
	case StateApplyMailbox:
		return "am"
	case StateApplyMailboxOrRebase:
		return "am/rebase"
	}
	return "action"
}

// matchRemoteName finds the configured remote owning a remote-tracking
// short name such as "origin/main". Remote names may themselves contain
// slashes, so the longest matching remote wins.
func matchRemoteName(shortName string, remotes []string) (string, bool) {
	best := ""
	for _, name := range remotes {
		if name == "" {
			continue
		}
		if shortName != name && !strings.HasPrefix(shortName, name+"/") {
			continue
		}
		if len(name) > len(best) {
			best = name
		}
	}
	return best, best != ""
}
