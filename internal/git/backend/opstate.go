package backend

import (
	"fmt"
	"os"
	"path/filepath"
)

// gitDirProbe stats marker files under a git directory, remembering the
// first unexpected failure. Missing files are a normal answer, not an
// error.
type gitDirProbe struct {
	dir string
	err error
}

func (p *gitDirProbe) has(parts ...string) bool {
	if p.err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(append([]string{p.dir}, parts...)...))
	if err == nil {
		return true
	}
	if !os.IsNotExist(err) {
		p.err = err
	}
	return false
}

// operationState classifies the in-progress operation recorded under
// gitDir. The probe order follows git's own sequencer precedence:
// rebase markers shadow merge markers, which shadow the cherry-pick and
// revert sequencer files.
func operationState(gitDir string) (OperationState, error) {
	p := &gitDirProbe{dir: gitDir}
	state := StateNone
	switch {
	case p.has("rebase-merge", "interactive"):
		state = StateRebaseInteractive
	case p.has("rebase-merge"):
		state = StateRebaseMerge
	case p.has("rebase-apply", "rebasing"):
		state = StateRebase
	case p.has("rebase-apply", "applying"):
		state = StateApplyMailbox
	case p.has("rebase-apply"):
		state = StateApplyMailboxOrRebase
	case p.has("MERGE_HEAD"):
		state = StateMerge
	case p.has("REVERT_HEAD"):
		state = StateRevert
		if p.has("sequencer", "todo") {
			state = StateRevertSequence
		}
	case p.has("CHERRY_PICK_HEAD"):
		state = StateCherryPick
		if p.has("sequencer", "todo") {
			state = StateCherryPickSequence
		}
	case p.has("BISECT_LOG"):
		state = StateBisect
	}
	if p.err != nil {
		return StateNone, fmt.Errorf("probe repository state: %w", p.err)
	}
	return state, nil
}
