// Package git computes point-in-time status snapshots of a repository:
// branch and commit identity, upstream tracking, divergence counts,
// in-progress operation state and stash count.
package git

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/thiagokokada/gitstatus-go/internal/git/backend"
)

// Snapshot is the immutable result of one status computation.
type Snapshot struct {
	Branch     string `json:"branch"`
	Commit     string `json:"commit,omitempty"`
	Detached   bool   `json:"detached"`
	Unborn     bool   `json:"unborn"`
	Upstream   string `json:"upstream,omitempty"`
	RemoteName string `json:"remote_name,omitempty"`
	RemoteURL  string `json:"remote_url,omitempty"`
	Ahead      int    `json:"ahead"`
	Behind     int    `json:"behind"`
	State      string `json:"state,omitempty"`
	Stashes    int    `json:"stashes"`
}

// Options selects how the repository is accessed.
type Options struct {
	// UseCLI picks the git executable backend instead of go-git.
	UseCLI bool
}

// Status computes a snapshot for the repository containing dir.
// ok=false reports that dir is not under version control, a normal
// outcome. Any error aborts the whole computation; there is no partial
// snapshot.
func Status(dir string, opts Options) (*Snapshot, bool, error) {
	open := backend.Open
	if opts.UseCLI {
		open = backend.OpenCLI
	}
	b, ok, err := open(dir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	defer b.Close()
	snap, err := statusFrom(b)
	if err != nil {
		return nil, false, err
	}
	return snap, true, nil
}

func statusFrom(b backend.Backend) (*Snapshot, error) {
	head, unborn, err := resolveHead(b)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		Branch: branchName(head),
		Commit: head.Hash,
		Unborn: unborn,
	}
	snap.Detached = !unborn && snap.Branch == ""

	if !unborn && snap.Branch != "" {
		if err := linkUpstream(b, head, snap); err != nil {
			return nil, err
		}
	}

	state, err := b.State()
	if err != nil {
		return nil, fmt.Errorf("repository state: %w", err)
	}
	snap.State = state.Tag()

	stashes, err := stashCount(b)
	if err != nil {
		return nil, fmt.Errorf("count stashes: %w", err)
	}
	snap.Stashes = stashes

	slog.Debug("status computed",
		slog.String("repo", b.RepoPath()),
		slog.String("branch", snap.Branch),
		slog.Int("ahead", snap.Ahead),
		slog.Int("behind", snap.Behind),
	)
	return snap, nil
}

// resolveHead resolves the HEAD pointer to its ultimate target. A missing
// HEAD or a symbolic HEAD whose target does not exist yet is an unborn
// repository, not an error; the unresolved symbolic reference is kept so
// the intended branch name can still be reported.
func resolveHead(b backend.Backend) (backend.Ref, bool, error) {
	ref, ok, err := b.LookupReference("HEAD")
	if err != nil {
		return backend.Ref{}, false, fmt.Errorf("lookup HEAD: %w", err)
	}
	if !ok {
		return backend.Ref{}, true, nil
	}
	if !ref.IsSymbolic() {
		return ref, false, nil
	}
	resolved, ok, err := b.ResolveReference(ref)
	if err != nil {
		return backend.Ref{}, false, fmt.Errorf("resolve HEAD: %w", err)
	}
	if !ok {
		slog.Debug("empty repository, HEAD target missing", slog.String("target", ref.Target))
		return ref, true, nil
	}
	return resolved, false, nil
}

// branchName derives the short branch name from a head reference.
// Detached commits and symbolic targets outside the local branch
// namespace yield the empty string.
func branchName(ref backend.Ref) string {
	name := ref.Name
	if ref.IsSymbolic() {
		name = ref.Target
	}
	short, ok := strings.CutPrefix(name, backend.BranchPrefix)
	if !ok {
		return ""
	}
	return short
}

// linkUpstream fills the upstream, remote and divergence fields. Absent
// upstreams and missing remotes leave their defaults in place; only
// unexpected backend failures abort.
func linkUpstream(b backend.Backend, head backend.Ref, snap *Snapshot) error {
	upstream, ok, err := b.BranchUpstream(head)
	if err != nil {
		return fmt.Errorf("upstream of %s: %w", head.Name, err)
	}
	if !ok {
		return nil
	}

	remoteName, upstreamBranch, err := remoteIdentity(b, upstream)
	if err != nil {
		return err
	}
	snap.RemoteName = remoteName
	snap.Upstream = upstreamBranch
	if remoteName != "" {
		url, ok, err := b.RemoteURL(remoteName)
		if err != nil {
			return fmt.Errorf("remote %s: %w", remoteName, err)
		}
		if ok {
			snap.RemoteURL = url
		}
	}

	// the walk primitive is directional, so each count needs its own pass
	snap.Ahead, err = countRange(b, head.Hash, upstream.Hash)
	if err != nil {
		return err
	}
	snap.Behind, err = countRange(b, upstream.Hash, head.Hash)
	if err != nil {
		return err
	}
	return nil
}

// remoteIdentity splits a remote-tracking reference into its owning
// remote and the branch name on that remote. Remote-tracking naming is a
// closed contract with the backend: once a remote matches, the tracking
// short name must read <remote>/<branch>.
func remoteIdentity(b backend.Backend, upstream backend.Ref) (remote, branch string, err error) {
	if short, ok := strings.CutPrefix(upstream.Name, backend.BranchPrefix); ok {
		// upstream on the local repository itself (a "." remote)
		return "", short, nil
	}
	short, ok := strings.CutPrefix(upstream.Name, backend.RemotePrefix)
	if !ok {
		return "", "", nil
	}
	remote, ok, err = b.BranchRemoteName(upstream.Name)
	if err != nil {
		return "", "", fmt.Errorf("remote of %s: %w", upstream.Name, err)
	}
	if !ok {
		return "", "", nil
	}
	if !strings.HasPrefix(short, remote+"/") {
		return "", "", fmt.Errorf("remote-tracking ref %s violates naming contract for remote %s", upstream.Name, remote)
	}
	return remote, short[len(remote)+1:], nil
}

// countRange counts commits reachable from `from` but not from
// `exclude`. Exhaustion of the walk ends the count; any other walk
// failure is fatal. The cursor is released on every path.
func countRange(b backend.Backend, from, exclude string) (int, error) {
	cursor, err := b.WalkRange(from, exclude)
	if err != nil {
		return 0, fmt.Errorf("walk %s..%s: %w", exclude, from, err)
	}
	defer cursor.Close()
	count := 0
	for {
		if _, err := cursor.Next(); err != nil {
			if err == io.EOF {
				return count, nil
			}
			return 0, fmt.Errorf("walk %s..%s: %w", exclude, from, err)
		}
		count++
	}
}

func stashCount(b backend.Backend) (int, error) {
	count := 0
	if err := b.StashForEach(func(int, string) error {
		count++
		return nil
	}); err != nil {
		return 0, err
	}
	return count, nil
}
