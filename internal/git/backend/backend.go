// Package backend abstracts access to repository data for status
// aggregation.
package backend

// Backend exposes the repository queries a single status computation
// needs.
//
// The default implementation uses go-git, but the interface allows
// alternative implementations (e.g. shelling out to the git executable)
// without changing callers.
//
// Fallible operations share one result shape: ok=false reports a normal
// absence (missing reference, no upstream configured, unknown remote)
// while a non-nil error reports an unexpected backend failure. Which
// absences map to ok=false is fixed per operation, documented below.
type Backend interface {
	// RepoPath returns the worktree root, for diagnostics.
	RepoPath() string

	// LookupReference finds a reference by its full name without
	// resolving symbolic targets. ok=false when no such reference exists.
	LookupReference(name string) (Ref, bool, error)

	// ResolveReference follows a symbolic reference to a direct one.
	// ok=false when the symbolic target does not exist yet (unborn
	// repository). Direct references resolve to themselves.
	ResolveReference(ref Ref) (Ref, bool, error)

	// BranchUpstream returns the remote-tracking reference configured as
	// upstream of a local branch. ok=false when no upstream is configured
	// or when ref is not a local branch.
	BranchUpstream(ref Ref) (Ref, bool, error)

	// BranchRemoteName returns the remote owning a remote-tracking
	// reference name. ok=false when no configured remote matches.
	BranchRemoteName(refName string) (string, bool, error)

	// RemoteURL returns the fetch URL of a remote. ok=false when the
	// remote does not exist or the name is invalid (stale branch config).
	RemoteURL(name string) (string, bool, error)

	// WalkRange starts a walk over commits reachable from `from` but not
	// from `exclude`. Both arguments are commit hashes; exclude may be
	// empty to walk all of `from`'s history.
	WalkRange(from, exclude string) (RevCursor, error)

	// StashForEach invokes fn once per stash entry, newest first.
	// Returning a non-nil error from fn stops the walk.
	StashForEach(fn func(index int, message string) error) error

	// State reports the repository's in-progress multi-step operation.
	State() (OperationState, error)

	// Close releases the repository handle.
	Close() error
}

// RevCursor iterates the commit hashes produced by Backend.WalkRange.
// Next returns io.EOF once the walk is exhausted. Close must be called on
// every cursor, on error paths included.
type RevCursor interface {
	Next() (string, error)
	Close() error
}
