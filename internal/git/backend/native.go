package backend

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// native implements Backend on go-git.
type native struct {
	repo   *gitlib.Repository
	path   string // worktree root
	gitDir string
}

// Open discovers the repository containing dir and opens it with go-git.
// ok=false reports that dir is not inside a repository, which callers
// treat as a normal outcome.
func Open(dir string) (Backend, bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false, err
	}
	root, gitDir, ok, err := discoverGitDir(abs)
	if err != nil {
		return nil, false, fmt.Errorf("discover repository: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	repo, err := gitlib.PlainOpen(gitDir)
	if err != nil {
		if errors.Is(err, gitlib.ErrRepositoryNotExists) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open repository %s: %w", root, err)
	}
	return &native{repo: repo, path: root, gitDir: gitDir}, true, nil
}

// discoverGitDir walks upward from start looking for a .git directory or
// gitdir link file. A GIT_DIR environment override short-circuits the
// search, matching git's own discovery.
func discoverGitDir(start string) (root, gitDir string, ok bool, err error) {
	if env := os.Getenv("GIT_DIR"); env != "" {
		abs, err := filepath.Abs(env)
		if err != nil {
			return "", "", false, err
		}
		if _, err := os.Stat(abs); err != nil {
			if os.IsNotExist(err) {
				return "", "", false, nil
			}
			return "", "", false, err
		}
		return start, abs, true, nil
	}
	ceilings := ceilingDirs()
	dir := start
	for {
		marker := filepath.Join(dir, ".git")
		info, statErr := os.Stat(marker)
		switch {
		case statErr == nil && info.IsDir():
			return dir, marker, true, nil
		case statErr == nil:
			// worktree or submodule link: a plain file naming the real gitdir
			linked, err := readGitDirLink(marker)
			if err != nil {
				return "", "", false, err
			}
			return dir, linked, true, nil
		case !os.IsNotExist(statErr):
			return "", "", false, statErr
		}
		parent := filepath.Dir(dir)
		if parent == dir || ceilings[parent] {
			return "", "", false, nil
		}
		dir = parent
	}
}

// ceilingDirs parses GIT_CEILING_DIRECTORIES, directories the upward
// search must not enter.
func ceilingDirs() map[string]bool {
	dirs := map[string]bool{}
	for _, dir := range strings.Split(os.Getenv("GIT_CEILING_DIRECTORIES"), string(os.PathListSeparator)) {
		if dir == "" {
			continue
		}
		dirs[filepath.Clean(dir)] = true
	}
	return dirs
}

func readGitDirLink(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	line := strings.TrimSpace(string(data))
	target, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		return "", fmt.Errorf("parse %s: missing gitdir line", path)
	}
	target = strings.TrimSpace(target)
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return filepath.Clean(target), nil
}

func (b *native) RepoPath() string { return b.path }

// Close releases nothing today: go-git closes pack handles per read. The
// method keeps handle release scoped to one status computation for every
// Backend implementation.
func (b *native) Close() error { return nil }

func (b *native) LookupReference(name string) (Ref, bool, error) {
	ref, err := b.repo.Storer.Reference(plumbing.ReferenceName(name))
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, fmt.Errorf("lookup %s: %w", name, err)
	}
	return refFromPlumbing(ref), true, nil
}

func (b *native) ResolveReference(ref Ref) (Ref, bool, error) {
	if !ref.IsSymbolic() {
		return ref, true, nil
	}
	resolved, err := b.repo.Reference(plumbing.ReferenceName(ref.Target), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, fmt.Errorf("resolve %s: %w", ref.Target, err)
	}
	return Ref{Name: string(resolved.Name()), Hash: resolved.Hash().String()}, true, nil
}

func (b *native) BranchUpstream(ref Ref) (Ref, bool, error) {
	short, ok := strings.CutPrefix(ref.Name, BranchPrefix)
	if !ok {
		// detached and unborn heads cannot track anything
		return Ref{}, false, nil
	}
	cfg, err := b.repo.Config()
	if err != nil {
		return Ref{}, false, fmt.Errorf("read config: %w", err)
	}
	branch, ok := cfg.Branches[short]
	if !ok || branch.Remote == "" || branch.Merge == "" {
		return Ref{}, false, nil
	}
	name := branch.Merge
	if branch.Remote != "." {
		name = plumbing.NewRemoteReferenceName(branch.Remote, branch.Merge.Short())
	}
	upstream, err := b.repo.Reference(name, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		// configured but the tracking ref was never fetched or was pruned
		return Ref{}, false, nil
	}
	if err != nil {
		return Ref{}, false, fmt.Errorf("resolve upstream %s: %w", name, err)
	}
	return Ref{Name: string(name), Hash: upstream.Hash().String()}, true, nil
}

func (b *native) BranchRemoteName(refName string) (string, bool, error) {
	short, ok := strings.CutPrefix(refName, RemotePrefix)
	if !ok {
		return "", false, nil
	}
	cfg, err := b.repo.Config()
	if err != nil {
		return "", false, fmt.Errorf("read config: %w", err)
	}
	names := make([]string, 0, len(cfg.Remotes))
	for name := range cfg.Remotes {
		names = append(names, name)
	}
	remote, ok := matchRemoteName(short, names)
	return remote, ok, nil
}

func (b *native) RemoteURL(name string) (string, bool, error) {
	remote, err := b.repo.Remote(name)
	if errors.Is(err, gitlib.ErrRemoteNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("remote %s: %w", name, err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", false, nil
	}
	return urls[0], true, nil
}

func (b *native) WalkRange(from, exclude string) (RevCursor, error) {
	fromCommit, err := b.repo.CommitObject(plumbing.NewHash(from))
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", from, err)
	}
	seen := map[plumbing.Hash]bool{}
	if exclude != "" {
		excludeCommit, err := b.repo.CommitObject(plumbing.NewHash(exclude))
		if err != nil {
			return nil, fmt.Errorf("lookup commit %s: %w", exclude, err)
		}
		iter := object.NewCommitPreorderIter(excludeCommit, nil, nil)
		err = iter.ForEach(func(c *object.Commit) error {
			seen[c.Hash] = true
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", exclude, err)
		}
	}
	return &nativeCursor{iter: object.NewCommitPreorderIter(fromCommit, seen, nil)}, nil
}

type nativeCursor struct {
	iter object.CommitIter
}

func (c *nativeCursor) Next() (string, error) {
	commit, err := c.iter.Next()
	if err != nil {
		// io.EOF passes through as the exhaustion signal
		return "", err
	}
	return commit.Hash.String(), nil
}

func (c *nativeCursor) Close() error {
	c.iter.Close()
	return nil
}

// StashForEach walks the stash reflog. go-git has no stash API, so the
// entries are read from logs/refs/stash directly; a missing file means
// zero stashes.
func (b *native) StashForEach(fn func(index int, message string) error) error {
	f, err := os.Open(filepath.Join(b.gitDir, "logs", "refs", "stash"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read stash reflog: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stash reflog: %w", err)
	}
	// the reflog appends, so stash@{0} is the last line
	for i := len(lines) - 1; i >= 0; i-- {
		message := lines[i]
		if _, after, ok := strings.Cut(message, "\t"); ok {
			message = after
		}
		if err := fn(len(lines)-1-i, message); err != nil {
			return err
		}
	}
	return nil
}

func (b *native) State() (OperationState, error) {
	return operationState(b.gitDir)
}

func refFromPlumbing(ref *plumbing.Reference) Ref {
	if ref.Type() == plumbing.SymbolicReference {
		return Ref{Name: string(ref.Name()), Target: string(ref.Target())}
	}
	return Ref{Name: string(ref.Name()), Hash: ref.Hash().String()}
}
