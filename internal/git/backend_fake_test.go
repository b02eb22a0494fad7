package git

import (
	"errors"
	"fmt"
	"io"

	gitbackend "github.com/thiagokokada/gitstatus-go/internal/git/backend"
)

type fakeBackend struct {
	repoPath string

	lookupFunc     func(name string) (gitbackend.Ref, bool, error)
	resolveFunc    func(ref gitbackend.Ref) (gitbackend.Ref, bool, error)
	upstreamFunc   func(ref gitbackend.Ref) (gitbackend.Ref, bool, error)
	remoteNameFunc func(refName string) (string, bool, error)
	remoteURLFunc  func(name string) (string, bool, error)
	walkRangeFunc  func(from, exclude string) (gitbackend.RevCursor, error)
	stateFunc      func() (gitbackend.OperationState, error)
	stashes        []string
	stashErr       error

	// commits maps hash -> parent hashes; when set, WalkRange walks it.
	commits map[string][]string

	closed bool
}

func (f *fakeBackend) RepoPath() string { return f.repoPath }

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func (f *fakeBackend) LookupReference(name string) (gitbackend.Ref, bool, error) {
	if f.lookupFunc != nil {
		return f.lookupFunc(name)
	}
	return gitbackend.Ref{}, false, errors.New("unexpected LookupReference call")
}

func (f *fakeBackend) ResolveReference(ref gitbackend.Ref) (gitbackend.Ref, bool, error) {
	if f.resolveFunc != nil {
		return f.resolveFunc(ref)
	}
	return gitbackend.Ref{}, false, errors.New("unexpected ResolveReference call")
}

func (f *fakeBackend) BranchUpstream(ref gitbackend.Ref) (gitbackend.Ref, bool, error) {
	if f.upstreamFunc != nil {
		return f.upstreamFunc(ref)
	}
	return gitbackend.Ref{}, false, errors.New("unexpected BranchUpstream call")
}

func (f *fakeBackend) BranchRemoteName(refName string) (string, bool, error) {
	if f.remoteNameFunc != nil {
		return f.remoteNameFunc(refName)
	}
	return "", false, errors.New("unexpected BranchRemoteName call")
}

func (f *fakeBackend) RemoteURL(name string) (string, bool, error) {
	if f.remoteURLFunc != nil {
		return f.remoteURLFunc(name)
	}
	return "", false, errors.New("unexpected RemoteURL call")
}

func (f *fakeBackend) WalkRange(from, exclude string) (gitbackend.RevCursor, error) {
	if f.walkRangeFunc != nil {
		return f.walkRangeFunc(from, exclude)
	}
	if f.commits == nil {
		return nil, errors.New("unexpected WalkRange call")
	}
	if _, ok := f.commits[from]; !ok {
		return nil, fmt.Errorf("unknown commit %s", from)
	}
	excluded := f.reachable(exclude)
	var hashes []string
	for _, hash := range f.walkOrder(from) {
		if !excluded[hash] {
			hashes = append(hashes, hash)
		}
	}
	return &sliceCursor{hashes: hashes}, nil
}

func (f *fakeBackend) reachable(from string) map[string]bool {
	seen := map[string]bool{}
	if from == "" {
		return seen
	}
	for _, hash := range f.walkOrder(from) {
		seen[hash] = true
	}
	return seen
}

func (f *fakeBackend) walkOrder(from string) []string {
	var order []string
	seen := map[string]bool{}
	stack := []string{from}
	for len(stack) > 0 {
		hash := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[hash] {
			continue
		}
		seen[hash] = true
		order = append(order, hash)
		stack = append(stack, f.commits[hash]...)
	}
	return order
}

func (f *fakeBackend) StashForEach(fn func(index int, message string) error) error {
	if f.stashErr != nil {
		return f.stashErr
	}
	for i, message := range f.stashes {
		if err := fn(i, message); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) State() (gitbackend.OperationState, error) {
	if f.stateFunc != nil {
		return f.stateFunc()
	}
	return gitbackend.StateNone, nil
}

type sliceCursor struct {
	hashes []string
	pos    int
	closed bool
}

func (c *sliceCursor) Next() (string, error) {
	if c.pos >= len(c.hashes) {
		return "", io.EOF
	}
	hash := c.hashes[c.pos]
	c.pos++
	return hash, nil
}

func (c *sliceCursor) Close() error {
	c.closed = true
	return nil
}

type failingCursor struct {
	closed bool
}

func (c *failingCursor) Next() (string, error) {
	return "", errors.New("walk failed")
}

func (c *failingCursor) Close() error {
	c.closed = true
	return nil
}
