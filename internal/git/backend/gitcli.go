package backend

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
)

// gitCLI implements Backend by shelling out to the git executable.
type gitCLI struct {
	path   string
	gitDir string
}

// OpenCLI locates the repository containing dir using the git executable.
// ok=false reports that dir is not inside a repository.
func OpenCLI(dir string) (Backend, bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, false, err
	}
	tmp := &gitCLI{path: abs}
	out, stderr, err := tmp.run("rev-parse", "--show-toplevel", "--absolute-git-dir")
	if err != nil {
		if strings.Contains(stderr, "not a git repository") {
			return nil, false, nil
		}
		return nil, false, cliError("git rev-parse", err, stderr)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		return nil, false, fmt.Errorf("open repository: unexpected rev-parse output %q", out)
	}
	return &gitCLI{
		path:   strings.TrimSpace(lines[0]),
		gitDir: strings.TrimSpace(lines[1]),
	}, true, nil
}

func (g *gitCLI) RepoPath() string { return g.path }

func (g *gitCLI) Close() error { return nil }

// run executes git with -C pointing at the repository and returns stdout,
// stderr and the raw execution error. Callers classify the failure.
func (g *gitCLI) run(args ...string) (string, string, error) {
	cmdArgs := append([]string{"-C", g.path}, args...)
	cmd := exec.Command("git", cmdArgs...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// runQuiet tolerates exit status 1 with empty stderr, which -q git
// commands use to answer "no" rather than to fail.
func (g *gitCLI) runQuiet(context string, args ...string) (string, error) {
	out, stderr, err := g.run(args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && strings.TrimSpace(stderr) == "" {
			return "", nil
		}
		return "", cliError(context, err, stderr)
	}
	return out, nil
}

func cliError(context string, err error, stderr string) error {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%s: %v: %s", context, err, msg)
	}
	return fmt.Errorf("%s: %w", context, err)
}

func (g *gitCLI) LookupReference(name string) (Ref, bool, error) {
	out, err := g.runQuiet("git symbolic-ref", "symbolic-ref", "-q", name)
	if err != nil {
		return Ref{}, false, err
	}
	if target := strings.TrimSpace(out); target != "" {
		return Ref{Name: name, Target: target}, true, nil
	}
	out, err = g.runQuiet("git rev-parse", "rev-parse", "-q", "--verify", name)
	if err != nil {
		return Ref{}, false, err
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		return Ref{}, false, nil
	}
	return Ref{Name: name, Hash: hash}, true, nil
}

func (g *gitCLI) ResolveReference(ref Ref) (Ref, bool, error) {
	if !ref.IsSymbolic() {
		return ref, true, nil
	}
	out, err := g.runQuiet("git rev-parse", "rev-parse", "-q", "--verify", ref.Target)
	if err != nil {
		return Ref{}, false, err
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		// symbolic target not born yet
		return Ref{}, false, nil
	}
	return Ref{Name: ref.Target, Hash: hash}, true, nil
}

func (g *gitCLI) BranchUpstream(ref Ref) (Ref, bool, error) {
	short, ok := strings.CutPrefix(ref.Name, BranchPrefix)
	if !ok {
		return Ref{}, false, nil
	}
	out, stderr, err := g.run("rev-parse", "--symbolic-full-name", short+"@{upstream}")
	if err != nil {
		if isNoUpstreamMessage(stderr) {
			return Ref{}, false, nil
		}
		return Ref{}, false, cliError("git rev-parse @{upstream}", err, stderr)
	}
	name := strings.TrimSpace(out)
	if name == "" {
		return Ref{}, false, nil
	}
	hashOut, err := g.runQuiet("git rev-parse", "rev-parse", "-q", "--verify", name)
	if err != nil {
		return Ref{}, false, err
	}
	hash := strings.TrimSpace(hashOut)
	if hash == "" {
		return Ref{}, false, nil
	}
	return Ref{Name: name, Hash: hash}, true, nil
}

func isNoUpstreamMessage(stderr string) bool {
	for _, msg := range []string{
		"no upstream configured",
		"does not point to a branch",
		"no such branch",
		"not stored as a remote-tracking branch",
		"unknown revision or path",
	} {
		if strings.Contains(stderr, msg) {
			return true
		}
	}
	return false
}

func (g *gitCLI) BranchRemoteName(refName string) (string, bool, error) {
	short, ok := strings.CutPrefix(refName, RemotePrefix)
	if !ok {
		return "", false, nil
	}
	out, stderr, err := g.run("remote")
	if err != nil {
		return "", false, cliError("git remote", err, stderr)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	remote, ok := matchRemoteName(short, names)
	return remote, ok, nil
}

func (g *gitCLI) RemoteURL(name string) (string, bool, error) {
	out, stderr, err := g.run("remote", "get-url", name)
	if err != nil {
		if strings.Contains(stderr, "No such remote") {
			return "", false, nil
		}
		return "", false, cliError("git remote get-url", err, stderr)
	}
	url := strings.TrimSpace(out)
	if url == "" {
		return "", false, nil
	}
	return url, true, nil
}

// WalkRange streams `git rev-list` output so large divergences never
// buffer whole histories in memory.
func (g *gitCLI) WalkRange(from, exclude string) (RevCursor, error) {
	args := []string{"-C", g.path, "rev-list", from}
	if exclude != "" {
		args = append(args, "^"+exclude)
	}
	cmd := exec.Command("git", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("git rev-list: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("git rev-list: %w", err)
	}
	scanner := bufio.NewScanner(stdout)
	return &cliCursor{cmd: cmd, scanner: scanner, stderr: &stderr}, nil
}

type cliCursor struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	stderr  *bytes.Buffer
	done    bool
}

func (c *cliCursor) Next() (string, error) {
	if c.done {
		return "", io.EOF
	}
	for c.scanner.Scan() {
		if line := strings.TrimSpace(c.scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := c.scanner.Err(); err != nil {
		c.finish()
		return "", fmt.Errorf("git rev-list: %w", err)
	}
	if err := c.finish(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *cliCursor) finish() error {
	if c.done {
		return nil
	}
	c.done = true
	if err := c.cmd.Wait(); err != nil {
		return cliError("git rev-list", err, c.stderr.String())
	}
	return nil
}

func (c *cliCursor) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	// abandon the walk; rev-list dies on the closed pipe
	_ = c.cmd.Process.Kill()
	_ = c.cmd.Wait()
	return nil
}

func (g *gitCLI) StashForEach(fn func(index int, message string) error) error {
	out, stderr, err := g.run("stash", "list", "--format=%gs")
	if err != nil {
		return cliError("git stash list", err, stderr)
	}
	index := 0
	for _, line := range strings.Split(out, "\n") {
		message := strings.TrimSpace(line)
		if message == "" {
			continue
		}
		if err := fn(index, message); err != nil {
			return err
		}
		index++
	}
	return nil
}

func (g *gitCLI) State() (OperationState, error) {
	return operationState(g.gitDir)
}
