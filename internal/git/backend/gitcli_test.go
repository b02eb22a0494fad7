package backend

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func initCLIRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "config", "user.email", "test@example.com")
	return dir
}

func commitCLI(t *testing.T, dir, msg string) string {
	t.Helper()
	runGit(t, dir, "commit", "--allow-empty", "-m", msg)
	return runGit(t, dir, "rev-parse", "HEAD")
}

func commitFileCLI(t *testing.T, dir, name, content, msg string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	runGit(t, dir, "add", name)
	runGit(t, dir, "commit", "-m", msg)
}

func writeAndStash(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	runGit(t, dir, "stash", "push", "-m", "wip "+content)
}

func openCLI(t *testing.T, dir string) Backend {
	t.Helper()
	b, ok, err := OpenCLI(dir)
	if err != nil {
		t.Fatalf("OpenCLI() error = %v", err)
	}
	if !ok {
		t.Fatalf("OpenCLI(%s) found no repository", dir)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestOpenCLINotARepository(t *testing.T) {
	requireGit(t)

	b, ok, err := OpenCLI(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCLI() error = %v", err)
	}
	if ok || b != nil {
		t.Fatal("OpenCLI() found a repository in an empty directory")
	}
}

func TestCLIUnbornHead(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	b := openCLI(t, dir)

	head, ok, err := b.LookupReference("HEAD")
	if err != nil || !ok {
		t.Fatalf("LookupReference() = (ok=%v, err=%v)", ok, err)
	}
	if head.Target != "refs/heads/main" {
		t.Fatalf("HEAD target = %q, want refs/heads/main", head.Target)
	}
	if _, ok, err := b.ResolveReference(head); err != nil || ok {
		t.Fatalf("ResolveReference() = (ok=%v, err=%v), want unresolved", ok, err)
	}
}

func TestCLIResolvedHeadAndWalk(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	c1 := commitCLI(t, dir, "first")
	c2 := commitCLI(t, dir, "second")
	b := openCLI(t, dir)

	head, ok, err := b.LookupReference("HEAD")
	if err != nil || !ok {
		t.Fatalf("LookupReference() = (ok=%v, err=%v)", ok, err)
	}
	resolved, ok, err := b.ResolveReference(head)
	if err != nil || !ok {
		t.Fatalf("ResolveReference() = (ok=%v, err=%v)", ok, err)
	}
	if resolved.Name != "refs/heads/main" || resolved.Hash != c2 {
		t.Fatalf("resolved = %+v, want main at %s", resolved, c2)
	}

	if got := countWalk(t, b, c2, c1); got != 1 {
		t.Fatalf("count(c2..c1) = %d, want 1", got)
	}
	if got := countWalk(t, b, c1, c2); got != 0 {
		t.Fatalf("count(c1..c2) = %d, want 0", got)
	}
	if got := countWalk(t, b, c2, ""); got != 2 {
		t.Fatalf("count(c2) = %d, want 2", got)
	}
}

func TestCLIWalkRangeCloseMidWalk(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	commitCLI(t, dir, "first")
	c2 := commitCLI(t, dir, "second")
	b := openCLI(t, dir)

	cursor, err := b.WalkRange(c2, "")
	if err != nil {
		t.Fatalf("WalkRange() error = %v", err)
	}
	if _, err := cursor.Next(); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if err := cursor.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestCLIBranchUpstream(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	c1 := commitCLI(t, dir, "first")
	commitCLI(t, dir, "second")
	runGit(t, dir, "remote", "add", "origin", "https://example.com/repo.git")
	runGit(t, dir, "update-ref", "refs/remotes/origin/main", c1)
	runGit(t, dir, "config", "branch.main.remote", "origin")
	runGit(t, dir, "config", "branch.main.merge", "refs/heads/main")
	b := openCLI(t, dir)

	upstream, ok, err := b.BranchUpstream(Ref{Name: "refs/heads/main"})
	if err != nil || !ok {
		t.Fatalf("BranchUpstream() = (ok=%v, err=%v)", ok, err)
	}
	if upstream.Name != "refs/remotes/origin/main" || upstream.Hash != c1 {
		t.Fatalf("upstream = %+v", upstream)
	}

	remote, ok, err := b.BranchRemoteName(upstream.Name)
	if err != nil || !ok || remote != "origin" {
		t.Fatalf("BranchRemoteName() = (%q, %v, %v)", remote, ok, err)
	}
	url, ok, err := b.RemoteURL(remote)
	if err != nil || !ok || url != "https://example.com/repo.git" {
		t.Fatalf("RemoteURL() = (%q, %v, %v)", url, ok, err)
	}
}

func TestCLIBranchUpstreamNotConfigured(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	commitCLI(t, dir, "first")
	b := openCLI(t, dir)

	if _, ok, err := b.BranchUpstream(Ref{Name: "refs/heads/main"}); err != nil || ok {
		t.Fatalf("BranchUpstream() = (ok=%v, err=%v), want no upstream", ok, err)
	}
}

func TestCLIRemoteURLMissingRemote(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	commitCLI(t, dir, "first")
	b := openCLI(t, dir)

	if _, ok, err := b.RemoteURL("origin"); err != nil || ok {
		t.Fatalf("RemoteURL() = (ok=%v, err=%v), want missing", ok, err)
	}
}

func TestCLIStashForEach(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	runGit(t, dir, "config", "commit.gpgsign", "false")
	commitFileCLI(t, dir, "a.txt", "a\n", "first")
	writeAndStash(t, dir, "a.txt", "b\n")
	writeAndStash(t, dir, "a.txt", "c\n")
	b := openCLI(t, dir)

	count := 0
	err := b.StashForEach(func(index int, message string) error {
		if index != count {
			t.Fatalf("index = %d, want %d", index, count)
		}
		count++
		return nil
	})
	if err != nil {
		t.Fatalf("StashForEach() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("stash count = %d, want 2", count)
	}
}

func TestCLIState(t *testing.T) {
	requireGit(t)

	dir := initCLIRepo(t)
	commitCLI(t, dir, "first")
	b := openCLI(t, dir)

	state, err := b.State()
	if err != nil || state != StateNone {
		t.Fatalf("State() = (%v, %v), want none", state, err)
	}
}
