package archive

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

type call struct {
	dir  string
	env  []string
	args []string
}

type recordingRunner struct {
	calls  []call
	failOn string
}

func (r *recordingRunner) run(ctx context.Context, dir string, env []string, name string, args ...string) error {
	r.calls = append(r.calls, call{dir: dir, env: env, args: append([]string{name}, args...)})
	if r.failOn != "" && args[0] == r.failOn {
		return errors.New("exit status 1")
	}
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
}

func TestGitPublisherCommands(t *testing.T) {
	r := &recordingRunner{}
	g := &GitPublisher{
		Remote:    "origin",
		Branch:    "master",
		UserName:  "chamber-bot",
		UserEmail: "bot@example.com",
		Run:       r.run,
		Now:       fixedNow,
	}

	if err := g.Publish(context.Background(), "/srv/repo/archives/session_20260601_080000.csv"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := []string{
		"git config user.name chamber-bot",
		"git config user.email bot@example.com",
		"git add session_20260601_080000.csv",
		"git commit -m Add log session_20260601_080000.csv at 2026-06-01 09:00:00",
		"git push origin master",
	}
	if len(r.calls) != len(want) {
		t.Fatalf("expected %d commands, got %d", len(want), len(r.calls))
	}
	for i, c := range r.calls {
		if got := strings.Join(c.args, " "); got != want[i] {
			t.Errorf("command %d: got %q, want %q", i, got, want[i])
		}
		if c.dir != "/srv/repo/archives" {
			t.Errorf("command %d: dir %q", i, c.dir)
		}
		if len(c.env) != 0 {
			t.Errorf("command %d: unexpected env %v", i, c.env)
		}
	}
}

func TestGitPublisherSkipsEmptyIdentity(t *testing.T) {
	r := &recordingRunner{}
	g := &GitPublisher{Remote: "origin", Branch: "main", Run: r.run, Now: fixedNow}

	if err := g.Publish(context.Background(), "/tmp/a.csv"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(r.calls) != 3 {
		t.Fatalf("expected add, commit, push; got %d commands", len(r.calls))
	}
	if r.calls[0].args[1] != "add" {
		t.Errorf("first command: %v", r.calls[0].args)
	}
}

func TestGitPublisherStopsOnFailure(t *testing.T) {
	r := &recordingRunner{failOn: "commit"}
	g := &GitPublisher{Remote: "origin", Branch: "main", Run: r.run, Now: fixedNow}

	err := g.Publish(context.Background(), "/tmp/a.csv")
	if err == nil || !strings.Contains(err.Error(), "git commit") {
		t.Fatalf("expected git commit error, got %v", err)
	}
	for _, c := range r.calls {
		if c.args[1] == "push" {
			t.Error("push should not run after a failed commit")
		}
	}
}

func TestGitPublisherSSHKey(t *testing.T) {
	r := &recordingRunner{}
	g := &GitPublisher{Remote: "origin", Branch: "main", SSHKey: "-----BEGIN KEY-----", Run: r.run, Now: fixedNow}

	if err := g.Publish(context.Background(), "/tmp/a.csv"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	env := r.calls[0].env
	if len(env) != 1 || !strings.HasPrefix(env[0], "GIT_SSH_COMMAND=ssh -i ") {
		t.Fatalf("unexpected env %v", env)
	}
	keyPath := strings.Fields(strings.TrimPrefix(env[0], "GIT_SSH_COMMAND="))[2]
	if _, err := os.Stat(keyPath); !os.IsNotExist(err) {
		t.Errorf("ssh key file should be removed after publish, stat err=%v", err)
	}
}

func TestChainRunsAllAndJoinsErrors(t *testing.T) {
	first := &FakePublisher{PublishError: errors.New("first failed")}
	second := &FakePublisher{}
	c := Chain{first, second}

	err := c.Publish(context.Background(), "/tmp/a.csv")
	if err == nil || !strings.Contains(err.Error(), "first failed") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(second.Published()) != 1 {
		t.Error("second publisher should still run")
	}

	if err := (Chain{second}).Publish(context.Background(), "/tmp/b.csv"); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}
