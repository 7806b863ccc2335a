package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Chain runs every publisher in order and joins their errors.
type Chain []Publisher

// Publish hands path to each publisher; one failing does not skip the rest.
func (c Chain) Publish(ctx context.Context, path string) error {
	var errs []error
	for _, p := range c {
		if err := p.Publish(ctx, path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Runner executes one command in dir with extra environment variables.
type Runner func(ctx context.Context, dir string, env []string, name string, args ...string) error

// GitPublisher commits an archive file into the git work tree containing it
// and pushes it.
type GitPublisher struct {
	Remote    string
	Branch    string
	UserName  string
	UserEmail string
	// SSHKey is a private key; when set it is written to a 0600 temp file and
	// used through GIT_SSH_COMMAND.
	SSHKey string

	// Run executes commands; nil uses os/exec.
	Run Runner
	// Now stamps commit messages; nil uses time.Now.
	Now func() time.Time
}

// Publish stages, commits and pushes path.
func (g *GitPublisher) Publish(ctx context.Context, path string) error {
	run := g.Run
	if run == nil {
		run = execRunner
	}
	now := g.Now
	if now == nil {
		now = time.Now
	}

	env, cleanup, err := g.sshEnv()
	if err != nil {
		return err
	}
	defer cleanup()

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	msg := fmt.Sprintf("Add log %s at %s", name, now().Format("2006-01-02 15:04:05"))

	steps := [][]string{
		{"config", "user.name", g.UserName},
		{"config", "user.email", g.UserEmail},
		{"add", name},
		{"commit", "-m", msg},
		{"push", g.Remote, g.Branch},
	}
	for _, args := range steps {
		if args[0] == "config" && args[2] == "" {
			continue
		}
		if err := run(ctx, dir, env, "git", args...); err != nil {
			return fmt.Errorf("git %s: %w", args[0], err)
		}
	}
	return nil
}

func (g *GitPublisher) sshEnv() ([]string, func(), error) {
	if g.SSHKey == "" {
		return nil, func() {}, nil
	}
	f, err := os.CreateTemp("", "chamber-ssh-*")
	if err != nil {
		return nil, nil, fmt.Errorf("write ssh key: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }
	if _, err := f.WriteString(g.SSHKey); err != nil {
		f.Close()
		cleanup()
		return nil, nil, fmt.Errorf("write ssh key: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("write ssh key: %w", err)
	}
	env := []string{"GIT_SSH_COMMAND=ssh -i " + f.Name() + " -o StrictHostKeyChecking=no"}
	return env, cleanup, nil
}

func execRunner(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, truncate(out))
	}
	return nil
}

func truncate(out []byte) string {
	const limit = 512
	if len(out) > limit {
		out = out[:limit]
	}
	return strings.TrimSpace(string(out))
}
