package ingestion

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/codeproof/codeproof-go/internal/errors"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/google/uuid"
)

const (
	// DefaultCloneTimeout bounds the wall clock of one git clone.
	DefaultCloneTimeout = 300 * time.Second
	// DefaultMaxRepoBytes bounds the working tree size, .git excluded.
	DefaultMaxRepoBytes = 500 * 1024 * 1024
)

// Token shapes that must never leave the cloner in error strings.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[a-zA-Z0-9]+`),
	regexp.MustCompile(`ghu_[a-zA-Z0-9]+`),
	regexp.MustCompile(`ghs_[a-zA-Z0-9]+`),
	regexp.MustCompile(`github_pat_[a-zA-Z0-9_]+`),
	regexp.MustCompile(`x-access-token:[^@\s]+@`),
}

var urlCredentialPattern = regexp.MustCompile(`(\w+://)[^/\s:@]+:[^/\s@]+@`)

// Only host-and-path shapes of the configured platform are cloneable.
var allowedRepoURL = regexp.MustCompile(`^https://github\.com/[\w.-]+/[\w.-]+(\.git)?/?$`)

// Cloner obtains bounded working-tree copies of repositories with
// credential isolation. All working dirs live under TempRoot.
type Cloner struct {
	TempRoot     string
	Timeout      time.Duration
	MaxRepoBytes int64
	log          *logging.Logger
}

// NewCloner creates a cloner rooted at tempRoot with default bounds.
func NewCloner(tempRoot string, log *logging.Logger) *Cloner {
	return &Cloner{
		TempRoot:     tempRoot,
		Timeout:      DefaultCloneTimeout,
		MaxRepoBytes: DefaultMaxRepoBytes,
		log:          log.WithComponent("cloner"),
	}
}

// CloneResult is the outcome of a successful clone.
type CloneResult struct {
	WorkingDir string
	CommitSHA  string
}

// Clone shallow-clones repoURL (optionally at ref) into a fresh directory
// under TempRoot and resolves HEAD. The token, when present, is delivered to
// git through a short-lived askpass helper and never appears on the command
// line, in the URL, or in returned errors.
func (c *Cloner) Clone(ctx context.Context, repoURL, ref, token string) (*CloneResult, error) {
	if !allowedRepoURL.MatchString(repoURL) {
		return nil, errors.ValidationErrorf("invalid repository URL: %s", SanitizeError(repoURL))
	}

	if err := os.MkdirAll(c.TempRoot, 0o700); err != nil {
		return nil, errors.FileSystemError(err, "failed to create temp root")
	}

	workDir := filepath.Join(c.TempRoot, "clone-"+uuid.NewString())

	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultCloneTimeout
	}
	cloneCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"clone", "--depth", "1"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, repoURL, workDir)

	cmd := exec.CommandContext(cloneCtx, "git", args...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	// New process group so a timeout kill takes the whole git tree down.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var askpass string
	if token != "" {
		var err error
		askpass, err = c.writeAskpassHelper(token)
		if err != nil {
			return nil, err
		}
		defer os.Remove(askpass)
		cmd.Env = append(cmd.Env, "GIT_ASKPASS="+askpass)
	}

	c.log.Info("cloning repository", "url", repoURL, "ref", ref)

	output, err := cmd.CombinedOutput()
	if err != nil {
		_ = os.RemoveAll(workDir)
		if cloneCtx.Err() == context.DeadlineExceeded {
			return nil, errors.CloneErrorf(cloneCtx.Err(), "clone timed out after %s", timeout)
		}
		return nil, errors.CloneErrorf(err, "git clone failed: %s", SanitizeError(string(output)))
	}

	maxBytes := c.MaxRepoBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxRepoBytes
	}
	size, err := treeSize(workDir)
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, errors.FileSystemError(err, "failed to measure clone size")
	}
	if size > maxBytes {
		_ = os.RemoveAll(workDir)
		return nil, errors.QuotaError(fmt.Sprintf("repository too large: %d bytes exceeds limit of %d", size, maxBytes))
	}

	sha, err := resolveHead(ctx, workDir)
	if err != nil {
		_ = os.RemoveAll(workDir)
		return nil, errors.CloneError(err, "failed to resolve HEAD")
	}

	c.log.Info("clone complete", "dir", workDir, "commit", sha, "bytes", size)
	return &CloneResult{WorkingDir: workDir, CommitSHA: sha}, nil
}

// Cleanup removes a working directory. Idempotent; refuses any path that is
// not a descendant of TempRoot.
func (c *Cloner) Cleanup(workDir string) error {
	if workDir == "" {
		return nil
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return errors.FileSystemError(err, "failed to resolve cleanup path")
	}
	root, err := filepath.Abs(c.TempRoot)
	if err != nil {
		return errors.FileSystemError(err, "failed to resolve temp root")
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return errors.SecurityErrorf("refusing to clean path outside temp root: %s", abs)
	}
	if err := os.RemoveAll(abs); err != nil {
		return errors.FileSystemError(err, "failed to remove working dir")
	}
	return nil
}

// CleanupOld sweeps working dirs older than maxAge out of TempRoot.
// Returns the number of entries removed.
func (c *Cloner) CleanupOld(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.TempRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.FileSystemError(err, "failed to read temp root")
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(c.TempRoot, entry.Name())); err == nil {
				removed++
			}
		}
	}
	if removed > 0 {
		c.log.Info("swept stale clone dirs", "removed", removed, "max_age", maxAge)
	}
	return removed, nil
}

// writeAskpassHelper writes a single-use executable that prints the token.
// Mode 0700 so only the owning user can read it.
func (c *Cloner) writeAskpassHelper(token string) (string, error) {
	path := filepath.Join(c.TempRoot, "askpass-"+uuid.NewString()+".sh")
	script := fmt.Sprintf("#!/bin/sh\necho '%s'\n", token)
	if err := os.WriteFile(path, []byte(script), 0o700); err != nil {
		return "", errors.FileSystemError(err, "failed to write credential helper")
	}
	return path, nil
}

// SanitizeError redacts known token shapes and URL-embedded credentials
// from a message before it leaves the component.
func SanitizeError(msg string) string {
	for _, p := range tokenPatterns {
		if p.String() == `x-access-token:[^@\s]+@` {
			msg = p.ReplaceAllString(msg, "x-access-token:[REDACTED]@")
			continue
		}
		msg = p.ReplaceAllString(msg, "[REDACTED]")
	}
	msg = urlCredentialPattern.ReplaceAllString(msg, "${1}[REDACTED]@")
	return msg
}

// treeSize sums file sizes under root, excluding the .git directory.
func treeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

// resolveHead returns the commit SHA the clone checked out.
func resolveHead(ctx context.Context, workDir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", workDir, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// ParseRepoURL extracts owner/name from a repository URL.
// Supports https://github.com/owner/name(.git) and owner/name shorthand.
func ParseRepoURL(url string) (owner string, name string, err error) {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "git@github.com:")
	url = strings.TrimPrefix(url, "https://github.com/")
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	parts := strings.Split(url, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s (expected owner/name)", url)
	}
	return parts[0], parts[1], nil
}

// BuildRepoURL converts owner/name to the canonical clone URL.
func BuildRepoURL(owner, name string) string {
	return fmt.Sprintf("https://github.com/%s/%s", owner, name)
}
