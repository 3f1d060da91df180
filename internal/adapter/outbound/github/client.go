// Package github reads single files out of GitHub repositories through the
// gh CLI, so private repositories work with the user's existing login.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Scheme prefixes GitHub sources: github://owner/repo/path/to/file[@ref].
const Scheme = "github://"

// ErrGHUnavailable is returned when the gh CLI is missing or logged out.
var ErrGHUnavailable = errors.New("gh CLI unavailable")

// Location is a parsed github:// URL.
type Location struct {
	Owner, Repo, Path, Ref string
}

// ParseURL splits a github:// URL into its parts.
func ParseURL(githubURL string) (Location, error) {
	if !IsGitHubURL(githubURL) {
		return Location{}, fmt.Errorf("invalid GitHub URL format: %s", githubURL)
	}
	rest := strings.TrimPrefix(githubURL, Scheme)

	var loc Location
	if i := strings.LastIndex(rest, "@"); i >= 0 {
		rest, loc.Ref = rest[:i], rest[i+1:]
	}
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Location{}, fmt.Errorf("invalid GitHub URL format: expected github://owner/repo/path/to/file")
	}
	loc.Owner, loc.Repo, loc.Path = parts[0], parts[1], parts[2]
	return loc, nil
}

// contentsPath is the REST path of the contents API for loc.
func (l Location) contentsPath() string {
	p := fmt.Sprintf("repos/%s/%s/contents/%s", l.Owner, l.Repo, l.Path)
	if l.Ref != "" {
		p += "?ref=" + l.Ref
	}
	return p
}

// IsGitHubURL checks if a URL is a GitHub URL.
func IsGitHubURL(url string) bool {
	return strings.HasPrefix(url, Scheme)
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// execRunner runs commands with os/exec, folding stderr into the error.
func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s failed: %s", name, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Client fetches files through the gh CLI.
type Client struct {
	run    Runner
	logger *slog.Logger
}

// NewClient creates a Client. A nil runner runs the real gh binary.
func NewClient(run Runner, logger *slog.Logger) *Client {
	if run == nil {
		run = execRunner
	}
	return &Client{run: run, logger: logger.With("component", "github_client")}
}

// FetchFile returns the content of the file a github:// URL points at.
func (c *Client) FetchFile(ctx context.Context, githubURL string) ([]byte, error) {
	loc, err := ParseURL(githubURL)
	if err != nil {
		return nil, err
	}
	if err := c.checkAuth(ctx); err != nil {
		return nil, err
	}

	c.logger.Debug("Fetching file from GitHub.",
		slog.String("repo", loc.Owner+"/"+loc.Repo),
		slog.String("path", loc.Path),
		slog.String("ref", loc.Ref))
	out, err := c.run(ctx, "gh", "api", loc.contentsPath(), "--jq", ".content")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s from GitHub: %w", githubURL, err)
	}

	// The contents API returns base64 wrapped at 60 columns.
	encoded := strings.Join(strings.Fields(string(out)), "")
	if encoded == "" {
		return nil, fmt.Errorf("empty response from GitHub for %s", githubURL)
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 content: %w", err)
	}
	return content, nil
}

// checkAuth verifies that the gh CLI is installed and authenticated.
func (c *Client) checkAuth(ctx context.Context) error {
	if _, err := c.run(ctx, "gh", "auth", "status"); err != nil {
		msg := err.Error()
		switch {
		case strings.Contains(msg, "executable file not found"), strings.Contains(msg, "not found"):
			return fmt.Errorf("%w: install it from https://cli.github.com/", ErrGHUnavailable)
		case strings.Contains(msg, "not logged in"):
			return fmt.Errorf("%w: run 'gh auth login' first", ErrGHUnavailable)
		}
		return fmt.Errorf("%w: %v", ErrGHUnavailable, err)
	}
	return nil
}
