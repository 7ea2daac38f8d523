// Package docker wraps the docker CLI for the image builds and container
// runs cookship drives.
//
// Only the operations the release modes need are exposed, behind the
// Docker interface so orchestration can be tested without a daemon.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
)

var (
	// ErrDockerInvocation marks a docker command that ran and failed.
	ErrDockerInvocation = errors.New("docker command failed")
	// ErrDaemonUnavailable marks a docker CLI that cannot reach its daemon.
	ErrDaemonUnavailable = errors.New("docker daemon unavailable")
)

// BuildOptions configures one "docker buildx build".
type BuildOptions struct {
	ContextDir string
	Dockerfile string
	// Builder selects a named buildx builder; empty uses the current one.
	Builder   string
	Platforms []string
	Tags      []string
	BuildArgs map[string]string
	// Exactly one of Load and Push should be set.
	Load bool
	Push bool
}

// Mount bind-mounts a host directory into a container.
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// RunOptions configures a detached "docker run".
type RunOptions struct {
	Image         string
	Name          string
	HostPort      int
	ContainerPort int
	Memory        string
	CPUs          string
	Mounts        []Mount
}

// Docker is the interface for docker operations.
type Docker interface {
	Build(ctx context.Context, opts BuildOptions) error
	BuilderExists(ctx context.Context, name string) (bool, error)
	CreateBuilder(ctx context.Context, name string) error
	Run(ctx context.Context, opts RunOptions) (string, error)
	Logs(ctx context.Context, containerID string) (string, error)
	Stop(ctx context.Context, containerID string) error
	Remove(ctx context.Context, containerID string) error
}

// Client implements Docker by running the docker binary.
type Client struct {
	bin    string
	out    io.Writer
	logger logging.Logger
}

// NewClient creates a client for the docker binary on PATH. Build output
// is streamed to out (stderr when nil).
func NewClient(out io.Writer, logger logging.Logger) *Client {
	if out == nil {
		out = os.Stderr
	}
	return &Client{
		bin:    "docker",
		out:    out,
		logger: logging.OrNop(logger),
	}
}

// BuildArgs returns the docker arguments for opts.
func BuildArgs(opts BuildOptions) []string {
	args := []string{"buildx", "build"}

	if opts.Builder != "" {
		args = append(args, "--builder", opts.Builder)
	}
	if len(opts.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(opts.Platforms, ","))
	}
	if opts.Dockerfile != "" {
		args = append(args, "--file", opts.Dockerfile)
	}

	// Sorted for reproducible command lines
	keys := make([]string, 0, len(opts.BuildArgs))
	for k := range opts.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}

	for _, tag := range opts.Tags {
		args = append(args, "--tag", tag)
	}

	if opts.Load {
		args = append(args, "--load")
	}
	if opts.Push {
		args = append(args, "--push")
	}

	contextDir := opts.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	return append(args, contextDir)
}

// RunArgs returns the docker arguments for a detached run of opts.
func RunArgs(opts RunOptions) []string {
	args := []string{"run", "--detach"}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}
	if opts.Memory != "" {
		args = append(args, "--memory", opts.Memory)
	}
	if opts.CPUs != "" {
		args = append(args, "--cpus", opts.CPUs)
	}
	if opts.ContainerPort > 0 {
		host := opts.HostPort
		if host == 0 {
			host = opts.ContainerPort
		}
		args = append(args, "--publish", fmt.Sprintf("%d:%d", host, opts.ContainerPort))
	}
	for _, m := range opts.Mounts {
		spec := m.Source + ":" + m.Target
		if m.ReadOnly {
			spec += ":ro"
		}
		args = append(args, "--volume", spec)
	}

	return append(args, opts.Image)
}

// Build runs "docker buildx build", streaming its progress output.
func (c *Client) Build(ctx context.Context, opts BuildOptions) error {
	if opts.Load && opts.Push {
		return fmt.Errorf("build: load and push are mutually exclusive")
	}

	args := BuildArgs(opts)
	c.logger.Debug("running docker", "args", strings.Join(args, " "))

	// One writer for both streams so os/exec serializes the writes.
	var output bytes.Buffer
	w := io.MultiWriter(c.out, &output)
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = w
	cmd.Stderr = w

	if err := cmd.Run(); err != nil {
		return translateDockerError(ctx, "buildx build", err, output.String())
	}
	return nil
}

// BuilderExists reports whether "docker buildx inspect name" succeeds.
func (c *Client) BuilderExists(ctx context.Context, name string) (bool, error) {
	_, err := c.run(ctx, "buildx", "inspect", name)
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// CreateBuilder creates a docker-container builder. The default builder is
// left alone; callers select this one with BuildOptions.Builder.
func (c *Client) CreateBuilder(ctx context.Context, name string) error {
	_, err := c.run(ctx, "buildx", "create", "--name", name, "--driver", "docker-container")
	return err
}

// Run starts a detached container and returns its ID.
func (c *Client) Run(ctx context.Context, opts RunOptions) (string, error) {
	if opts.Image == "" {
		return "", fmt.Errorf("run: image is required")
	}
	out, err := c.run(ctx, RunArgs(opts)...)
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("%w: docker run printed no container id", ErrDockerInvocation)
	}
	return id, nil
}

// Logs returns the combined stdout and stderr of a container.
func (c *Client) Logs(ctx context.Context, containerID string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, "logs", containerID)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", translateDockerError(ctx, "logs", err, string(out))
	}
	return string(out), nil
}

// Stop stops a running container.
func (c *Client) Stop(ctx context.Context, containerID string) error {
	_, err := c.run(ctx, "stop", containerID)
	return err
}

// Remove force-removes a container.
func (c *Client) Remove(ctx context.Context, containerID string) error {
	_, err := c.run(ctx, "rm", "--force", containerID)
	return err
}

// run executes docker with args, returning stdout. Failures are translated
// but keep *exec.ExitError reachable through errors.As.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	c.logger.Debug("running docker", "args", strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), translateDockerError(ctx, args[0], err, stderr.String())
	}
	return stdout.String(), nil
}

// dockerError carries a readable message while preserving the cause.
type dockerError struct {
	kind    error
	message string
	cause   error
}

func (e *dockerError) Error() string {
	return e.message
}

// Unwrap exposes both the error kind and the underlying exec error.
func (e *dockerError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

// translateDockerError maps exec failures to ErrDockerInvocation or
// ErrDaemonUnavailable with the last stderr line.
func translateDockerError(ctx context.Context, op string, err error, stderr string) error {
	// A killed process reports an exit status, so consult ctx directly.
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("docker %s cancelled: %w", op, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "deadline exceeded") {
		return fmt.Errorf("docker %s timed out: %w", op, context.DeadlineExceeded)
	}

	if errors.Is(err, exec.ErrNotFound) {
		return &dockerError{kind: ErrDaemonUnavailable, message: "docker CLI not found on PATH", cause: err}
	}

	kind := ErrDockerInvocation
	lower := strings.ToLower(stderr)
	if strings.Contains(lower, "cannot connect to the docker daemon") || strings.Contains(lower, "is the docker daemon running") {
		kind = ErrDaemonUnavailable
	}

	detail := lastLine(stderr)
	if detail == "" {
		detail = err.Error()
	}
	return &dockerError{
		kind:    kind,
		message: fmt.Sprintf("%v: docker %s: %s", kind, op, detail),
		cause:   err,
	}
}

// lastLine returns the final non-empty line of s, limited in length.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	line := strings.TrimSpace(lines[len(lines)-1])

	const maxLen = 300
	if len(line) > maxLen {
		line = line[:maxLen] + "..."
	}
	return line
}
