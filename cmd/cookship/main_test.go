package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ZebulonRouseFrantzich/cookship/internal/binary"
	"github.com/ZebulonRouseFrantzich/cookship/internal/docker"
	"github.com/ZebulonRouseFrantzich/cookship/internal/lock"
	"github.com/ZebulonRouseFrantzich/cookship/internal/orchestrator"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
	"github.com/ZebulonRouseFrantzich/cookship/internal/testutil"
)

func execute(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunWithoutCommand(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, _, stderr := execute(t)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "a command is required") {
		t.Errorf("stderr missing error message:\n%s", stderr)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Errorf("stderr missing usage:\n%s", stderr)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, _, stderr := execute(t, "deploy")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	for _, want := range []string{`unknown command "deploy"`, "Usage:", "command failed"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestRunUnknownFlag(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, _, stderr := execute(t, "build", "--bogus")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	for _, want := range []string{"unknown flag: --bogus", "Usage:", "cookship build", "command failed"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("stderr missing %q:\n%s", want, stderr)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, stdout, _ := execute(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d, want 0", code)
	}
	if !strings.HasPrefix(stdout, "cookship "+Version+"\n") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestTagsCommand(t *testing.T) {
	tests := []struct {
		version string
		want    []string
	}{
		{
			version: "2.5.1",
			want:    []string{"example/cook:2.5.1", "example/cook:2.5", "example/cook:2", "example/cook:latest"},
		},
		{
			version: "2",
			want:    []string{"example/cook:2", "example/cook:latest"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			testutil.SetupTestEnv(t)

			code, stdout, stderr := execute(t, "tags", tt.version, "--image", "example/cook")
			if code != 0 {
				t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
			}
			got := strings.Split(strings.TrimSpace(stdout), "\n")
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("tags = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTagsCommandRejectsTaggedImage(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, _, stderr := execute(t, "tags", "1.0.0", "--image", "example/cook:dev")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "must not carry a tag") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestConfigFileIsApplied(t *testing.T) {
	workDir := testutil.SetupTestEnv(t)

	config := `cookship = { image = "registry.example.com/team/cook" }`
	if err := os.WriteFile(filepath.Join(workDir, "cookship.lua"), []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := execute(t, "tags", "1.2.3")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "registry.example.com/team/cook:1.2.3\n") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestDockerfileCommand(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, stdout, stderr := execute(t, "dockerfile")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	for _, want := range []string{"AS fetcher", "USER 1000:1000", "EXPOSE 9080", "HEALTHCHECK"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("Dockerfile missing %q", want)
		}
	}
}

func TestDockerfileCommandWritesFile(t *testing.T) {
	workDir := testutil.SetupTestEnv(t)

	code, stdout, stderr := execute(t, "dockerfile", "--output", "Dockerfile")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}

	data, err := os.ReadFile(filepath.Join(workDir, "Dockerfile"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "USER 1000:1000") {
		t.Errorf("written Dockerfile is incomplete:\n%s", data)
	}
}

func TestPublishWithoutCredentials(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, stdout, stderr := execute(t, "publish", "--version", "1.0.0", "--image", "registry.example.com/team/cook")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	if !strings.Contains(stderr, "publish: check registry credentials") {
		t.Errorf("stderr missing failed step:\n%s", stderr)
	}
	if !strings.Contains(stderr, "not authenticated to registry") {
		t.Errorf("stderr missing cause:\n%s", stderr)
	}
}

func TestPublishHeldLock(t *testing.T) {
	testutil.SetupTestEnv(t)

	held, err := lock.Acquire(context.Background(), lock.Dir(), lock.Name("example/cook"))
	if err != nil {
		t.Fatal(err)
	}
	defer held.Release()

	code, _, stderr := execute(t, "publish", "--version", "1.0.0", "--image", "example/cook")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, lock.ErrLocked.Error()) {
		t.Errorf("stderr = %q", stderr)
	}
	if strings.Contains(stderr, "check registry credentials") {
		t.Errorf("publish ran while locked:\n%s", stderr)
	}
}

func TestPublishRejectsUnsupportedPlatform(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, _, stderr := execute(t, "publish", "--platform", "linux/386")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, platform.ErrUnsupportedArch.Error()) {
		t.Errorf("stderr = %q", stderr)
	}
}

type recordingDocker struct {
	mu     sync.Mutex
	builds []docker.BuildOptions
}

func (d *recordingDocker) Build(ctx context.Context, opts docker.BuildOptions) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.builds = append(d.builds, opts)
	return nil
}

func (d *recordingDocker) BuilderExists(ctx context.Context, name string) (bool, error) {
	return true, nil
}

func (d *recordingDocker) CreateBuilder(ctx context.Context, name string) error { return nil }

func (d *recordingDocker) Run(ctx context.Context, opts docker.RunOptions) (string, error) {
	return "container", nil
}

func (d *recordingDocker) Logs(ctx context.Context, containerID string) (string, error) {
	return "", nil
}

func (d *recordingDocker) Stop(ctx context.Context, containerID string) error   { return nil }
func (d *recordingDocker) Remove(ctx context.Context, containerID string) error { return nil }

func TestBuildCommand(t *testing.T) {
	testutil.SetupTestEnv(t)

	fake := &recordingDocker{}
	var out, errOut bytes.Buffer
	a := &app{
		stdout: &out,
		stderr: &errOut,
		deps: func() orchestrator.Deps {
			return orchestrator.Deps{
				Docker:   fake,
				Detector: platform.StaticDetector{Info: &platform.Info{OS: "linux", Arch: platform.ArchARM64}},
			}
		},
	}

	root := newRootCmd(a)
	root.SetArgs([]string{"build", "--version", "0.18.1", "--image", "example/cook"})
	root.SetOut(&out)
	root.SetErr(&errOut)
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("build failed: %v\n%s", err, errOut.String())
	}

	if len(fake.builds) != 1 {
		t.Fatalf("builds = %d, want 1", len(fake.builds))
	}
	got := fake.builds[0]
	if strings.Join(got.Tags, " ") != "example/cook:0.18.1 example/cook:latest" {
		t.Errorf("tags = %v", got.Tags)
	}
	if strings.Join(got.Platforms, ",") != "linux/arm64" {
		t.Errorf("platforms = %v", got.Platforms)
	}
	if got.BuildArgs["VERSION"] != "0.18.1" {
		t.Errorf("VERSION build arg = %q", got.BuildArgs["VERSION"])
	}
	if !got.Load || got.Push {
		t.Errorf("load = %v, push = %v; want a local load", got.Load, got.Push)
	}
	if out.String() != "example/cook:0.18.1\nexample/cook:latest\n" {
		t.Errorf("stdout = %q", out.String())
	}
}

// cookArchive returns a release archive holding a cook script that
// reports version.
func cookArchive(t *testing.T, version string) []byte {
	t.Helper()

	script := "#!/bin/sh\necho \"cook " + version + "\"\n"

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	if err := tw.WriteHeader(&tar.Header{
		Name:     "cook",
		Mode:     0o755,
		Size:     int64(len(script)),
		Typeflag: tar.TypeReg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(script)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchCommand(t *testing.T) {
	workDir := testutil.SetupTestEnv(t)

	archive := cookArchive(t, "0.18.1")
	var (
		mu        sync.Mutex
		requested []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requested = append(requested, r.URL.Path)
		mu.Unlock()
		w.Write(archive)
	}))
	defer srv.Close()

	wantURL, err := binary.ArtifactURL(srv.URL, "0.18.1", platform.ArchAMD64)
	if err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(workDir, "out", "cook")
	code, stdout, stderr := execute(t, "fetch",
		"--version", "0.18.1",
		"--arch", "x86_64",
		"--out", dest,
		"--base-url", srv.URL)
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(requested) != 1 || srv.URL+requested[0] != wantURL {
		t.Errorf("requested %v, want one request for %s", requested, wantURL)
	}
	if !strings.Contains(stdout, "cook 0.18.1") {
		t.Errorf("stdout = %q", stdout)
	}

	info, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("executable not installed: %v", err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("mode = %v, want executable", info.Mode())
	}
}

func TestFetchCommandUnsupportedArch(t *testing.T) {
	workDir := testutil.SetupTestEnv(t)

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer srv.Close()

	code, _, stderr := execute(t, "fetch",
		"--version", "0.18.1",
		"--arch", "riscv64",
		"--out", filepath.Join(workDir, "cook"),
		"--base-url", srv.URL)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if n := requests.Load(); n != 0 {
		t.Errorf("requests = %d, want none", n)
	}
	if !strings.Contains(stderr, "unsupported architecture") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestFetchCommandRequiresOut(t *testing.T) {
	testutil.SetupTestEnv(t)

	code, _, stderr := execute(t, "fetch", "--version", "0.18.1", "--arch", "amd64")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, `"out" not set`) {
		t.Errorf("stderr = %q", stderr)
	}
}
