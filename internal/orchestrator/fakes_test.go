package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/cookship/internal/config"
	"github.com/ZebulonRouseFrantzich/cookship/internal/docker"
	"github.com/ZebulonRouseFrantzich/cookship/internal/image"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
	"github.com/ZebulonRouseFrantzich/cookship/internal/probe"
	"github.com/ZebulonRouseFrantzich/cookship/internal/release"
)

// events records collaborator calls across fakes, in order.
type events struct {
	calls []string
}

func (e *events) add(call string) {
	e.calls = append(e.calls, call)
}

func (e *events) String() string {
	return strings.Join(e.calls, ", ")
}

// fakeDocker implements docker.Docker.
type fakeDocker struct {
	ev            *events
	builds        []docker.BuildOptions
	runs          []docker.RunOptions
	builderExists bool
	buildErr      error
	runErr        error
	// dockerfiles holds each rendered Dockerfile, read during Build.
	dockerfiles []string
}

func (d *fakeDocker) Build(ctx context.Context, opts docker.BuildOptions) error {
	d.ev.add("docker.build")
	d.builds = append(d.builds, opts)
	if data, err := readFile(opts.Dockerfile); err == nil {
		d.dockerfiles = append(d.dockerfiles, data)
	}
	return d.buildErr
}

func (d *fakeDocker) BuilderExists(ctx context.Context, name string) (bool, error) {
	d.ev.add("docker.builder-exists " + name)
	return d.builderExists, nil
}

func (d *fakeDocker) CreateBuilder(ctx context.Context, name string) error {
	d.ev.add("docker.create-builder " + name)
	return nil
}

func (d *fakeDocker) Run(ctx context.Context, opts docker.RunOptions) (string, error) {
	d.ev.add("docker.run")
	d.runs = append(d.runs, opts)
	if d.runErr != nil {
		return "", d.runErr
	}
	return "c0ffee", nil
}

func (d *fakeDocker) Logs(ctx context.Context, id string) (string, error) {
	d.ev.add("docker.logs " + id)
	return "listening on 0.0.0.0:9080\n", nil
}

func (d *fakeDocker) Stop(ctx context.Context, id string) error {
	d.ev.add("docker.stop " + id)
	return nil
}

func (d *fakeDocker) Remove(ctx context.Context, id string) error {
	d.ev.add("docker.rm " + id)
	return nil
}

// fakeRegistry implements registry.Registry.
type fakeRegistry struct {
	ev        *events
	authErr   error
	verifyErr error
	liveAuth  bool
	verified  []string
}

func (r *fakeRegistry) CheckAuth(ctx context.Context, image string, live bool) error {
	r.ev.add("registry.auth")
	r.liveAuth = live
	return r.authErr
}

func (r *fakeRegistry) VerifyTags(ctx context.Context, image string, tags []string) (string, error) {
	r.ev.add("registry.verify")
	r.verified = tags
	if r.verifyErr != nil {
		return "", r.verifyErr
	}
	return "sha256:abc", nil
}

// fakeResolver counts resolutions.
type fakeResolver struct {
	ev      *events
	version release.Version
	err     error
	calls   int
}

func (r *fakeResolver) Resolve(ctx context.Context, requested string) (release.Version, error) {
	r.ev.add("resolve " + requested)
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	if !release.IsLatest(requested) {
		return release.Version(requested), nil
	}
	return r.version, nil
}

// fakeGit reports a fixed HEAD.
type fakeGit struct {
	head string
}

func (g fakeGit) GetHeadCommit(ctx context.Context) (string, error) {
	if g.head == "" {
		return "", errors.New("not a git repository")
	}
	return g.head, nil
}

// statusTransport answers probe requests with scripted status codes; the
// last status repeats.
type statusTransport struct {
	ev       *events
	statuses []int
	requests int
}

func (s *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.ev.add("probe " + req.URL.String())
	idx := s.requests
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	s.requests++
	return &http.Response{
		StatusCode: s.statuses[idx],
		Body:       io.NopCloser(strings.NewReader("")),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// harness wires an Orchestrator to fakes.
type harness struct {
	ev        *events
	docker    *fakeDocker
	registry  *fakeRegistry
	resolver  *fakeResolver
	transport *statusTransport
	clock     *probe.TestClock
	cfg       *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ev := &events{}
	cfg := config.Default()
	cfg.Test.SampleDir = t.TempDir()
	cfg.Context = t.TempDir()

	return &harness{
		ev:        ev,
		docker:    &fakeDocker{ev: ev},
		registry:  &fakeRegistry{ev: ev},
		resolver:  &fakeResolver{ev: ev, version: "2.5.1"},
		transport: &statusTransport{ev: ev, statuses: []int{http.StatusOK}},
		clock:     &probe.TestClock{FixedTime: fixedNow},
		cfg:       cfg,
	}
}

func (h *harness) orchestrator(arch platform.Arch) *Orchestrator {
	return New(h.cfg, image.DefaultSpec(), Deps{
		Docker:     h.docker,
		Registry:   h.registry,
		Resolver:   h.resolver,
		Detector:   platform.StaticDetector{Info: &platform.Info{OS: "linux", Arch: arch, ArchRaw: arch.String()}},
		Git:        fakeGit{head: "abc123"},
		Clock:      h.clock,
		HTTPClient: &http.Client{Transport: h.transport},
	})
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}
