// Package orchestrator drives the build, test and publish release modes.
//
// Each mode is a Pipeline of named steps run against injected
// collaborators (docker, registry, release resolver, host detector), so
// the ordering guarantees can be tested without a daemon or network:
// publish checks registry credentials before anything is built, and the
// version is resolved once per invocation and reused for every tag.
package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/cookship/internal/config"
	"github.com/ZebulonRouseFrantzich/cookship/internal/docker"
	"github.com/ZebulonRouseFrantzich/cookship/internal/git"
	"github.com/ZebulonRouseFrantzich/cookship/internal/image"
	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
	"github.com/ZebulonRouseFrantzich/cookship/internal/probe"
	"github.com/ZebulonRouseFrantzich/cookship/internal/registry"
	"github.com/ZebulonRouseFrantzich/cookship/internal/release"
)

// Mode names, also used as CLI subcommands.
const (
	ModeBuild   = "build"
	ModeTest    = "test"
	ModePublish = "publish"
)

// Smoke-test resource limits.
const (
	testMemory = "512m"
	testCPUs   = "1"
	testTag    = "test"
)

// VersionResolver turns a requested version into a concrete one.
type VersionResolver interface {
	Resolve(ctx context.Context, requested string) (release.Version, error)
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Docker   docker.Docker
	Registry registry.Registry
	Resolver VersionResolver
	Detector platform.Detector
	Git      git.Git
	Clock    probe.Clock
	// HTTPClient is used by the liveness probe; nil uses a default.
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Orchestrator runs release modes for one configuration.
type Orchestrator struct {
	cfg  *config.Config
	spec image.Spec
	deps Deps
	log  logging.Logger
}

// New creates an orchestrator. cfg is used as given; callers validate it.
func New(cfg *config.Config, spec image.Spec, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = probe.RealClock{}
	}
	if deps.Detector == nil {
		deps.Detector = platform.NewDetector()
	}
	if deps.Git == nil {
		deps.Git = git.NewClient(cfg.Context)
	}
	return &Orchestrator{
		cfg:  cfg,
		spec: spec,
		deps: deps,
		log:  logging.OrNop(deps.Logger),
	}
}

// buildState is shared between the steps of one invocation.
type buildState struct {
	arch       platform.Arch
	version    string
	tags       []string
	dockerfile string
	buildArgs  map[string]string
	cleanup    []func()
}

func (s *buildState) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

// detectArch resolves the host architecture; unsupported hosts are fatal.
func (o *Orchestrator) detectArch(st *buildState) func(context.Context) error {
	return func(ctx context.Context) error {
		info, err := o.deps.Detector.Detect(ctx)
		if err != nil {
			return err
		}
		arch, err := platform.ParseArch(info.Arch.String())
		if err != nil {
			return err
		}
		st.arch = arch
		o.log.Info("host architecture", "arch", arch, "reported", info.ArchRaw, "platform", arch.Platform())
		return nil
	}
}

// renderDockerfile writes the Dockerfile to a scratch directory removed
// when the invocation ends.
func (o *Orchestrator) renderDockerfile(st *buildState) func(context.Context) error {
	return func(ctx context.Context) error {
		dir, err := os.MkdirTemp("", "cookship-dockerfile-*")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		st.cleanup = append(st.cleanup, func() { os.RemoveAll(dir) })

		path := filepath.Join(dir, "Dockerfile")
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create Dockerfile: %w", err)
		}
		if err := o.spec.Render(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("close Dockerfile: %w", err)
		}

		st.dockerfile = path
		o.log.Debug("rendered Dockerfile", "path", path)
		return nil
	}
}

// collectMetadata fills the VERSION, REVISION and CREATED build arguments.
func (o *Orchestrator) collectMetadata(st *buildState) func(context.Context) error {
	return func(ctx context.Context) error {
		revision := git.Revision(ctx, o.deps.Git)
		st.buildArgs = map[string]string{
			image.ArgVersion:  st.version,
			image.ArgRevision: revision,
			image.ArgCreated:  o.deps.Clock.Now().UTC().Format(time.RFC3339),
		}
		o.log.Debug("build metadata", "version", st.version, "revision", revision)
		return nil
	}
}

// requestedVersion is the configured version, "latest" when unset.
func (o *Orchestrator) requestedVersion() string {
	if release.IsLatest(o.cfg.Version) {
		return release.LatestTag
	}
	return o.cfg.Version
}

// refs prefixes tags with the configured image.
func (o *Orchestrator) refs(tags []string) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = o.cfg.Ref(t)
	}
	return out
}
