package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/cookship/internal/docker"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
	"github.com/ZebulonRouseFrantzich/cookship/internal/probe"
	"github.com/ZebulonRouseFrantzich/cookship/internal/release"
)

// BuildResult describes a locally built image.
type BuildResult struct {
	Version string
	Arch    platform.Arch
	Tags    []string
}

// Build builds a single-architecture image for the host and loads it into
// the local daemon, tagged with the configured version and "latest".
func (o *Orchestrator) Build(ctx context.Context) (*BuildResult, error) {
	st := &buildState{version: o.requestedVersion()}
	defer st.close()

	st.tags = o.refs(dedupe([]string{st.version, release.LatestTag}))

	p := NewPipeline(ModeBuild, o.log).
		Add("detect host architecture", o.detectArch(st)).
		Add("render Dockerfile", o.renderDockerfile(st)).
		Add("collect build metadata", o.collectMetadata(st)).
		Add("build image", o.loadImage(st))

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return &BuildResult{Version: st.version, Arch: st.arch, Tags: st.tags}, nil
}

// loadImage runs a single-platform buildx build into the local daemon.
func (o *Orchestrator) loadImage(st *buildState) func(context.Context) error {
	return func(ctx context.Context) error {
		return o.deps.Docker.Build(ctx, docker.BuildOptions{
			ContextDir: o.cfg.Context,
			Dockerfile: st.dockerfile,
			Platforms:  []string{st.arch.Platform()},
			Tags:       st.tags,
			BuildArgs:  st.buildArgs,
			Load:       true,
		})
	}
}

// TestResult describes a passed smoke test.
type TestResult struct {
	Image     string
	Container string
	Attempts  int
}

// Test builds the image tagged "test", runs it against the sample recipe
// directory and polls the server until it answers. The container is
// stopped and removed whether or not the probe succeeds; on failure its
// logs are reported first.
func (o *Orchestrator) Test(ctx context.Context) (*TestResult, error) {
	st := &buildState{version: o.requestedVersion()}
	defer st.close()
	st.tags = []string{o.cfg.Ref(testTag)}

	result := &TestResult{
		Image:     st.tags[0],
		Container: "cookship-test-" + uuid.NewString()[:8],
	}

	var sampleDir, containerID string
	defer func() {
		if containerID != "" {
			o.teardown(context.WithoutCancel(ctx), containerID)
		}
	}()

	p := NewPipeline(ModeTest, o.log).
		Add("detect host architecture", o.detectArch(st)).
		Add("render Dockerfile", o.renderDockerfile(st)).
		Add("collect build metadata", o.collectMetadata(st)).
		Add("build test image", o.loadImage(st)).
		Add("prepare sample recipes", func(ctx context.Context) error {
			dir, err := prepareSampleDir(o.cfg.Test.SampleDir)
			sampleDir = dir
			return err
		}).
		Add("start container", func(ctx context.Context) error {
			id, err := o.deps.Docker.Run(ctx, docker.RunOptions{
				Image:         result.Image,
				Name:          result.Container,
				HostPort:      o.cfg.Test.Port,
				ContainerPort: o.spec.Port,
				Memory:        testMemory,
				CPUs:          testCPUs,
				Mounts:        []docker.Mount{{Source: sampleDir, Target: o.spec.Workdir}},
			})
			containerID = id
			return err
		}).
		Add("probe server", func(ctx context.Context) error {
			attempts, err := o.probe(ctx)
			result.Attempts = attempts
			if err != nil {
				o.dumpLogs(context.WithoutCancel(ctx), containerID)
			}
			return err
		})

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// probe polls the published port until the server answers.
func (o *Orchestrator) probe(ctx context.Context) (int, error) {
	url := fmt.Sprintf("http://localhost:%d/", o.cfg.Test.Port)
	poller := probe.NewPoller(probe.Policy{
		MaxAttempts: o.cfg.Test.Attempts,
		Delay:       o.cfg.Test.Delay,
	}, o.deps.Clock, o.log)

	attempts, err := poller.Poll(ctx, probe.HTTPCheck(o.deps.HTTPClient, url))
	if err != nil {
		return attempts, err
	}
	o.log.Info("server is healthy", "url", url, "attempts", attempts)
	return attempts, nil
}

// dumpLogs reports container output for diagnosis.
func (o *Orchestrator) dumpLogs(ctx context.Context, containerID string) {
	logs, err := o.deps.Docker.Logs(ctx, containerID)
	if err != nil {
		o.log.Warn("could not read container logs", "container", containerID, "error", err)
		return
	}
	o.log.Error("container logs", "container", containerID, "output", strings.TrimSpace(logs))
}

// teardown stops and removes a container, logging failures.
func (o *Orchestrator) teardown(ctx context.Context, containerID string) {
	if err := o.deps.Docker.Stop(ctx, containerID); err != nil {
		o.log.Warn("stop container failed", "container", containerID, "error", err)
	}
	if err := o.deps.Docker.Remove(ctx, containerID); err != nil {
		o.log.Warn("remove container failed", "container", containerID, "error", err)
		return
	}
	o.log.Debug("container removed", "container", containerID)
}

// dedupe drops repeated values, keeping first occurrences.
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
