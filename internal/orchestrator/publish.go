package orchestrator

import (
	"context"
	"fmt"

	"github.com/ZebulonRouseFrantzich/cookship/internal/docker"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
	"github.com/ZebulonRouseFrantzich/cookship/internal/release"
)

// PublishResult describes a pushed multi-architecture image.
type PublishResult struct {
	Version   release.Version
	Tags      []string
	Platforms []platform.Arch
	Digest    string
}

// Publish builds every configured platform in one buildx invocation and
// pushes the full tag set. Registry credentials are checked before
// anything else, and the version is resolved exactly once.
func (o *Orchestrator) Publish(ctx context.Context) (*PublishResult, error) {
	st := &buildState{}
	defer st.close()

	result := &PublishResult{Platforms: o.cfg.Publish.Platforms}

	p := NewPipeline(ModePublish, o.log).
		Add("check registry credentials", func(ctx context.Context) error {
			return o.deps.Registry.CheckAuth(ctx, o.cfg.Image, o.cfg.Publish.VerifyAuth)
		}).
		Add("resolve version", func(ctx context.Context) error {
			v, err := o.deps.Resolver.Resolve(ctx, o.cfg.Version)
			if err != nil {
				return err
			}
			result.Version = v
			st.version = v.String()
			return nil
		}).
		Add("derive tags", func(ctx context.Context) error {
			result.Tags = result.Version.TagSet()
			st.tags = o.refs(result.Tags)
			o.log.Info("publishing tags", "tags", result.Tags)
			return nil
		}).
		Add("ensure builder", o.ensureBuilder).
		Add("render Dockerfile", o.renderDockerfile(st)).
		Add("collect build metadata", o.collectMetadata(st)).
		Add("build and push", func(ctx context.Context) error {
			platforms := make([]string, len(o.cfg.Publish.Platforms))
			for i, arch := range o.cfg.Publish.Platforms {
				platforms[i] = arch.Platform()
			}
			return o.deps.Docker.Build(ctx, docker.BuildOptions{
				ContextDir: o.cfg.Context,
				Dockerfile: st.dockerfile,
				Builder:    o.cfg.Builder,
				Platforms:  platforms,
				Tags:       st.tags,
				BuildArgs:  st.buildArgs,
				Push:       true,
			})
		}).
		Add("verify published tags", func(ctx context.Context) error {
			digest, err := o.deps.Registry.VerifyTags(ctx, o.cfg.Image, result.Tags)
			if err != nil {
				return err
			}
			result.Digest = digest
			return nil
		})

	if err := p.Run(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// ensureBuilder creates the multi-platform builder unless it exists.
func (o *Orchestrator) ensureBuilder(ctx context.Context) error {
	exists, err := o.deps.Docker.BuilderExists(ctx, o.cfg.Builder)
	if err != nil {
		return fmt.Errorf("inspect builder %s: %w", o.cfg.Builder, err)
	}
	if exists {
		o.log.Debug("builder exists", "builder", o.cfg.Builder)
		return nil
	}

	o.log.Info("creating builder", "builder", o.cfg.Builder)
	if err := o.deps.Docker.CreateBuilder(ctx, o.cfg.Builder); err != nil {
		return fmt.Errorf("create builder %s: %w", o.cfg.Builder, err)
	}
	return nil
}
