package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/cookship/internal/lock"
	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

func newBuildCmd(a *app) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the image for the host architecture",
		Long: `Build a single-architecture image for the host and load it into the
local Docker daemon, tagged with the requested version and "latest".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version != "" {
				a.cfg.Version = version
			}

			result, err := a.orchestrator().Build(cmd.Context())
			if err != nil {
				return err
			}

			for _, tag := range result.Tags {
				fmt.Fprintln(a.stdout, tag)
			}
			logging.Success("Built %s image for %s", result.Version, result.Arch.Platform())
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", `Upstream CookCLI version, or "latest"`)
	return cmd
}

func newTestCmd(a *app) *cobra.Command {
	var (
		version   string
		sampleDir string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "test",
		Short: "Build the image and smoke test it with sample recipes",
		Long: `Build the image tagged "test", run it with the sample recipe directory
mounted and poll the server until it answers. The container is always
stopped and removed afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version != "" {
				a.cfg.Version = version
			}
			if sampleDir != "" {
				a.cfg.Test.SampleDir = sampleDir
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Test.Port = port
				if err := a.cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}

			result, err := a.orchestrator().Test(cmd.Context())
			if err != nil {
				return err
			}

			logging.Success("%s answered after %d attempt(s)", result.Image, result.Attempts)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", `Upstream CookCLI version, or "latest"`)
	cmd.Flags().StringVar(&sampleDir, "sample-dir", "", "Recipe directory mounted into the test container")
	cmd.Flags().IntVar(&port, "port", 0, "Host port the test container is published on")
	return cmd
}

func newPublishCmd(a *app) *cobra.Command {
	var (
		version    string
		builder    string
		platforms  []string
		verifyAuth bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build and push the multi-architecture image",
		Long: `Check registry credentials, resolve the version once, then build every
platform in a single buildx invocation and push the exact, minor, major
and "latest" tags.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if version != "" {
				a.cfg.Version = version
			}
			if builder != "" {
				a.cfg.Builder = builder
			}
			if verifyAuth {
				a.cfg.Publish.VerifyAuth = true
			}
			if len(platforms) > 0 {
				arches, err := parseArches(platforms)
				if err != nil {
					return err
				}
				a.cfg.Publish.Platforms = arches
				if err := a.cfg.Validate(); err != nil {
					return fmt.Errorf("invalid configuration: %w", err)
				}
			}

			lk, err := lock.Acquire(cmd.Context(), lock.Dir(), lock.Name(a.cfg.Image))
			if err != nil {
				return err
			}
			defer lk.Release()
			a.logger.Debug("acquired publish lock", "path", lk.Path())

			result, err := a.orchestrator().Publish(cmd.Context())
			if err != nil {
				return err
			}

			for _, tag := range result.Tags {
				fmt.Fprintln(a.stdout, a.cfg.Ref(tag))
			}
			logging.Success("Published %s for %s (%s)",
				result.Version, platform.JoinPlatforms(result.Platforms), result.Digest)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", `Upstream CookCLI version, or "latest"`)
	cmd.Flags().StringVar(&builder, "builder", "", "Buildx builder used for the multi-platform build")
	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "Target architectures (amd64, arm64)")
	cmd.Flags().BoolVar(&verifyAuth, "verify-auth", false, "Check push permission against the registry before building")
	return cmd
}

// parseArches converts --platform values to architectures.
func parseArches(values []string) ([]platform.Arch, error) {
	arches := make([]platform.Arch, 0, len(values))
	for _, v := range values {
		arch, err := platform.ParseArch(v)
		if err != nil {
			return nil, err
		}
		arches = append(arches, arch)
	}
	return arches, nil
}
