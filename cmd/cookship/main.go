package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZebulonRouseFrantzich/cookship/internal/config"
	"github.com/ZebulonRouseFrantzich/cookship/internal/docker"
	"github.com/ZebulonRouseFrantzich/cookship/internal/git"
	"github.com/ZebulonRouseFrantzich/cookship/internal/image"
	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
	"github.com/ZebulonRouseFrantzich/cookship/internal/orchestrator"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
	"github.com/ZebulonRouseFrantzich/cookship/internal/probe"
	"github.com/ZebulonRouseFrantzich/cookship/internal/registry"
	"github.com/ZebulonRouseFrantzich/cookship/internal/release"
)

// Version will be set at build time via -ldflags
var Version = "dev"

// errNoCommand is returned when cookship is run without a subcommand.
var errNoCommand = errors.New("a command is required: build, test or publish")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	// Replaced once flags are parsed; covers failures before that.
	a := &app{stdout: stdout, stderr: stderr, logger: logging.New(logging.Options{Out: stderr})}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		a.fail(err)
		return 1
	}
	return 0
}

// app carries global flags and the state PersistentPreRunE prepares.
type app struct {
	configPath string
	image      string
	verbose    bool
	noColor    bool

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger logging.Logger

	// deps builds the orchestrator collaborators; tests replace it.
	deps func() orchestrator.Deps
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "cookship",
		Short: "Build, test and publish the CookCLI container image",
		Long: `cookship packages the upstream CookCLI "cook" binary into a container
image that serves a recipe directory on port 9080.

  cookship build     build a host-architecture image into the local daemon
  cookship test      build, run and probe the image with sample recipes
  cookship publish   build and push a multi-architecture image`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				pterm.DisableColor()
			}
			a.logger = logging.New(logging.Options{
				Out:     a.stderr,
				Verbose: a.verbose,
				NoColor: a.noColor,
			})

			// version and dockerfile work without any configuration
			if cmd.Name() == "version" || cmd.Name() == "dockerfile" || cmd == cmd.Root() {
				return nil
			}
			return a.loadConfig(cmd.Context())
		},
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(a.stderr, cmd.UsageString())
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return errNoCommand
		},
	}

	addGlobalFlags(root.PersistentFlags(), a)
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		fmt.Fprint(a.stderr, cmd.UsageString())
		return err
	})

	root.AddCommand(
		newBuildCmd(a),
		newTestCmd(a),
		newPublishCmd(a),
		newFetchCmd(a),
		newDockerfileCmd(a),
		newTagsCmd(a),
		newVersionCmd(a),
	)
	return root
}

func addGlobalFlags(flags *pflag.FlagSet, a *app) {
	flags.StringVarP(&a.configPath, "config", "c", "", "Path to a cookship.lua config file")
	flags.StringVar(&a.image, "image", "", "Image repository to build and publish, without a tag")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
}

// loadConfig resolves defaults, the config file, environment and flags,
// in increasing precedence.
func (a *app) loadConfig(ctx context.Context) error {
	cfg, path, err := config.Load(ctx, config.LoadOptions{
		Path:     a.configPath,
		Detector: platform.NewDetector(),
	})
	if err != nil {
		return err
	}

	if a.image != "" {
		cfg.Image = a.image
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}

	if path != "" {
		a.logger.Debug("loaded config", "path", path)
	}
	a.cfg = cfg
	return nil
}

// orchestrator builds an Orchestrator over the configured collaborators.
func (a *app) orchestrator() *orchestrator.Orchestrator {
	deps := a.defaultDeps
	if a.deps != nil {
		deps = a.deps
	}
	return orchestrator.New(a.cfg, image.DefaultSpec(), deps())
}

func (a *app) defaultDeps() orchestrator.Deps {
	return orchestrator.Deps{
		Docker:   docker.NewClient(a.stderr, a.logger),
		Registry: registry.New(registry.Options{}, a.logger),
		Resolver: a.resolver(),
		Detector: platform.NewDetector(),
		Git:      git.NewClient(a.cfg.Context),
		Clock:    probe.RealClock{},
		Logger:   a.logger,
	}
}

func (a *app) resolver() *release.Resolver {
	return release.NewResolver(release.NewGitHubSource("", a.cfg.GitHubToken), a.logger)
}

// fail reports err on stderr. Step failures were already logged by the
// pipeline; anything else is logged here first.
func (a *app) fail(err error) {
	var stepErr *orchestrator.StepError
	if a.logger != nil && !errors.As(err, &stepErr) {
		a.logger.Error("command failed", "error", err)
	}

	var parseErr *config.ParseError
	if errors.As(err, &parseErr) {
		fmt.Fprintf(a.stderr, "Error: %s\n", config.FormatError(err, a.verbose))
		return
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
}
