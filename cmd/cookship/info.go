package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/cookship/internal/image"
	"github.com/ZebulonRouseFrantzich/cookship/internal/release"
)

func newDockerfileCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "dockerfile",
		Short: "Print the Dockerfile used to assemble the image",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := image.DefaultSpec()
			if output == "" || output == "-" {
				return spec.Render(a.stdout)
			}

			var buf bytes.Buffer
			if err := spec.Render(&buf); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			a.logger.Info("wrote Dockerfile", "path", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags <version>",
		Short: "Print the image references published for a version",
		Example: `  cookship tags 0.18.1
  cookship tags latest`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.resolver().Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, tag := range v.TagSet() {
				fmt.Fprintln(a.stdout, a.cfg.Ref(tag))
			}
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the cookship version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "cookship %s\n", Version)
			fmt.Fprintf(a.stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "Default upstream: %s\n", release.DefaultLatestURL)
		},
	}
}
