package main

import (
	"fmt"
	"strings"

	"github.com/inhies/go-bytesize"
	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/cookship/internal/binary"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		version      string
		arch         string
		out          string
		baseURL      string
		checksumFile string
		keyring      string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download and verify the cook executable for one architecture",
		Long: `Download the upstream release archive for one architecture, verify it,
extract the cook executable and check that it runs. The image build runs
this inside its fetch stage; it is also useful on its own.`,
		Example: `  cookship fetch --version 0.18.1 --arch arm64 --out ./cook`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if version == "" {
				version = a.cfg.Version
			}
			resolved, err := a.resolver().Resolve(ctx, version)
			if err != nil {
				return fmt.Errorf("resolve version: %w", err)
			}

			if arch == "" {
				info, err := platform.NewDetector().Detect(ctx)
				if err != nil {
					return err
				}
				arch = info.Arch.String()
			}

			opts := binary.Options{
				BaseURL:      a.cfg.Release.BaseURL,
				ChecksumFile: a.cfg.Release.ChecksumFile,
				KeyringPath:  a.cfg.Release.KeyringPath,
			}
			if baseURL != "" {
				opts.BaseURL = baseURL
			}
			if checksumFile != "" {
				opts.ChecksumFile = checksumFile
			}
			if keyring != "" {
				opts.KeyringPath = keyring
			}

			result, err := binary.NewFetcher(opts, a.logger).Fetch(ctx, binary.FetchOptions{
				Version: resolved.String(),
				Arch:    arch,
				Dest:    out,
			})
			if err != nil {
				return err
			}

			methods := make([]string, len(result.Verified))
			for i, m := range result.Verified {
				methods[i] = m.String()
			}
			fmt.Fprintf(a.stdout, "%s\t%s\t%s\t%s\n",
				result.Path, result.Reported,
				bytesize.New(float64(result.ArchiveSize)).String(),
				strings.Join(methods, ","))
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", `Upstream CookCLI version, or "latest"`)
	cmd.Flags().StringVar(&arch, "arch", "", "Target architecture (amd64, arm64); defaults to the host")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Destination path of the cook executable")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Release download base URL")
	cmd.Flags().StringVar(&checksumFile, "checksum-file", "", "Checksum file published next to the archives")
	cmd.Flags().StringVar(&keyring, "keyring", "", "OpenPGP public keyring for detached signatures")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
