package binary

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/inhies/go-bytesize"

	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

// Options configures a Fetcher.
type Options struct {
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// ChecksumFile is the name of a checksum file published next to the
	// archives, e.g. "SHA256SUMS". Empty disables checksum verification.
	ChecksumFile string
	// KeyringPath is an OpenPGP public keyring used to check "<archive>.sig".
	// Empty disables signature verification.
	KeyringPath string
	// ScratchDir is the parent for per-fetch scratch directories
	// (os.TempDir when empty).
	ScratchDir string
}

// Fetcher orchestrates download, verification and extraction of one artifact.
type Fetcher struct {
	opts       Options
	downloader *Downloader
	verifier   *Verifier
	extractor  *Extractor
	logger     logging.Logger
}

// NewFetcher creates a new fetcher
func NewFetcher(opts Options, logger logging.Logger) *Fetcher {
	return &Fetcher{
		opts:       opts,
		downloader: NewDownloader(),
		verifier:   NewVerifier(opts.KeyringPath),
		extractor:  NewExtractor(),
		logger:     logging.OrNop(logger),
	}
}

// Fetch downloads, verifies and installs the executable for opts.Version
// and opts.Arch at opts.Dest. The scratch directory is removed whether or
// not the fetch succeeds.
func (f *Fetcher) Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error) {
	startTime := time.Now()

	// Resolve the architecture before touching the network
	arch, err := platform.ParseArch(opts.Arch)
	if err != nil {
		return nil, err
	}

	if opts.Dest == "" {
		return nil, fmt.Errorf("destination path is required")
	}

	info, err := constructDownloadInfo(f.opts.BaseURL, opts.Version, arch, f.opts.ChecksumFile, f.verifier.SignatureEnabled())
	if err != nil {
		return nil, fmt.Errorf("construct download info: %w", err)
	}

	scratch, err := os.MkdirTemp(f.opts.ScratchDir, "cookship-fetch-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	archiveName := path.Base(info.URL)
	archivePath := filepath.Join(scratch, archiveName)

	f.logger.Info("downloading artifact", "url", info.URL, "arch", arch)
	size, err := f.downloader.DownloadToFile(ctx, info.URL, archivePath)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("artifact downloaded", "size", bytesize.New(float64(size)).String())

	result := &FetchResult{
		Version:     info.Version,
		Arch:        arch,
		URL:         info.URL,
		Path:        opts.Dest,
		ArchiveSize: size,
	}

	if info.ChecksumURL != "" {
		checksumPath := filepath.Join(scratch, path.Base(info.ChecksumURL))
		if _, err := f.downloader.DownloadToFile(ctx, info.ChecksumURL, checksumPath); err != nil {
			return nil, fmt.Errorf("download checksums: %w", err)
		}
		if err := f.verifier.verifySHA256(archivePath, checksumPath, archiveName); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerification, err)
		}
		result.Verified = append(result.Verified, VerificationSHA256)
	}

	if info.SignatureURL != "" {
		sigPath := filepath.Join(scratch, path.Base(info.SignatureURL))
		if _, err := f.downloader.DownloadToFile(ctx, info.SignatureURL, sigPath); err != nil {
			return nil, fmt.Errorf("download signature: %w", err)
		}
		if err := f.verifier.verifyGPG(archivePath, sigPath); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerification, err)
		}
		result.Verified = append(result.Verified, VerificationGPG)
	}

	exePath := filepath.Join(scratch, "bin", BinaryName)
	if err := f.extractor.ExtractBinary(archivePath, exePath, BinaryName); err != nil {
		return nil, fmt.Errorf("extract binary: %w", err)
	}

	// Ensure it's executable (should already be set by extractor)
	if err := SetExecutable(exePath); err != nil {
		return nil, err
	}

	reported, err := f.verifier.SelfCheck(ctx, exePath)
	if err != nil {
		return nil, err
	}
	result.Reported = reported
	result.Verified = append(result.Verified, VerificationSelfCheck)

	if err := copyFile(exePath, opts.Dest); err != nil {
		return nil, fmt.Errorf("install binary: %w", err)
	}

	result.Duration = time.Since(startTime)
	f.logger.Info("artifact verified",
		"reported", reported,
		"dest", opts.Dest,
		"size", bytesize.New(float64(size)).String(),
		"duration", result.Duration.Round(time.Millisecond).String())

	return result, nil
}
