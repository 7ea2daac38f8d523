package binary

import (
	"errors"
	"time"

	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

// BinaryName is the canonical name of the packaged executable.
const BinaryName = "cook"

var (
	// ErrDownload marks a failed or rejected artifact download.
	ErrDownload = errors.New("download failed")
	// ErrVerification marks an artifact that failed integrity or self checks.
	ErrVerification = errors.New("artifact verification failed")
)

// VerificationMethod indicates how an artifact was verified
type VerificationMethod int

const (
	// VerificationGPG indicates OpenPGP signature verification
	VerificationGPG VerificationMethod = iota + 1
	// VerificationSHA256 indicates SHA256 checksum verification
	VerificationSHA256
	// VerificationSelfCheck indicates the executable reported its version
	VerificationSelfCheck
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationSHA256:
		return "SHA256"
	case VerificationSelfCheck:
		return "SelfCheck"
	default:
		return "Unknown"
	}
}

// DownloadInfo contains the URLs for one (version, arch) artifact.
type DownloadInfo struct {
	Version      string
	Arch         platform.Arch
	URL          string // archive URL
	ChecksumURL  string // checksum file URL (may be empty)
	SignatureURL string // detached signature URL (may be empty)
}

// FetchOptions selects the artifact to fetch and where to put it.
type FetchOptions struct {
	Version string
	// Arch is parsed with platform.ParseArch before any network access.
	Arch string
	// Dest is the final path of the verified executable.
	Dest string
}

// FetchResult describes a completed fetch.
type FetchResult struct {
	Version     string
	Arch        platform.Arch
	URL         string
	Path        string
	ArchiveSize int64
	// Reported is the first line the executable printed for --version.
	Reported string
	Verified []VerificationMethod
	Duration time.Duration
}

