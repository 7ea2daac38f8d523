package binary

import (
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

// DefaultBaseURL is where CookCLI publishes release archives.
const DefaultBaseURL = "https://github.com/cooklang/CookCLI/releases/download"

// artifactSuffixes maps each supported architecture to the upstream
// archive naming suffix. Both targets use the static musl builds.
var artifactSuffixes = map[platform.Arch]string{
	platform.ArchAMD64: "x86_64-unknown-linux-musl",
	platform.ArchARM64: "aarch64-unknown-linux-musl",
}

// ArtifactSuffix returns the upstream suffix for arch.
func ArtifactSuffix(arch platform.Arch) (string, error) {
	suffix, ok := artifactSuffixes[arch]
	if !ok {
		return "", fmt.Errorf("%w: no release artifact for %q", platform.ErrUnsupportedArch, arch)
	}
	return suffix, nil
}

// constructDownloadInfo builds the artifact URLs.
// Pattern: {base}/v{version}/cook-{suffix}.tar.gz
func constructDownloadInfo(baseURL, version string, arch platform.Arch, checksumFile string, withSignature bool) (*DownloadInfo, error) {
	if version == "" {
		return nil, fmt.Errorf("version is required")
	}

	suffix, err := ArtifactSuffix(arch)
	if err != nil {
		return nil, err
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	releaseURL := fmt.Sprintf("%s/v%s", strings.TrimRight(baseURL, "/"), version)
	archiveName := fmt.Sprintf("%s-%s.tar.gz", BinaryName, suffix)

	info := &DownloadInfo{
		Version: version,
		Arch:    arch,
		URL:     fmt.Sprintf("%s/%s", releaseURL, archiveName),
	}

	if checksumFile != "" {
		info.ChecksumURL = fmt.Sprintf("%s/%s", releaseURL, checksumFile)
	}
	if withSignature {
		info.SignatureURL = info.URL + ".sig"
	}

	return info, nil
}

// ArtifactURL returns the archive URL for version and arch using baseURL
// (DefaultBaseURL when empty).
func ArtifactURL(baseURL, version string, arch platform.Arch) (string, error) {
	info, err := constructDownloadInfo(baseURL, version, arch, "", false)
	if err != nil {
		return "", err
	}
	return info.URL, nil
}
