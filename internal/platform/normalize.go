package platform

import (
	"fmt"
	"strings"
)

// archAliases maps every accepted spelling to its canonical Arch.
var archAliases = map[string]Arch{
	"amd64":   ArchAMD64,
	"x86_64":  ArchAMD64,
	"arm64":   ArchARM64,
	"aarch64": ArchARM64,
}

// ParseArch converts an architecture identifier to a supported Arch.
// It accepts Go names (amd64, arm64), kernel names (x86_64, aarch64) and
// container platform strings (linux/arm64).
func ParseArch(s string) (Arch, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.TrimPrefix(normalized, "linux/")

	if arch, ok := archAliases[normalized]; ok {
		return arch, nil
	}
	return "", fmt.Errorf("%w: %q (supported: amd64, arm64)", ErrUnsupportedArch, s)
}

// JoinPlatforms renders arches as a comma-separated buildx platform list.
func JoinPlatforms(arches []Arch) string {
	platforms := make([]string, len(arches))
	for i, a := range arches {
		platforms[i] = a.Platform()
	}
	return strings.Join(platforms, ",")
}
