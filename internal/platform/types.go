// Package platform provides host detection and the closed set of CPU
// architectures cookship can build images for.
//
// Architecture identifiers are parsed strictly: anything outside the
// supported set is ErrUnsupportedArch, never a silent default. Host
// detection uses gopsutil and falls back to runtime.GOARCH when the
// kernel cannot be queried.
package platform

import (
	"context"
	"errors"
)

// ErrUnsupportedArch is returned for any architecture outside the supported set.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// Arch is a supported target CPU architecture.
type Arch string

const (
	// ArchAMD64 is 64-bit x86.
	ArchAMD64 Arch = "amd64"
	// ArchARM64 is 64-bit ARM.
	ArchARM64 Arch = "arm64"
)

// String returns the Go-style architecture name.
func (a Arch) String() string {
	return string(a)
}

// Platform returns the container platform string, e.g. "linux/arm64".
func (a Arch) Platform() string {
	return "linux/" + string(a)
}

// SupportedArches returns every architecture images are published for,
// in publish order.
func SupportedArches() []Arch {
	return []Arch{ArchAMD64, ArchARM64}
}

// Info contains host detection information.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    Arch   // normalized, always a supported value
	ArchRaw string // what the kernel or runtime reported, e.g. "x86_64"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == ArchAMD64
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == ArchARM64
}

// Detector is the interface for host detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
