package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual host detection.
type RealDetector struct{}

// NewDetector creates a new host detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect reports the host OS and CPU architecture.
//
// The kernel architecture from gopsutil is preferred because a binary
// running under emulation reports the emulated GOARCH. If the kernel
// cannot be queried, runtime.GOARCH is used instead. An architecture
// outside the supported set is an error.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
	}

	stat, err := host.InfoWithContext(ctx)
	if err != nil {
		// Cancellation is a hard failure
		if ctx.Err() != nil {
			return nil, fmt.Errorf("host detection cancelled: %w", ctx.Err())
		}
	} else if stat.KernelArch != "" {
		info.ArchRaw = stat.KernelArch
	}

	arch, err := ParseArch(info.ArchRaw)
	if err != nil {
		return nil, fmt.Errorf("host detection failed: %w", err)
	}
	info.Arch = arch

	return info, nil
}

// StaticDetector reports a fixed Info. It is used when the target
// architecture is pinned explicitly and in tests.
type StaticDetector struct {
	Info *Info
	Err  error
}

// Detect returns the configured info and error.
func (s StaticDetector) Detect(ctx context.Context) (*Info, error) {
	return s.Info, s.Err
}
