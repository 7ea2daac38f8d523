// Package image describes the runtime container image and renders the
// multi-stage Dockerfile that produces it.
//
// The first stage ("fetcher") builds cookship from the build context and
// runs "cookship fetch" for the target architecture, so download scratch
// state never reaches the runtime stage. The runtime stage is an Alpine
// base carrying only the verified executable, running as an unprivileged
// user with a liveness health check.
package image

import (
	"fmt"
	"time"
)

// Build arguments understood by the rendered Dockerfile.
const (
	ArgVersion  = "VERSION"
	ArgRevision = "REVISION"
	ArgCreated  = "CREATED"
)

// FetcherStage is the name of the build stage that downloads the binary.
const FetcherStage = "fetcher"

// Label is one OCI image annotation.
type Label struct {
	Key   string
	Value string
}

// HealthCheck configures the container HEALTHCHECK instruction.
type HealthCheck struct {
	Interval    time.Duration
	Timeout     time.Duration
	StartPeriod time.Duration
	Retries     int
}

// Spec describes the image to assemble.
type Spec struct {
	// BuilderImage runs the fetch stage; it must carry a Go toolchain.
	BuilderImage string
	// BaseImage is the runtime base.
	BaseImage string

	// Packages are installed in the runtime stage with apk.
	Packages []string

	// User and Group name the unprivileged account; UID and GID must be non-zero.
	User  string
	Group string
	UID   int
	GID   int

	// Workdir is the recipe directory, owned by the unprivileged user.
	Workdir string

	// BinaryName is the executable name; BinaryDir is where it is installed.
	BinaryName string
	BinaryDir  string

	Port        int
	HealthCheck HealthCheck

	// Labels are static OCI labels. Version, revision and creation time
	// are appended from build arguments.
	Labels []Label
}

// DefaultSpec returns the CookCLI server image layout.
func DefaultSpec() Spec {
	return Spec{
		BuilderImage: "golang:1.25-alpine",
		BaseImage:    "alpine:3.20",
		Packages:     []string{"ca-certificates", "curl"},
		User:         "cook",
		Group:        "cook",
		UID:          1000,
		GID:          1000,
		Workdir:      "/recipes",
		BinaryName:   "cook",
		BinaryDir:    "/usr/local/bin",
		Port:         9080,
		HealthCheck: HealthCheck{
			Interval:    30 * time.Second,
			Timeout:     3 * time.Second,
			StartPeriod: 5 * time.Second,
			Retries:     3,
		},
		Labels: []Label{
			{Key: "org.opencontainers.image.title", Value: "CookCLI"},
			{Key: "org.opencontainers.image.description", Value: "CookCLI web server for Cooklang recipes"},
			{Key: "org.opencontainers.image.source", Value: "https://github.com/cooklang/CookCLI"},
			{Key: "org.opencontainers.image.licenses", Value: "MIT"},
		},
	}
}

// Validate checks that the spec renders a non-root, reachable image.
func (s Spec) Validate() error {
	if s.BuilderImage == "" || s.BaseImage == "" {
		return fmt.Errorf("builder and base images are required")
	}
	if s.BinaryName == "" {
		return fmt.Errorf("binary name is required")
	}
	if s.UID <= 0 || s.GID <= 0 {
		return fmt.Errorf("uid and gid must be non-zero (got %d:%d)", s.UID, s.GID)
	}
	if s.User == "" || s.Group == "" {
		return fmt.Errorf("user and group names are required")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port %d out of range", s.Port)
	}
	if s.Workdir == "" {
		return fmt.Errorf("workdir is required")
	}
	if s.HealthCheck.Retries < 1 {
		return fmt.Errorf("health check retries must be positive")
	}
	return nil
}

// BinaryPath returns the absolute path of the installed executable.
func (s Spec) BinaryPath() string {
	return s.BinaryDir + "/" + s.BinaryName
}

// HealthURL is the address probed inside the container.
func (s Spec) HealthURL() string {
	return fmt.Sprintf("http://localhost:%d/", s.Port)
}

// Command returns the container CMD: serve the working directory on all
// interfaces at Port.
func (s Spec) Command() []string {
	return []string{s.BinaryName, "server", "--host", "--port", fmt.Sprint(s.Port), "."}
}
