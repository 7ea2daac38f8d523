package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/cookship/internal/platform"
)

// Config holds every setting the release modes read.
type Config struct {
	// Version is an explicit upstream version or "latest".
	Version string
	// Image is the repository name without a tag, e.g. "cooklang/cookcli".
	Image string
	// Builder is the buildx builder used for multi-arch publishing.
	Builder string
	// Context is the docker build context; it must contain the cookship sources.
	Context string

	Release ReleaseConfig
	Test    TestConfig
	Publish PublishConfig

	// GitHubToken authenticates release lookups (optional).
	GitHubToken string
}

// ReleaseConfig controls how upstream artifacts are located and verified.
type ReleaseConfig struct {
	BaseURL      string
	ChecksumFile string
	KeyringPath  string
}

// TestConfig controls the container smoke test.
type TestConfig struct {
	SampleDir string
	Port      int
	Attempts  int
	Delay     time.Duration
}

// PublishConfig controls multi-arch publishing.
type PublishConfig struct {
	// VerifyAuth forces a live push-permission check instead of trusting
	// cached credentials.
	VerifyAuth bool
	Platforms  []platform.Arch
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Version: "latest",
		Image:   "cooklang/cookcli",
		Builder: "cookship-builder",
		Context: ".",
		Test: TestConfig{
			SampleDir: "./recipes",
			Port:      9080,
			Attempts:  30,
			Delay:     2 * time.Second,
		},
		Publish: PublishConfig{
			Platforms: platform.SupportedArches(),
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Image) == "" {
		return fmt.Errorf("image must not be empty")
	}
	if strings.Contains(c.Image, ":") && !strings.Contains(c.Image[strings.LastIndex(c.Image, ":"):], "/") {
		return fmt.Errorf("image %q must not carry a tag", c.Image)
	}
	if c.Builder == "" {
		return fmt.Errorf("builder must not be empty")
	}
	if c.Test.Port < 1 || c.Test.Port > 65535 {
		return fmt.Errorf("test port %d out of range", c.Test.Port)
	}
	if c.Test.Attempts < 1 {
		return fmt.Errorf("test attempts must be at least 1, got %d", c.Test.Attempts)
	}
	if c.Test.Delay < 0 {
		return fmt.Errorf("test delay must not be negative")
	}
	if len(c.Publish.Platforms) == 0 {
		return fmt.Errorf("at least one publish platform is required")
	}
	seen := make(map[platform.Arch]bool)
	for _, arch := range c.Publish.Platforms {
		if seen[arch] {
			return fmt.Errorf("duplicate publish platform %s", arch)
		}
		seen[arch] = true
	}
	return nil
}

// Ref returns Image with tag appended.
func (c *Config) Ref(tag string) string {
	return c.Image + ":" + tag
}
