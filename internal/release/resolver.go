package release

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
)

// ErrNoReleaseTag is returned when the release listing yields no usable tag.
var ErrNoReleaseTag = errors.New("no parseable release tag")

// Source reports the tag name of the newest upstream release.
type Source interface {
	LatestTag(ctx context.Context) (string, error)
}

// Resolver decides which upstream release a build uses.
type Resolver struct {
	source Source
	logger logging.Logger
}

// NewResolver creates a resolver backed by source.
func NewResolver(source Source, logger logging.Logger) *Resolver {
	return &Resolver{
		source: source,
		logger: logging.OrNop(logger),
	}
}

// IsLatest reports whether requested asks for the newest release.
// Surrounding whitespace is ignored.
func IsLatest(requested string) bool {
	r := strings.TrimSpace(requested)
	return r == "" || r == LatestTag
}

// Resolve returns the Version to build.
//
// Surrounding whitespace is dropped from requested on every path. An empty
// request or "latest" performs exactly one upstream lookup and strips a
// leading "v" from the tag. Any other value is returned as given without
// contacting the source or validating its shape.
func (r *Resolver) Resolve(ctx context.Context, requested string) (Version, error) {
	requested = strings.TrimSpace(requested)
	if !IsLatest(requested) {
		r.logger.Debug("using requested version", "version", requested)
		return Version(requested), nil
	}

	if r.source == nil {
		return "", fmt.Errorf("resolve latest: no release source configured")
	}

	tag, err := r.source.LatestTag(ctx)
	if err != nil {
		return "", fmt.Errorf("query latest release: %w", err)
	}

	version, err := parseTag(tag)
	if err != nil {
		return "", err
	}

	r.logger.Info("resolved latest release", "tag", tag, "version", version)
	return version, nil
}

// parseTag strips one leading "v" and requires a semantic version.
func parseTag(tag string) (Version, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(tag), "v")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty tag", ErrNoReleaseTag)
	}
	if !semver.IsValid("v" + trimmed) {
		return "", fmt.Errorf("%w: %q", ErrNoReleaseTag, tag)
	}
	return Version(trimmed), nil
}
