// Package release resolves which upstream CookCLI release to package and
// derives the image tags for it.
package release

import (
	"strings"
)

// LatestTag is both the sentinel requesting the newest upstream release
// and the floating image tag applied on publish.
const LatestTag = "latest"

// Version is a resolved release identifier such as "0.18.1".
// Explicitly requested versions are used verbatim, so a Version is not
// guaranteed to have three components.
type Version string

// String returns the version string.
func (v Version) String() string {
	return string(v)
}

// components returns at most three dot-separated parts.
func (v Version) components() []string {
	return strings.SplitN(string(v), ".", 3)
}

// Major returns the first component, e.g. "2" for "2.5.1".
func (v Version) Major() string {
	return v.components()[0]
}

// Minor returns the first two components joined by ".", e.g. "2.5" for
// "2.5.1". A one-component version returns itself.
func (v Version) Minor() string {
	parts := v.components()
	if len(parts) < 2 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// TagSet returns the ordered tags published for v: exact, minor, major and
// "latest". Duplicates collapse, keeping the first occurrence, so "2" yields
// ["2", "latest"].
func (v Version) TagSet() []string {
	candidates := []string{v.String(), v.Minor(), v.Major(), LatestTag}

	tags := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, tag := range candidates {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}
