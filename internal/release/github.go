package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	// DefaultLatestURL lists the newest CookCLI release.
	DefaultLatestURL = "https://api.github.com/repos/cooklang/CookCLI/releases/latest"
	// DefaultTimeout bounds the release lookup.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "cookship/1.0"
)

// GitHubRelease is the subset of the GitHub release payload we read.
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	HTMLURL    string `json:"html_url"`
}

// GitHubSource reads the latest release from the GitHub REST API.
type GitHubSource struct {
	client *http.Client
	url    string
	token  string
}

// NewGitHubSource creates a source for url; an empty url uses DefaultLatestURL.
// token is optional and only raises the API rate limit.
func NewGitHubSource(url, token string) *GitHubSource {
	if url == "" {
		url = DefaultLatestURL
	}
	return &GitHubSource{
		client: &http.Client{Timeout: DefaultTimeout},
		url:    url,
		token:  token,
	}
}

// LatestTag returns the tag_name of the newest release.
func (g *GitHubSource) LatestTag(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", DefaultUserAgent)
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var rel GitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", fmt.Errorf("decode release: %w", err)
	}

	return rel.TagName, nil
}
