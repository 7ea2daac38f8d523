// Package registry checks push credentials and verifies published tags
// against an OCI registry using go-containerregistry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/ZebulonRouseFrantzich/cookship/internal/logging"
)

var (
	// ErrNotAuthenticated is returned when no usable push credentials exist.
	ErrNotAuthenticated = errors.New("not authenticated to registry")
	// ErrTagDigestMismatch is returned when published tags disagree.
	ErrTagDigestMismatch = errors.New("published tags resolve to different digests")
)

// DefaultUserAgent identifies cookship to registries.
const DefaultUserAgent = "cookship"

// Registry is the interface the publish mode depends on.
type Registry interface {
	CheckAuth(ctx context.Context, image string, live bool) error
	VerifyTags(ctx context.Context, image string, tags []string) (string, error)
}

// Options configures a Client.
type Options struct {
	// Keychain resolves credentials; authn.DefaultKeychain when nil.
	Keychain authn.Keychain
	// Transport is used for registry requests; http.DefaultTransport when nil.
	Transport http.RoundTripper
	// Insecure allows plain HTTP registries.
	Insecure bool
}

// Client implements Registry.
type Client struct {
	keychain  authn.Keychain
	transport http.RoundTripper
	nameOpts  []name.Option
	logger    logging.Logger
}

// New creates a registry client.
func New(opts Options, logger logging.Logger) *Client {
	c := &Client{
		keychain:  opts.Keychain,
		transport: opts.Transport,
		logger:    logging.OrNop(logger),
	}
	if c.keychain == nil {
		c.keychain = authn.DefaultKeychain
	}
	if c.transport == nil {
		c.transport = http.DefaultTransport
	}
	if opts.Insecure {
		c.nameOpts = append(c.nameOpts, name.Insecure)
	}
	return c
}

// CheckAuth fails with ErrNotAuthenticated unless credentials for the
// image's registry are available. With live set it also asks the
// registry whether those credentials may push to the repository;
// otherwise cached credentials are trusted as-is.
func (c *Client) CheckAuth(ctx context.Context, image string, live bool) error {
	repo, err := name.NewRepository(image, c.nameOpts...)
	if err != nil {
		return fmt.Errorf("parse image %q: %w", image, err)
	}

	auth, err := c.keychain.Resolve(repo.Registry)
	if err != nil {
		return fmt.Errorf("%w: resolve credentials for %s: %v", ErrNotAuthenticated, repo.RegistryStr(), err)
	}
	if auth == authn.Anonymous {
		return fmt.Errorf("%w: no credentials for %s (run docker login)", ErrNotAuthenticated, repo.RegistryStr())
	}

	cfg, err := authn.Authorization(ctx, auth)
	if err != nil {
		return fmt.Errorf("%w: read credentials for %s: %v", ErrNotAuthenticated, repo.RegistryStr(), err)
	}
	if cfg.Username == "" && cfg.Password == "" && cfg.IdentityToken == "" && cfg.RegistryToken == "" && cfg.Auth == "" {
		return fmt.Errorf("%w: empty credentials for %s", ErrNotAuthenticated, repo.RegistryStr())
	}

	if !live {
		c.logger.Debug("using cached registry credentials", "registry", repo.RegistryStr())
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := remote.CheckPushPermission(repo.Tag("latest"), c.keychain, c.transport); err != nil {
		return fmt.Errorf("%w: push to %s denied: %v", ErrNotAuthenticated, repo.Name(), err)
	}

	c.logger.Debug("registry push permission confirmed", "repository", repo.Name())
	return nil
}

// VerifyTags resolves every tag of image and returns the shared digest.
// Tags resolving to different digests yield ErrTagDigestMismatch.
func (c *Client) VerifyTags(ctx context.Context, image string, tags []string) (string, error) {
	if len(tags) == 0 {
		return "", fmt.Errorf("no tags to verify")
	}

	repo, err := name.NewRepository(image, c.nameOpts...)
	if err != nil {
		return "", fmt.Errorf("parse image %q: %w", image, err)
	}

	remoteOpts := []remote.Option{
		remote.WithContext(ctx),
		remote.WithUserAgent(DefaultUserAgent),
		remote.WithAuthFromKeychain(c.keychain),
		remote.WithTransport(c.transport),
	}

	var digest, first string
	for _, tag := range tags {
		ref := repo.Tag(tag)
		desc, err := remote.Head(ref, remoteOpts...)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", ref.Name(), err)
		}

		got := desc.Digest.String()
		c.logger.Debug("resolved tag", "tag", ref.Name(), "digest", got)

		if digest == "" {
			digest, first = got, tag
			continue
		}
		if got != digest {
			return "", fmt.Errorf("%w: %s is %s but %s is %s", ErrTagDigestMismatch, first, digest, tag, got)
		}
	}
	return digest, nil
}
