package contentstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	backendOCI = "oci"

	// MediaTypeParameters marks a blob holding canonically encoded parameters.
	MediaTypeParameters = "application/vnd.fedledger.parameters.v1+cbor"
)

type OCIConfig struct {
	Registry     string `env:"REGISTRY"      envDefault:"localhost:5000"`
	Repository   string `env:"REPOSITORY"    envDefault:"fedledger/models"`
	PlainHTTP    bool   `env:"PLAIN_HTTP"    envDefault:"true"`
	Authenticate bool   `env:"AUTHENTICATE"  envDefault:"false"`
	Username     string `env:"USERNAME"      envDefault:""`
	Password     string `env:"PASSWORD"      envDefault:""`
}

type resolver interface {
	Resolve(ctx context.Context, reference string) (ocispec.Descriptor, error)
}

type ociStore struct {
	name    string
	blobs   content.Storage
	resolve resolver
}

// NewOCIRemote stores blobs in a repository of an OCI distribution registry.
func NewOCIRemote(cfg OCIConfig) (Store, error) {
	name := cfg.Registry + "/" + cfg.Repository
	repo, err := remote.NewRepository(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	repo.PlainHTTP = cfg.PlainHTTP

	if cfg.Authenticate {
		repo.Client = &auth.Client{
			Client: retry.DefaultClient,
			Cache:  auth.NewCache(),
			Credential: auth.StaticCredential(cfg.Registry, auth.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			}),
		}
	}

	blobs := repo.Blobs()

	return &ociStore{name: name, blobs: blobs, resolve: blobs}, nil
}

// NewOCILayout stores blobs in an OCI image layout directory.
func NewOCILayout(root string) (Store, error) {
	store, err := oci.New(root)
	if err != nil {
		return nil, fmt.Errorf("failed to open oci layout: %w", err)
	}

	return &ociStore{name: "layout", blobs: store}, nil
}

func (s *ociStore) Put(ctx context.Context, data []byte) (string, error) {
	desc := content.NewDescriptorFromBytes(MediaTypeParameters, data)

	exists, err := s.blobs.Exists(ctx, desc)
	if err != nil {
		return "", fmt.Errorf("failed to check blob: %w", err)
	}
	if !exists {
		if err := s.blobs.Push(ctx, desc, bytes.NewReader(data)); err != nil && !errors.Is(err, errdef.ErrAlreadyExists) {
			return "", fmt.Errorf("failed to push blob: %w", err)
		}
	}

	return s.locator(desc.Digest), nil
}

func (s *ociStore) Get(ctx context.Context, locator string) ([]byte, error) {
	d, err := s.parse(locator)
	if err != nil {
		return nil, err
	}

	desc := ocispec.Descriptor{MediaType: MediaTypeParameters, Digest: d}
	if s.resolve != nil {
		desc, err = s.resolve.Resolve(ctx, d.String())
		if err != nil {
			if errors.Is(err, errdef.ErrNotFound) {
				return nil, ErrNotFound
			}

			return nil, fmt.Errorf("failed to resolve blob: %w", err)
		}
	} else {
		exists, err := s.blobs.Exists(ctx, desc)
		if err != nil {
			return nil, fmt.Errorf("failed to check blob: %w", err)
		}
		if !exists {
			return nil, ErrNotFound
		}
	}

	rc, err := s.blobs.Fetch(ctx, desc)
	if err != nil {
		if errors.Is(err, errdef.ErrNotFound) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("failed to fetch blob: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}
	if err := verify(d, data); err != nil {
		return nil, err
	}

	return data, nil
}

func (s *ociStore) locator(d digest.Digest) string {
	return "/" + backendOCI + "/" + s.name + "@" + d.String()
}

func (s *ociStore) parse(locator string) (digest.Digest, error) {
	prefix := "/" + backendOCI + "/" + s.name + "@"
	if !strings.HasPrefix(locator, prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	d, err := digest.Parse(strings.TrimPrefix(locator, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}

	return d, nil
}
