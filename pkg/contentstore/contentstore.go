// Package contentstore stores model payloads by content address.
//
// A locator has the form "/<backend>/<digest>" or, for OCI registries,
// "/oci/<repository>@<digest>". Reads always verify the digest.
package contentstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

var (
	ErrNotFound        = errors.New("content not found")
	ErrInvalidLocator  = errors.New("invalid content locator")
	ErrDigestMismatch  = errors.New("content digest mismatch")
	ErrUnsupportedType = errors.New("unsupported content store type")
)

type Store interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
}

func locatorFor(backend string, d digest.Digest) string {
	return "/" + backend + "/" + d.String()
}

// parseLocator returns the digest of a "/<backend>/<digest>" locator.
func parseLocator(backend, locator string) (digest.Digest, error) {
	prefix := "/" + backend + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}

	d, err := digest.Parse(strings.TrimPrefix(locator, prefix))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidLocator, err)
	}

	return d, nil
}

func verify(d digest.Digest, data []byte) error {
	if d.Algorithm().FromBytes(data) != d {
		return fmt.Errorf("%w: expected %s", ErrDigestMismatch, d)
	}

	return nil
}
