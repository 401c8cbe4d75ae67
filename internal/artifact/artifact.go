// Package artifact hashes build artifacts so byte-identical outputs across
// nominally different configurations can be detected cheaply. Each file is
// hashed once and the digest cached, keyed by path, size and mtime.
package artifact

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/puzpuzpuz/xsync/v3"
)

// Store caches artifact digests. Safe for concurrent use.
type Store struct {
	digests *xsync.MapOf[string, cached]
}

type cached struct {
	size   int64
	mtime  int64
	sha256 string
}

// NewStore creates an empty digest cache.
func NewStore() *Store {
	return &Store{digests: xsync.NewMapOf[string, cached]()}
}

// Hash returns the sha256 hex digest and size of the file at path,
// consulting the cache first. The cache entry is invalidated when size or
// mtime changed.
func (s *Store) Hash(path string) (digest string, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat artifact: %w", err)
	}

	if c, ok := s.digests.Load(path); ok &&
		c.size == info.Size() && c.mtime == info.ModTime().UnixNano() {
		return c.sha256, c.size, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, fmt.Errorf("hash artifact: %w", err)
	}
	digest = fmt.Sprintf("%x", h.Sum(nil))

	s.digests.Store(path, cached{
		size:   info.Size(),
		mtime:  info.ModTime().UnixNano(),
		sha256: digest,
	})
	return digest, info.Size(), nil
}
