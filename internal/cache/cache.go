// Package cache implements a read-only local cache of upstream board
// constraint/IP files. A build fetches at most once per run, falls back to
// whatever is already on disk when the network is slow or unavailable.
// An entry already on disk is read without locking; a second build that
// needs the same missing entry waits on a file-level exclusive lock until
// the first build's fetch finishes, then reads what it wrote.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cavaliercoder/grab"
	"golang.org/x/sys/unix"

	"github.com/pcileech-tools/donorgen/internal/errs"
)

// DefaultFetchTimeout bounds a single fetch attempt before the cache falls
// back to the existing on-disk entry (or reports CacheFetchError if there
// is none).
const DefaultFetchTimeout = 30 * time.Second

// Entry identifies one cached upstream resource by board name and the
// upstream commit/revision it was fetched at.
type Entry struct {
	BoardName    string
	UpstreamRef  string
	URL          string
}

// key derives the on-disk checksum-keyed filename for e.
func (e Entry) key() string {
	sum := sha256.Sum256([]byte(e.BoardName + "@" + e.UpstreamRef))
	return hex.EncodeToString(sum[:])
}

// Cache manages fetched upstream files under root.
type Cache struct {
	root    string
	timeout time.Duration
}

// New returns a Cache rooted at dir, creating it if necessary.
func New(dir string, timeout time.Duration) (*Cache, error) {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Wrap(errs.IoError, "creating cache root", err)
	}
	return &Cache{root: dir, timeout: timeout}, nil
}

// Path returns the on-disk path an entry would live at, whether or not it
// has been fetched yet.
func (c *Cache) Path(e Entry) string {
	return filepath.Join(c.root, e.key())
}

func (c *Cache) lockPath(e Entry) string {
	return c.Path(e) + ".lock"
}

// Fetch returns cached content for e, fetching from e.URL at most once. If a
// fresh fetch fails or times out and a prior cached copy exists, Fetch falls
// back to it silently; if neither is available, it returns CacheFetchError.
// Concurrent callers for the same Entry serialize on an exclusive flock so
// only one fetch happens per Entry per cache directory, matching the
// one-writer/many-readers concurrency model for this component.
func (c *Cache) Fetch(ctx context.Context, e Entry) ([]byte, error) {
	dest := c.Path(e)

	if data, err := os.ReadFile(dest); err == nil {
		return data, nil
	}

	lockFile, err := os.OpenFile(c.lockPath(e), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errs.Wrap(errs.IoError, "opening cache lock file", err)
	}
	defer lockFile.Close()

	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return nil, errs.Wrap(errs.IoError, "acquiring cache lock", err)
	}
	defer unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)

	// Another writer may have populated dest while we waited for the lock.
	if data, err := os.ReadFile(dest); err == nil {
		return data, nil
	}

	fetchCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, fetchErr := c.fetchOnce(fetchCtx, e, dest)
	if fetchErr == nil {
		return data, nil
	}

	if data, err := os.ReadFile(dest); err == nil {
		return data, nil
	}
	return nil, errs.Wrap(errs.CacheFetchError, fmt.Sprintf("fetching %s for board %s", e.URL, e.BoardName), fetchErr)
}

func (c *Cache) fetchOnce(ctx context.Context, e Entry, dest string) ([]byte, error) {
	tmpDest := dest + ".part"

	req, err := grab.NewRequest(e.URL)
	if err != nil {
		return nil, err
	}
	req.Filename = tmpDest

	client := grab.NewClient()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !resp.IsComplete() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}

	if err := os.Rename(tmpDest, dest); err != nil {
		return nil, err
	}
	return os.ReadFile(dest)
}
