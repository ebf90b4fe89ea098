package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrBlinki/sui-hackaton25/internal/blob"
)

// ErrInvalidID is returned for blob ids that cannot name a cache file.
var ErrInvalidID = errors.New("invalid blob id")

const tmpSuffix = ".tmp"

// Fetcher is what the cache needs from the mirror list.
type Fetcher interface {
	FetchTo(ctx context.Context, blobID string, w io.Writer, reset func() error) (int64, error)
}

// Manager keeps fetched blobs on local disk, one file per blob id.
type Manager struct {
	fetcher  Fetcher
	baseDir  string
	maxBytes int64

	mu      sync.Mutex
	pending map[string]*download
	evictMu sync.Mutex
}

type download struct {
	done chan struct{}
	err  error
}

// Stats is a snapshot of the cache directory.
type Stats struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// NewManager creates the cache directory. maxBytes of zero disables eviction.
func NewManager(fetcher Fetcher, dir string, maxBytes int64) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	// Leftovers from an interrupted download are never valid blobs
	if matches, _ := filepath.Glob(filepath.Join(dir, "*"+tmpSuffix)); len(matches) > 0 {
		for _, m := range matches {
			os.Remove(m)
		}
	}

	return &Manager{
		fetcher:  fetcher,
		baseDir:  dir,
		maxBytes: maxBytes,
		pending:  make(map[string]*download),
	}, nil
}

// Path returns the file a blob lives in once cached.
func (c *Manager) Path(blobID string) string {
	return filepath.Join(c.baseDir, blobID)
}

// Has reports a cache hit without touching the network.
func (c *Manager) Has(blobID string) bool {
	return blob.ValidID(blobID) && c.exists(c.Path(blobID))
}

// Get returns the local path of a blob, downloading it through the mirrors on
// a miss. Concurrent callers for the same id share one download.
func (c *Manager) Get(ctx context.Context, blobID string) (string, error) {
	if !blob.ValidID(blobID) {
		return "", ErrInvalidID
	}
	localPath := c.Path(blobID)

	if c.exists(localPath) {
		now := time.Now()
		os.Chtimes(localPath, now, now)
		cacheHits.Inc()
		return localPath, nil
	}

	c.mu.Lock()
	d, ok := c.pending[blobID]
	if !ok {
		d = &download{done: make(chan struct{})}
		c.pending[blobID] = d
		// Shared by every waiter, so a caller going away must not cancel it.
		// The per-endpoint timeouts bound it instead.
		go c.fetch(context.WithoutCancel(ctx), blobID, localPath, d)
	}
	c.mu.Unlock()

	select {
	case <-d.done:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if d.err != nil {
		return "", d.err
	}
	return localPath, nil
}

func (c *Manager) fetch(ctx context.Context, blobID, localPath string, d *download) {
	defer func() {
		c.mu.Lock()
		delete(c.pending, blobID)
		c.mu.Unlock()
		close(d.done)
	}()

	// A download finished between the caller's stat and taking the lock
	if c.exists(localPath) {
		cacheHits.Inc()
		return
	}

	cacheMisses.Inc()
	log.Printf("📥 Cache Miss: fetching %s", blobID)
	if d.err = c.download(ctx, blobID, localPath); d.err != nil {
		return
	}
	c.evict(localPath)
}

// Put stores a blob the proxy already holds, such as a fresh upload.
func (c *Manager) Put(blobID string, r io.Reader) (string, error) {
	if !blob.ValidID(blobID) {
		return "", ErrInvalidID
	}
	dest := c.Path(blobID)
	tmp := dest + tmpSuffix

	out, err := os.Create(tmp)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", err
	}

	c.evict(dest)
	return dest, nil
}

// Stats counts cached blobs, ignoring partial downloads.
func (c *Manager) Stats() Stats {
	var s Stats
	for _, f := range c.files() {
		s.Files++
		s.Bytes += f.size
	}
	return s
}

func (c *Manager) exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func (c *Manager) download(ctx context.Context, blobID, dest string) error {
	tmp := dest + tmpSuffix

	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	reset := func() error {
		if _, err := out.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return out.Truncate(0)
	}

	n, err := c.fetcher.FetchTo(ctx, blobID, out, reset)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && n == 0 {
		err = fmt.Errorf("blob %s is empty", blobID)
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, dest)
}

type cachedFile struct {
	path    string
	size    int64
	modTime time.Time
}

func (c *Manager) files() []cachedFile {
	entries, err := os.ReadDir(c.baseDir)
	if err != nil {
		return nil
	}

	var out []cachedFile
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, cachedFile{
			path:    filepath.Join(c.baseDir, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime(),
		})
	}
	return out
}

// evict drops the least recently used quarter of the cache once it grows
// past maxBytes. keep is the file just written and is never a candidate.
func (c *Manager) evict(keep string) {
	if c.maxBytes <= 0 {
		return
	}
	c.evictMu.Lock()
	defer c.evictMu.Unlock()

	files := c.files()
	var total int64
	for _, f := range files {
		total += f.size
	}
	if total <= c.maxBytes {
		return
	}

	candidates := files[:0]
	for _, f := range files {
		if f.path != keep {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].modTime.Before(candidates[j].modTime) })

	n := len(candidates) / 4
	if n == 0 {
		n = 1
	}
	for _, f := range candidates[:n] {
		if err := os.Remove(f.path); err != nil {
			log.Printf("⚠️ Failed to evict %s: %v", f.path, err)
			continue
		}
		cacheEvictions.Inc()
	}
	log.Printf("🧹 Cache over limit (%d > %d bytes), evicted %d of %d files", total, c.maxBytes, n, len(files))
}
