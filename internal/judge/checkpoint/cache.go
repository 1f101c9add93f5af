package checkpoint

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"cryptoj/internal/common/storage"
	appErr "cryptoj/pkg/errors"
)

const metaSuffix = ".meta.json"

type cacheEntry struct {
	key       string
	path      string
	expiresAt time.Time
}

type cacheMeta struct {
	SizeBytes int64  `json:"sizeBytes"`
	ETag      string `json:"etag"`
}

// Cache keeps checkpoint archives from object storage on local disk so a
// judging pass can read entries with random access. Cached copies are
// revalidated against the object's size and ETag.
type Cache struct {
	rootDir    string
	bucket     string
	ttl        time.Duration
	maxEntries int
	storage    storage.ObjectStorage

	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruKeys []string
}

// NewCache creates an archive cache rooted at rootDir.
func NewCache(rootDir, bucket string, ttl time.Duration, maxEntries int, storageClient storage.ObjectStorage) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &Cache{
		rootDir:    rootDir,
		bucket:     bucket,
		ttl:        ttl,
		maxEntries: maxEntries,
		storage:    storageClient,
		entries:    make(map[string]*cacheEntry),
	}
}

// OpenArchive returns an open archive for the given object key, downloading
// it first when the local copy is missing or stale.
func (c *Cache) OpenArchive(ctx context.Context, key string) (*Archive, error) {
	path, err := c.localPath(ctx, key)
	if err != nil {
		return nil, err
	}
	return Open(path)
}

func (c *Cache) localPath(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", appErr.New(appErr.InvalidParams).WithMessage("archive key is required")
	}
	if c.storage == nil {
		return "", appErr.New(appErr.StorageError).WithMessage("storage client is not initialized")
	}
	path := filepath.Join(c.rootDir, sanitizeKey(key))

	stat, err := c.storage.StatObject(ctx, c.bucket, key)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.StorageError, "stat archive %s failed", key)
	}

	if c.hitEntry(key) && c.checkDisk(path, stat) {
		return path, nil
	}
	if c.checkDisk(path, stat) {
		c.addEntry(key, path)
		return path, nil
	}
	if err := c.fetch(ctx, key, path, stat); err != nil {
		return "", err
	}
	c.addEntry(key, path)
	return path, nil
}

func (c *Cache) hitEntry(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	if time.Now().After(entry.expiresAt) {
		c.removeEntryLocked(key)
		return false
	}
	entry.expiresAt = time.Now().Add(c.ttl)
	c.touchLocked(key)
	return true
}

func (c *Cache) checkDisk(path string, stat storage.ObjectStat) bool {
	data, err := os.ReadFile(path + metaSuffix)
	if err != nil {
		return false
	}
	var stored cacheMeta
	if err := json.Unmarshal(data, &stored); err != nil {
		return false
	}
	if stored.SizeBytes != stat.SizeBytes || stored.ETag != stat.ETag {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() == stat.SizeBytes
}

func (c *Cache) fetch(ctx context.Context, key, path string, stat storage.ObjectStat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create cache dir failed")
	}
	reader, err := c.storage.GetObject(ctx, c.bucket, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "download archive %s failed", key)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), "archive-*.tmp")
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "create temp archive failed")
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return appErr.Wrapf(err, appErr.StorageError, "write archive %s failed", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return appErr.Wrapf(err, appErr.StorageError, "close archive %s failed", key)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return appErr.Wrapf(err, appErr.StorageError, "store archive %s failed", key)
	}

	meta, err := json.Marshal(cacheMeta{SizeBytes: stat.SizeBytes, ETag: stat.ETag})
	if err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "encode archive meta failed")
	}
	if err := os.WriteFile(path+metaSuffix, meta, 0644); err != nil {
		return appErr.Wrapf(err, appErr.StorageError, "write archive meta failed")
	}
	return nil
}

func (c *Cache) addEntry(key, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		c.entries[key].expiresAt = time.Now().Add(c.ttl)
		c.touchLocked(key)
		return
	}
	c.entries[key] = &cacheEntry{key: key, path: path, expiresAt: time.Now().Add(c.ttl)}
	c.lruKeys = append(c.lruKeys, key)
	for len(c.entries) > c.maxEntries {
		oldest := c.lruKeys[0]
		entry := c.entries[oldest]
		c.removeEntryLocked(oldest)
		os.Remove(entry.path)
		os.Remove(entry.path + metaSuffix)
	}
}

func (c *Cache) touchLocked(key string) {
	for i, k := range c.lruKeys {
		if k == key {
			c.lruKeys = append(append(c.lruKeys[:i:i], c.lruKeys[i+1:]...), key)
			return
		}
	}
}

func (c *Cache) removeEntryLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.lruKeys {
		if k == key {
			c.lruKeys = append(c.lruKeys[:i], c.lruKeys[i+1:]...)
			return
		}
	}
}

func sanitizeKey(key string) string {
	replaced := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return replaced + ".zip"
}
