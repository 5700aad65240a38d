package testdata

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"rivoj/internal/common/cache"
	"rivoj/internal/common/storage"
	appErr "rivoj/pkg/errors"
)

const (
	archiveSuffix = ".tar.zst"
	tempFileName  = "test-data.tmp"
	lockKeyPrefix = "judge:testdata:lock:"
)

type cacheEntry struct {
	key       string
	path      string
	sizeBytes int64
	expiresAt time.Time
}

// Cache keeps extracted test case sets on local disk, fetching missing ones
// from object storage. Concurrent fetches of the same set across worker
// processes are serialized through a distributed lock.
type Cache struct {
	rootDir    string
	ttl        time.Duration
	lockWait   time.Duration
	maxEntries int
	maxBytes   int64
	bucket     string
	storage    storage.ObjectStorage
	lock       cache.LockOps
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	lruKeys    []string
	totalSize  int64
}

// NewCache creates a test data cache rooted at rootDir.
func NewCache(rootDir string, ttl, lockWait time.Duration, maxEntries int, maxBytes int64, bucket string, storageClient storage.ObjectStorage, lock cache.LockOps) *Cache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	if lockWait <= 0 {
		lockWait = 30 * time.Second
	}
	return &Cache{
		rootDir:    rootDir,
		ttl:        ttl,
		lockWait:   lockWait,
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		bucket:     bucket,
		storage:    storageClient,
		lock:       lock,
		entries:    make(map[string]*cacheEntry),
	}
}

// Get returns the local directory holding the extracted test case set.
func (c *Cache) Get(ctx context.Context, testCaseID string) (string, error) {
	if testCaseID == "" {
		return "", appErr.ValidationError("test_case_id", "required")
	}
	if strings.ContainsAny(testCaseID, "/\\") {
		return "", appErr.ValidationError("test_case_id", "invalid")
	}
	if c.storage == nil {
		return "", appErr.New(appErr.CacheError).WithMessage("storage client is not initialized")
	}
	if c.rootDir == "" {
		return "", appErr.New(appErr.CacheError).WithMessage("cache root is not configured")
	}
	path := filepath.Join(c.rootDir, testCaseID)

	if c.hitEntry(testCaseID) {
		return path, nil
	}
	if checkDisk(path) {
		c.addEntry(testCaseID, path)
		return path, nil
	}
	if err := c.fetchAndExtract(ctx, testCaseID, path); err != nil {
		return "", err
	}
	c.addEntry(testCaseID, path)
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

func checkDisk(path string) bool {
	_, err := os.Stat(filepath.Join(path, infoFileName))
	return err == nil
}

func (c *Cache) fetchAndExtract(ctx context.Context, testCaseID, path string) error {
	if c.lock == nil {
		return appErr.New(appErr.CacheError).WithMessage("lock client is not initialized")
	}
	lockKey := lockKeyPrefix + testCaseID
	locked, err := c.lock.TryLock(ctx, lockKey, 5*time.Minute)
	if err != nil {
		return appErr.Wrapf(err, appErr.LockFailed, "acquire test data lock failed")
	}
	if !locked {
		return c.waitForCache(ctx, path)
	}
	defer func() {
		_ = c.lock.Unlock(ctx, lockKey)
	}()

	if checkDisk(path) {
		return nil
	}

	if err := os.RemoveAll(path); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "cleanup cache dir failed")
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create cache dir failed")
	}

	tempPath := filepath.Join(path, tempFileName)
	if err := c.download(ctx, testCaseID, tempPath); err != nil {
		_ = os.RemoveAll(path)
		return err
	}
	if err := extractArchive(tempPath, path); err != nil {
		_ = os.RemoveAll(path)
		return err
	}
	_ = os.Remove(tempPath)

	if !checkDisk(path) {
		_ = os.RemoveAll(path)
		return appErr.New(appErr.TestDataInvalid).WithMessage("test case archive has no info file")
	}
	return nil
}

func (c *Cache) waitForCache(ctx context.Context, path string) error {
	deadline := time.Now().Add(c.lockWait)
	for {
		if checkDisk(path) {
			return nil
		}
		if time.Now().After(deadline) {
			return appErr.New(appErr.Timeout).WithMessage("wait for test data cache timeout")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}

func (c *Cache) download(ctx context.Context, testCaseID, dstPath string) error {
	objectKey := testCaseID + archiveSuffix
	reader, err := c.storage.GetObject(ctx, c.bucket, objectKey)
	if err != nil {
		return appErr.Wrapf(err, appErr.TestDataNotFound, "download test data %s failed", objectKey)
	}
	defer reader.Close()

	file, err := os.Create(dstPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create test data file failed")
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "write test data file failed")
	}
	return nil
}

func extractArchive(srcPath, dstDir string) error {
	file, err := os.Open(srcPath)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "open test data archive failed")
	}
	defer file.Close()

	zstdReader, err := zstd.NewReader(file)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "create zstd reader failed")
	}
	defer zstdReader.Close()

	tr := tar.NewReader(zstdReader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return appErr.Wrapf(err, appErr.TestDataInvalid, "read tar entry failed")
		}
		if hdr.Name == "" {
			continue
		}
		cleanName := filepath.Clean(hdr.Name)
		if strings.HasPrefix(cleanName, "..") || filepath.IsAbs(cleanName) {
			return appErr.New(appErr.TestDataInvalid).WithMessage("invalid tar entry path")
		}
		target := filepath.Join(dstDir, cleanName)
		if !strings.HasPrefix(target, filepath.Clean(dstDir)+string(filepath.Separator)) {
			return appErr.New(appErr.TestDataInvalid).WithMessage("tar entry escape detected")
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create dir failed")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create parent dir failed")
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fs.FileMode(hdr.Mode))
			if err != nil {
				return appErr.Wrapf(err, appErr.CacheError, "create file failed")
			}
			if _, err := io.Copy(out, tr); err != nil {
				_ = out.Close()
				return appErr.Wrapf(err, appErr.CacheError, "write file failed")
			}
			_ = out.Close()
		default:
			// skip other types
		}
	}
	return nil
}

func (c *Cache) addEntry(key, path string) {
	size := dirSize(path)
	c.mu.Lock()
	if existing, ok := c.entries[key]; ok {
		c.totalSize -= existing.sizeBytes
	}
	c.entries[key] = &cacheEntry{
		key:       key,
		path:      path,
		sizeBytes: size,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.totalSize += size
	c.touchLocked(key)
	c.evictLocked()
	c.mu.Unlock()
}

func (c *Cache) touchLocked(key string) {
	for i, k := range c.lruKeys {
		if k == key {
			c.lruKeys = append(c.lruKeys[:i], c.lruKeys[i+1:]...)
			break
		}
	}
	c.lruKeys = append(c.lruKeys, key)
}

func (c *Cache) evictLocked() {
	for {
		if c.maxEntries > 0 && len(c.entries) > c.maxEntries {
			c.removeOldestLocked()
			continue
		}
		if c.maxBytes > 0 && c.totalSize > c.maxBytes {
			c.removeOldestLocked()
			continue
		}
		break
	}
}

func (c *Cache) removeOldestLocked() {
	if len(c.lruKeys) == 0 {
		return
	}
	key := c.lruKeys[0]
	c.lruKeys = c.lruKeys[1:]
	c.removeEntryLocked(key)
}

func (c *Cache) removeEntryLocked(key string) {
	entry, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	c.totalSize -= entry.sizeBytes
	_ = os.RemoveAll(entry.path)
}

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
