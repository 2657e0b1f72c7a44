// Package cachestore implements the Cache Store: a filesystem-backed
// key/value store with three named partitions, TTL expiry, LRU size
// enforcement, atomic writes, and path-traversal defenses.
//
// The filesystem is abstracted behind afero.Fs so tests substitute
// afero.NewMemMapFs() for the production afero.NewOsFs().
package cachestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"subaddon/models"
)

const (
	// PermanentSizeCapBytes is the soft cap on the permanent partition's
	// total size (≈50 GiB).
	PermanentSizeCapBytes = 50 * 1024 * 1024 * 1024
	evictionTargetRatio = 0.9

	defaultBypassTTL = 12 * time.Hour
	defaultPartialTTL = time.Hour

	maxSanitizedNameBytes = 200
	truncatedNameBytes = 150
)

var reDisallowedChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Store is a filesystem-backed, partitioned cache over an afero.Fs.
type Store struct {
	fs afero.Fs
	root string

	mu sync.Mutex
	logger *slog.Logger
}

func New(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root, logger: slog.Default().With("component", "cachestore")}
}

// EnsureDirs creates the three partition directories.
func (s *Store) EnsureDirs() error {
	for _, p := range []models.Partition{models.PartitionTranslation, models.PartitionBypass, models.PartitionPartial} {
		if err := s.fs.MkdirAll(s.partitionRoot(p), 0o755); err != nil {
			return fmt.Errorf("cachestore: ensure dir %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) partitionRoot(partition models.Partition) string {
	return filepath.Join(s.root, string(partition))
}

// SanitizeKey sanitizes a cache key for filesystem use: strip `..`,
// replace path separators with `_`, strip all but [A-Za-z0-9_-]; if the
// result exceeds 200 bytes, truncate to 150 and append a hex SHA-256
// prefix of the original for disambiguation. Sanitizing an
// already-sanitized key is a fixed point.
func SanitizeKey(key string) string {
	cleaned := strings.ReplaceAll(key, "..", "")
	cleaned = strings.ReplaceAll(cleaned, "/", "_")
	cleaned = strings.ReplaceAll(cleaned, "\\", "_")
	cleaned = reDisallowedChars.ReplaceAllString(cleaned, "")

	if len(cleaned) <= maxSanitizedNameBytes {
		return cleaned
	}

	sum := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(sum[:])
	return cleaned[:truncatedNameBytes] + "_" + hash[:16]
}

// resolvePath builds the full path for a sanitized key within a
// partition's root and verifies it still resolves inside that root,
// defending against any sanitization gap (testable property
// 6).
func (s *Store) resolvePath(partition models.Partition, sanitizedKey string) (string, error) {
	root := s.partitionRoot(partition)
	full := filepath.Join(root, sanitizedKey+".json")

	cleanRoot := filepath.Clean(root) + string(filepath.Separator)
	cleanFull := filepath.Clean(full)
	if !strings.HasPrefix(cleanFull+string(filepath.Separator), cleanRoot) && cleanFull != filepath.Clean(root) {
		return "", fmt.Errorf("cachestore: path %q escapes partition root %q", cleanFull, root)
	}
	return cleanFull, nil
}

// Get reads an entry. Expired entries are deleted and reported as a miss.
// For the bypass partition, a request with no userHash, or an entry with no
// stored ConfigHash, is always a miss — "" != "" would otherwise compare
// equal and let one anonymous caller read another anonymous caller's
// bypass-scoped translation. Only a non-empty, exact ConfigHash/userHash
// match is ever served from this partition.
func (s *Store) Get(partition models.Partition, key string, userHash string) (*models.CacheEntry, bool) {
	sanitized := SanitizeKey(key)
	path, err := s.resolvePath(partition, sanitized)
	if err != nil {
		s.logger.Warn("path resolution rejected", "error", err)
		return nil, false
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, false
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("corrupt cache entry, deleting", "path", path)
		_ = s.fs.Remove(path)
		return nil, false
	}

	if entry.Expired(now()) {
		_ = s.fs.Remove(path)
		return nil, false
	}

	if partition == models.PartitionBypass {
		if userHash == "" || entry.ConfigHash == "" || entry.ConfigHash != userHash {
			return nil, false
		}
	}

	s.touch(path)
	return &entry, true
}

// Set writes an entry atomically: write to <name>.tmp, fsync (best-effort),
// rename to <name>.
func (s *Store) Set(partition models.Partition, key string, entry models.CacheEntry, ttl time.Duration) error {
	entry.Key = key
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	if ttl > 0 {
		expires := entry.CreatedAt.Add(ttl)
		entry.ExpiresAt = &expires
	} else if partition != models.PartitionTranslation && entry.ExpiresAt == nil {
		entry.ExpiresAt = defaultExpiry(partition, entry.CreatedAt)
	}

	sanitized := SanitizeKey(key)
	path, err := s.resolvePath(partition, sanitized)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	f, err := s.fs.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("cachestore: write temp: %w", err)
	}
	_, werr := f.Write(data)
	_ = f.Sync() // best-effort
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("cachestore: write temp: %w", werr)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		_ = s.fs.Remove(tmpPath)
		return fmt.Errorf("cachestore: rename: %w", err)
	}

	if partition == models.PartitionTranslation {
		s.enforceSizeCap()
	}
	return nil
}

func defaultExpiry(partition models.Partition, created time.Time) *time.Time {
	var ttl time.Duration
	switch partition {
	case models.PartitionBypass:
		ttl = defaultBypassTTL
	case models.PartitionPartial:
		ttl = defaultPartialTTL
	default:
		return nil
	}
	expires := created.Add(ttl)
	return &expires
}

// Delete removes an entry, ignoring a not-found error.
func (s *Store) Delete(partition models.Partition, key string) error {
	sanitized := SanitizeKey(key)
	path, err := s.resolvePath(partition, sanitized)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(path); err != nil && !isNotExist(err) {
		return err
	}
	return nil
}

// touch updates the access-time tracker used for LRU ordering by setting
// both the access and modification times to now; enforceSizeCap orders by
// modification time. afero's MemMapFs and OsFs both support Chtimes; on
// backends where it is a no-op, that order is the order of the last write.
func (s *Store) touch(path string) {
	t := now()
	_ = s.fs.Chtimes(path, t, t)
}

// Sweep performs the integrity sweep: delete corrupt and expired entries
// across all partitions. Intended to run at startup and periodically.
func (s *Store) Sweep() {
	for _, partition := range []models.Partition{models.PartitionTranslation, models.PartitionBypass, models.PartitionPartial} {
		s.sweepPartition(partition)
	}
}

func (s *Store) sweepPartition(partition models.Partition) {
	root := s.partitionRoot(partition)
	infos, err := afero.ReadDir(s.fs, root)
	if err != nil {
		return
	}
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		path := filepath.Join(root, info.Name())
		data, err := afero.ReadFile(s.fs, path)
		if err != nil {
			continue
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			_ = s.fs.Remove(path)
			continue
		}
		if entry.Expired(now()) {
			_ = s.fs.Remove(path)
		}
	}
}

// enforceSizeCap evicts permanent-partition entries in ascending
// last-access-time order until total size is ≤ 90% of the configured cap.
func (s *Store) enforceSizeCap() {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := s.partitionRoot(models.PartitionTranslation)
	infos, err := afero.ReadDir(s.fs, root)
	if err != nil {
		return
	}

	type fileInfo struct {
		path string
		size int64
		modTime time.Time
	}
	var files []fileInfo
	var total int64
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		total += info.Size()
		files = append(files, fileInfo{
			path: filepath.Join(root, info.Name()),
			size: info.Size(),
			modTime: info.ModTime(),
		})
	}

	if total <= PermanentSizeCapBytes {
		return
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	target := int64(float64(PermanentSizeCapBytes) * evictionTargetRatio)
	for _, f := range files {
		if total <= target {
			break
		}
		if err := s.fs.Remove(f.path); err == nil {
			total -= f.size
		}
	}
}

var nowFunc = time.Now

func now() time.Time { return nowFunc() }

func isNotExist(err error) bool {
	return os.IsNotExist(err)
}
