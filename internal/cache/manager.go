package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/codelineage/internal/analysis"
	"github.com/rohankatakam/codelineage/internal/config"
)

const bucketName = "summaries"

// Entry is one cached analysis summary
type Entry struct {
	Key        string           `json:"key"`
	Repository string           `json:"repository"`
	RunID      string           `json:"run_id"`
	StoredAt   time.Time        `json:"stored_at"`
	Summary    analysis.Summary `json:"summary"`
}

// Stats counts lookups since the manager opened
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Manager keeps summaries in memory backed by a bbolt file on disk
type Manager struct {
	logger   *logrus.Logger
	memCache *cache.Cache
	db       *bolt.DB
	ttl      time.Duration
	now      func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewManager opens the cache under cfg.Directory
func NewManager(cfg config.CacheConfig, logger *logrus.Logger) (*Manager, error) {
	if logger == nil {
		logger = logrus.New()
	}
	// Ensure cache directory exists
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	path := filepath.Join(cfg.Directory, "summaries.db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	memTTL := cfg.TTL
	if memTTL <= 0 {
		memTTL = cache.NoExpiration
	}
	return &Manager{
		logger:   logger,
		memCache: cache.New(memTTL, 10*time.Minute),
		db:       db,
		ttl:      cfg.TTL,
		now:      time.Now,
	}, nil
}

// Key derives the cache key of one repository analysed with opts. Input
// digests change whenever the history file does.
func Key(digest, repository string, opts analysis.Options) string {
	kinds := make([]string, 0, len(opts.BondKinds))
	for _, k := range opts.BondKinds {
		kinds = append(kinds, strings.ToLower(strings.TrimSpace(k)))
	}
	sort.Strings(kinds)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00strict=%t\x00merge=%t\x00%s",
		digest, repository, opts.Strict, opts.SearchMergeParents, strings.Join(kinds, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a live entry. Expired disk entries are removed on read.
func (m *Manager) Get(ctx context.Context, key string) (*Entry, bool, error) {
	// Try memory cache first
	if cached, found := m.memCache.Get(key); found {
		m.hits.Add(1)
		return cached.(*Entry), true, nil
	}

	var data []byte
	err := m.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache: %w", err)
	}
	if data == nil {
		m.misses.Add(1)
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.logger.WithError(err).WithField("key", key).Warn("Dropping unreadable cache entry")
		m.misses.Add(1)
		return nil, false, m.Invalidate(ctx, key)
	}
	if m.expired(&entry) {
		m.logger.WithField("repository", entry.Repository).Debug("Cache entry expired")
		m.misses.Add(1)
		return nil, false, m.Invalidate(ctx, key)
	}

	m.memCache.Set(key, &entry, m.remaining(&entry))
	m.hits.Add(1)
	return &entry, true, nil
}

// Put stores a result summary under key
func (m *Manager) Put(ctx context.Context, key string, res *analysis.Result) error {
	entry := &Entry{
		Key:        key,
		Repository: res.Repository,
		RunID:      res.RunID,
		StoredAt:   m.now().UTC(),
		Summary:    res.Summary,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(key), data)
	}); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}

	m.memCache.Set(key, entry, cache.DefaultExpiration)
	m.logger.WithFields(logrus.Fields{
		"repository": entry.Repository,
		"run_id":     entry.RunID,
	}).Debug("Cached analysis summary")
	return nil
}

// Invalidate removes one key
func (m *Manager) Invalidate(ctx context.Context, key string) error {
	m.memCache.Delete(key)
	return m.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(key))
	})
}

// Clear removes every entry and returns how many disk entries there were
func (m *Manager) Clear(ctx context.Context) (int, error) {
	m.memCache.Flush()
	n := 0
	err := m.db.Update(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketName)).Stats().KeyN
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
	return n, err
}

// Stats returns hit and miss counts
func (m *Manager) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}

// Close closes the disk cache
func (m *Manager) Close() error {
	return m.db.Close()
}

func (m *Manager) expired(e *Entry) bool {
	return m.ttl > 0 && m.now().After(e.StoredAt.Add(m.ttl))
}

func (m *Manager) remaining(e *Entry) time.Duration {
	if m.ttl <= 0 {
		return cache.NoExpiration
	}
	return e.StoredAt.Add(m.ttl).Sub(m.now())
}
