// Package authcache avoids redundant UI logins by reusing recently
// established sessions per identity. A full browser login costs several
// seconds; a cache hit costs a map lookup.
package authcache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/caretqa/api/schemas"
	"github.com/xkilldash9x/caretqa/internal/auth"
)

const (
	cacheFileName = "sessions.json"

	// expiringSoonMargin is how close to the freshness boundary a session must
	// be to count as "expiring soon" in Stats.
	expiringSoonMargin = 5 * time.Minute
)

// Stats classifies every cached entry by age bucket.
type Stats struct {
	Total        int
	Valid        int
	ExpiringSoon int
	Expired      int
}

// Cache maps identities to their most recent Session. Construct one per
// harness run and pass it by reference; there is no package-level instance.
type Cache struct {
	authenticator auth.Authenticator
	logger        *zap.Logger
	freshness     time.Duration
	dir           string

	// group deduplicates concurrent misses for the same identity: followers
	// wait for the in-flight login instead of starting their own browser.
	group singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*schemas.Session

	// now is swappable for tests.
	now func() time.Time
}

// New creates an empty cache. dir may be "" to disable disk persistence.
func New(authenticator auth.Authenticator, freshness time.Duration, dir string, logger *zap.Logger) *Cache {
	return &Cache{
		authenticator: authenticator,
		logger:        logger.Named("authcache"),
		freshness:     freshness,
		dir:           dir,
		sessions:      make(map[string]*schemas.Session),
		now:           time.Now,
	}
}

// GetOrCreate returns a fresh cached session for the identity, or performs a
// login when none exists. Authentication failure leaves the cache unchanged.
func (c *Cache) GetOrCreate(ctx context.Context, creds schemas.Credentials) (*schemas.Session, error) {
	if s := c.lookupFresh(creds.Identity); s != nil {
		c.logger.Debug("Session cache hit", zap.String("identity", creds.Identity), zap.Duration("age", s.Age(c.now())))
		return s, nil
	}

	result, err, shared := c.group.Do(creds.Identity, func() (any, error) {
		// A concurrent caller may have completed a login while this one was
		// queued behind the singleflight key.
		if s := c.lookupFresh(creds.Identity); s != nil {
			return s, nil
		}

		c.logger.Info("Session cache miss, authenticating", zap.String("identity", creds.Identity))
		session, err := c.authenticator.Login(ctx, creds)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.sessions[creds.Identity] = session
		c.mu.Unlock()
		return session, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("Joined in-flight authentication", zap.String("identity", creds.Identity))
	}
	return result.(*schemas.Session), nil
}

// Invalidate removes a single identity's cached session.
func (c *Cache) Invalidate(identity string) {
	c.mu.Lock()
	delete(c.sessions, identity)
	c.mu.Unlock()
}

// Stats buckets every cached entry by age: valid below the expiring-soon
// margin, expiring soon just under the freshness boundary, expired beyond it.
func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{Total: len(c.sessions)}
	soonBoundary := c.freshness - expiringSoonMargin
	for _, s := range c.sessions {
		age := s.Age(now)
		switch {
		case age >= c.freshness:
			stats.Expired++
		case age >= soonBoundary:
			stats.ExpiringSoon++
		default:
			stats.Valid++
		}
	}
	return stats
}

// LoadFromDisk merges non-stale entries from the cache file into memory.
// Failure to read is a logged warning, never an error: a cold start just
// means logins happen again.
func (c *Cache) LoadFromDisk() {
	if c.dir == "" {
		return
	}
	path := filepath.Join(c.dir, cacheFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn("Failed to read session cache file", zap.String("path", path), zap.Error(err))
		}
		return
	}

	var stored map[string]*schemas.Session
	if err := json.Unmarshal(data, &stored); err != nil {
		c.logger.Warn("Session cache file is corrupt, ignoring", zap.String("path", path), zap.Error(err))
		return
	}

	now := c.now()
	loaded, discarded := 0, 0

	c.mu.Lock()
	for identity, s := range stored {
		if s == nil || !s.Fresh(now, c.freshness) {
			discarded++
			continue
		}
		c.sessions[identity] = s
		loaded++
	}
	c.mu.Unlock()

	c.logger.Info("Loaded session cache from disk",
		zap.String("path", path), zap.Int("loaded", loaded), zap.Int("discarded_stale", discarded))
}

// SaveToDisk writes the whole in-memory map to the cache file using write to
// a temp file plus rename, so a crashed or concurrent writer never leaves a
// half-written file behind. Best effort: failures are logged, not returned.
func (c *Cache) SaveToDisk() {
	if c.dir == "" {
		return
	}

	c.mu.RLock()
	data, err := json.MarshalIndent(c.sessions, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		c.logger.Warn("Failed to serialize session cache", zap.Error(err))
		return
	}

	if err := os.MkdirAll(c.dir, 0o700); err != nil {
		c.logger.Warn("Failed to create session cache directory", zap.String("dir", c.dir), zap.Error(err))
		return
	}

	path := filepath.Join(c.dir, cacheFileName)
	tmp, err := os.CreateTemp(c.dir, cacheFileName+".tmp-*")
	if err != nil {
		c.logger.Warn("Failed to create temp cache file", zap.Error(err))
		return
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		c.logger.Warn("Failed to write session cache", zap.Error(err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		c.logger.Warn("Failed to close temp cache file", zap.Error(err))
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		c.logger.Warn("Failed to replace session cache file", zap.String("path", path), zap.Error(err))
		return
	}

	c.logger.Debug("Saved session cache to disk", zap.String("path", path))
}

func (c *Cache) lookupFresh(identity string) *schemas.Session {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.sessions[identity]; ok && s.Fresh(now, c.freshness) {
		return s
	}
	return nil
}

// Put stores a session directly, bypassing authentication. Used by tests and
// by callers that obtained a session elsewhere.
func (c *Cache) Put(session *schemas.Session) error {
	if session == nil || session.Identity == "" {
		return fmt.Errorf("session must carry an identity")
	}
	c.mu.Lock()
	c.sessions[session.Identity] = session
	c.mu.Unlock()
	return nil
}
