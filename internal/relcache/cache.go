package relcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"log/slog"

	"anisync/internal/logging"
	"anisync/internal/services"
)

// Relation records one resolved cross-catalog identity pair.
type Relation struct {
	SourceID int       `json:"source_id"` // Annict work id
	TargetID int       `json:"target_id"` // AniList media id
	Title    string    `json:"title"`     // title at the time of the match
	CachedAt time.Time `json:"cached_at"`
}

type pairKey struct {
	source int
	target int
}

// Cache provides thread-safe access to the relation file. Rows keep their
// file order across rewrites; when several rows claim the same id the oldest
// one wins lookups.
type Cache struct {
	path   string
	logger *slog.Logger

	mu            sync.RWMutex
	rows          []Relation
	bySource      map[int]int // source id → index of its oldest row
	byTarget      map[int]int
	pairs         map[pairKey]struct{}
	writeFailures int
	lastWriteErr  error
}

// Open loads the relation cache at path. A missing or empty file starts a
// fresh cache; an unparseable file is a hard error, because guessing at
// partially readable identity data could silently produce false matches.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("relation cache path cannot be empty")
	}
	c := &Cache{
		path:   path,
		logger: logging.WithComponent(logger, "relcache"),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// Lookup returns the oldest relation recorded for the given source id.
func (c *Cache) Lookup(sourceID int) (Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.bySource[sourceID]
	if !ok {
		return Relation{}, false
	}
	return c.rows[idx], true
}

// LookupByTarget returns the oldest relation recorded for the given target id.
func (c *Cache) LookupByTarget(targetID int) (Relation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.byTarget[targetID]
	if !ok {
		return Relation{}, false
	}
	return c.rows[idx], true
}

// Append records a relation and persists the file before returning. Appending
// a pair that is already present is a no-op. A failed write is retried once;
// when the retry also fails the row stays in memory (the next successful
// rewrite will carry it) and the error is returned for the caller to log.
func (c *Cache) Append(rel Relation) error {
	if rel.SourceID <= 0 || rel.TargetID <= 0 {
		return errors.New("relation needs both catalog ids")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pairKey{rel.SourceID, rel.TargetID}
	if _, ok := c.pairs[key]; ok {
		return nil
	}
	if rel.CachedAt.IsZero() {
		rel.CachedAt = time.Now().UTC()
	}
	c.rows = append(c.rows, rel)
	c.indexRow(len(c.rows) - 1)

	if err := c.save(); err != nil {
		c.logger.Warn("relation cache write failed, retrying",
			logging.String("path", c.path),
			logging.Error(err))
		if err = c.save(); err != nil {
			c.writeFailures++
			c.lastWriteErr = err
			return services.Wrap(services.ErrCacheWrite, "relcache", "append", "persist relation", err)
		}
	}
	c.writeFailures = 0
	c.lastWriteErr = nil

	c.logger.Debug("cached relation",
		logging.Int("source_id", rel.SourceID),
		logging.Int("target_id", rel.TargetID),
		logging.String("title", rel.Title))
	return nil
}

// WriteHealth reports whether appends are still reaching disk. Two
// consecutive failed appends poison the cache: resolved matches are being
// lost, so the caller should abort the run instead of continuing.
func (c *Cache) WriteHealth() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.writeFailures >= 2 {
		message := fmt.Sprintf("%d consecutive append failures", c.writeFailures)
		return services.Wrap(services.ErrCacheWrite, "relcache", "append", message, c.lastWriteErr)
	}
	return nil
}

// List returns a copy of all relations in file order, oldest first. The
// position in this list (1-based) is the number Remove accepts.
func (c *Cache) List() []Relation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]Relation, len(c.rows))
	copy(rows, c.rows)
	return rows
}

// Remove deletes the numbered relation as shown by List and persists the
// change.
func (c *Cache) Remove(number int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if number < 1 || number > len(c.rows) {
		return fmt.Errorf("relation %d not found (cache holds %d)", number, len(c.rows))
	}
	removed := c.rows[number-1]
	c.rows = append(c.rows[:number-1], c.rows[number:]...)
	c.reindex()

	if err := c.save(); err != nil {
		return fmt.Errorf("persist relation cache: %w", err)
	}
	c.logger.Debug("removed relation",
		logging.Int("source_id", removed.SourceID),
		logging.Int("target_id", removed.TargetID))
	return nil
}

// Clear removes all relations and persists the empty cache.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rows = nil
	c.reindex()

	if err := c.save(); err != nil {
		return fmt.Errorf("persist relation cache: %w", err)
	}
	c.logger.Debug("cleared relation cache")
	return nil
}

// Count returns the number of relations in the cache.
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}

func (c *Cache) load() error {
	c.reindex()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // fresh start
		}
		return fmt.Errorf("read relation cache: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var rows []Relation
	if err := json.Unmarshal(data, &rows); err != nil {
		return services.Wrap(services.ErrMalformedCache, "relcache", "load", "parse relation cache file", err)
	}

	c.rows = rows
	c.reindex()

	c.logger.Debug("loaded relation cache",
		logging.Int("relation_count", len(c.rows)),
		logging.String("path", c.path))
	return nil
}

// reindex rebuilds the lookup maps from the row slice. First occurrence wins
// so the oldest row for an id stays authoritative.
func (c *Cache) reindex() {
	c.bySource = make(map[int]int, len(c.rows))
	c.byTarget = make(map[int]int, len(c.rows))
	c.pairs = make(map[pairKey]struct{}, len(c.rows))
	for i := range c.rows {
		c.indexRow(i)
	}
}

func (c *Cache) indexRow(i int) {
	row := c.rows[i]
	if row.SourceID <= 0 || row.TargetID <= 0 {
		return
	}
	if _, ok := c.bySource[row.SourceID]; !ok {
		c.bySource[row.SourceID] = i
	}
	if _, ok := c.byTarget[row.TargetID]; !ok {
		c.byTarget[row.TargetID] = i
	}
	c.pairs[pairKey{row.SourceID, row.TargetID}] = struct{}{}
}

// save writes the full row list to disk atomically, preserving file order.
func (c *Cache) save() error {
	rows := c.rows
	if rows == nil {
		rows = []Relation{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal relation cache: %w", err)
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
