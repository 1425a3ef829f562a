package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"forensic_audit/pkg/core/calc"
)

// ExtractionCache caches LLM-extracted line items per document.
// Supports a hybrid vault: DB (primary) + file system (fallback/local).
type ExtractionCache struct {
	pool    *pgxpool.Pool
	fileDir string
	log     *zap.Logger
	mu      sync.Mutex // serializes file writes
}

// CacheEntry is one cached extraction. Key is (Digest, Provider).
type CacheEntry struct {
	ID           string                 `json:"id"`
	Digest       string                 `json:"digest"`
	Provider     string                 `json:"provider"`
	DocumentName string                 `json:"document_name"`
	Records      []calc.FinancialRecord `json:"records"`
	ExtractedAt  time.Time              `json:"extracted_at"`
}

// NewExtractionCache creates a cache. If pool is nil it uses files in dir;
// if both are empty it defaults to .cache/extractions.
func NewExtractionCache(pool *pgxpool.Pool, dir string, log *zap.Logger) *ExtractionCache {
	if log == nil {
		log = zap.NewNop()
	}
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "extractions")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warn("cannot create cache dir", zap.String("dir", dir), zap.Error(err))
		}
	}
	return &ExtractionCache{pool: pool, fileDir: dir, log: log.Named("store")}
}

// Get returns the cached entry, or (nil, nil) on a miss.
func (c *ExtractionCache) Get(ctx context.Context, digest, provider string) (*CacheEntry, error) {
	if c.pool != nil {
		query := `
			SELECT id, document_name, records, extracted_at
			FROM extraction_cache
			WHERE digest = $1 AND provider = $2
			LIMIT 1
		`
		var (
			id          uuid.UUID
			entry       = CacheEntry{Digest: digest, Provider: provider}
			recordsJSON []byte
		)
		err := c.pool.QueryRow(ctx, query, digest, provider).
			Scan(&id, &entry.DocumentName, &recordsJSON, &entry.ExtractedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read db cache: %w", err)
		}
		if err := json.Unmarshal(recordsJSON, &entry.Records); err != nil {
			return nil, fmt.Errorf("failed to unmarshal db cached records: %w", err)
		}
		entry.ID = id.String()
		return &entry, nil
	}

	if c.fileDir != "" {
		return c.loadEntry(c.entryPath(digest, provider))
	}
	return nil, nil
}

// Put stores an entry, replacing any previous one with the same key.
// ID and ExtractedAt are filled in when empty.
func (c *ExtractionCache) Put(ctx context.Context, entry *CacheEntry) error {
	if entry.Digest == "" || entry.Provider == "" {
		return fmt.Errorf("cache entry needs digest and provider")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExtractedAt.IsZero() {
		entry.ExtractedAt = time.Now().UTC()
	}

	if c.pool != nil {
		recordsJSON, err := json.Marshal(entry.Records)
		if err != nil {
			return fmt.Errorf("failed to marshal records: %w", err)
		}
		id, err := uuid.Parse(entry.ID)
		if err != nil {
			return fmt.Errorf("invalid entry id %q: %w", entry.ID, err)
		}
		query := `
			INSERT INTO extraction_cache (id, digest, provider, document_name, records, extracted_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (digest, provider)
			DO UPDATE SET
				document_name = EXCLUDED.document_name,
				records = EXCLUDED.records,
				extracted_at = EXCLUDED.extracted_at
		`
		if _, err := c.pool.Exec(ctx, query, id, entry.Digest, entry.Provider, entry.DocumentName, recordsJSON, entry.ExtractedAt); err != nil {
			return fmt.Errorf("failed to save to db cache: %w", err)
		}
		return nil
	}

	if c.fileDir == "" {
		return nil
	}
	fileBytes, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	path := c.entryPath(entry.Digest, entry.Provider)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, fileBytes, 0o644); err != nil {
		return fmt.Errorf("failed to save to file cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to save to file cache: %w", err)
	}
	return nil
}

// Delete removes one entry. Deleting a missing entry is not an error.
func (c *ExtractionCache) Delete(ctx context.Context, digest, provider string) error {
	if c.pool != nil {
		_, err := c.pool.Exec(ctx, `DELETE FROM extraction_cache WHERE digest = $1 AND provider = $2`, digest, provider)
		if err != nil {
			return fmt.Errorf("failed to delete from db cache: %w", err)
		}
		return nil
	}
	if c.fileDir == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.entryPath(digest, provider)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete from file cache: %w", err)
	}
	return nil
}

// Clear drops every cached entry and reports how many were removed.
func (c *ExtractionCache) Clear(ctx context.Context) (int, error) {
	if c.pool != nil {
		tag, err := c.pool.Exec(ctx, `DELETE FROM extraction_cache`)
		if err != nil {
			return 0, fmt.Errorf("failed to clear db cache: %w", err)
		}
		return int(tag.RowsAffected()), nil
	}
	if c.fileDir == "" {
		return 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	files, err := filepath.Glob(filepath.Join(c.fileDir, "*.json"))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			return n, fmt.Errorf("failed to clear file cache: %w", err)
		}
		n++
	}
	c.log.Info("file cache cleared", zap.Int("entries", n))
	return n, nil
}

// Internal File Helpers

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func (c *ExtractionCache) entryPath(digest, provider string) string {
	name := unsafeKeyChars.ReplaceAllString(digest, "") + "_" + unsafeKeyChars.ReplaceAllString(provider, "-")
	return filepath.Join(c.fileDir, name+".json")
}

func (c *ExtractionCache) loadEntry(path string) (*CacheEntry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file cache: %w", err)
	}
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt file is treated as a miss and overwritten on the next Put.
		c.log.Warn("corrupt cache entry", zap.String("path", path), zap.Error(err))
		return nil, nil
	}
	return &entry, nil
}
