package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensic_audit/pkg/core/calc"
)

func sampleRecords() []calc.FinancialRecord {
	return []calc.FinancialRecord{
		{Period: 2020, Sales: calc.Float(5000), TotalAssets: calc.Float(15000)},
		{Period: 2021, Sales: calc.Float(6000), TotalAssets: calc.Float(16000)},
	}
}

func testCaches(t *testing.T) map[string]*ExtractionCache {
	t.Helper()
	caches := map[string]*ExtractionCache{
		"file": NewExtractionCache(nil, t.TempDir(), nil),
	}

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		return caches
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, InitSchema(ctx, pool))
	_, err = pool.Exec(ctx, `DELETE FROM extraction_cache`)
	require.NoError(t, err)
	caches["postgres"] = NewExtractionCache(pool, "", nil)
	return caches
}

func TestExtractionCache_RoundTrip(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			got, err := c.Get(ctx, "abc123", "gemini")
			require.NoError(t, err)
			assert.Nil(t, got, "miss is (nil, nil)")

			entry := &CacheEntry{Digest: "abc123", Provider: "gemini", DocumentName: "10k.pdf", Records: sampleRecords()}
			require.NoError(t, c.Put(ctx, entry))
			_, err = uuid.Parse(entry.ID)
			assert.NoError(t, err, "Put assigns a uuid")
			assert.False(t, entry.ExtractedAt.IsZero())

			got, err = c.Get(ctx, "abc123", "gemini")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, entry.ID, got.ID)
			assert.Equal(t, "10k.pdf", got.DocumentName)
			require.Len(t, got.Records, 2)
			v, ok := got.Records[1].Get(calc.Sales)
			require.True(t, ok)
			assert.Equal(t, 6000.0, v)
			_, ok = got.Records[1].Get(calc.COGS)
			assert.False(t, ok, "absent fields stay absent")

			other, err := c.Get(ctx, "abc123", "deepseek")
			require.NoError(t, err)
			assert.Nil(t, other, "provider is part of the key")
		})
	}
}

func TestExtractionCache_PutReplaces(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, c.Put(ctx, &CacheEntry{Digest: "d", Provider: "p", Records: sampleRecords()}))
			require.NoError(t, c.Put(ctx, &CacheEntry{Digest: "d", Provider: "p", Records: sampleRecords()[:1], ExtractedAt: time.Now()}))

			got, err := c.Get(ctx, "d", "p")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Len(t, got.Records, 1)
		})
	}
}

func TestExtractionCache_DeleteAndClear(t *testing.T) {
	for name, c := range testCaches(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, d := range []string{"a", "b", "c"} {
				require.NoError(t, c.Put(ctx, &CacheEntry{Digest: d, Provider: "local", Records: sampleRecords()}))
			}

			require.NoError(t, c.Delete(ctx, "a", "local"))
			require.NoError(t, c.Delete(ctx, "a", "local"), "deleting twice is fine")
			got, err := c.Get(ctx, "a", "local")
			require.NoError(t, err)
			assert.Nil(t, got)

			n, err := c.Clear(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			got, err = c.Get(ctx, "b", "local")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestExtractionCache_PutValidation(t *testing.T) {
	c := NewExtractionCache(nil, t.TempDir(), nil)
	assert.Error(t, c.Put(context.Background(), &CacheEntry{Provider: "p"}))
}

func TestExtractionCache_CorruptFileIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewExtractionCache(nil, dir, nil)
	require.NoError(t, os.WriteFile(c.entryPath("d", "p"), []byte("{not json"), 0o644))

	got, err := c.Get(context.Background(), "d", "p")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExtractionCache_EntryPathSanitized(t *testing.T) {
	c := NewExtractionCache(nil, t.TempDir(), nil)
	path := c.entryPath("../../etc", "a/b c")
	assert.Equal(t, c.fileDir, filepath.Dir(path))
	assert.Equal(t, "....etc_a-b-c.json", filepath.Base(path))
}
