package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justchokingaround/nextup/internal/config"
	"github.com/justchokingaround/nextup/internal/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Init(&config.DatabaseConfig{
		Path:           filepath.Join(t.TempDir(), "test.db"),
		MaxConnections: 1,
	})
	require.NoError(t, err)
	return NewService(db)
}

func record(itemID string, position int, watched bool) database.PlaybackRecord {
	return database.PlaybackRecord{
		ItemID:          itemID,
		ItemName:        "Episode " + itemID,
		SeriesID:        "series1",
		SeriesName:      "Some Show",
		Season:          1,
		Episode:         1,
		PositionSeconds: position,
		DurationSeconds: 1200,
		ProgressPercent: float64(position) / 1200 * 100,
		Watched:         watched,
		StartedAt:       time.Now().Add(-time.Duration(position) * time.Second),
		EndedAt:         time.Now(),
	}
}

func TestSaveProgress(t *testing.T) {
	t.Run("abandoned sessions update in place", func(t *testing.T) {
		svc := newTestService(t)

		require.NoError(t, svc.SaveProgress(record("e1", 100, false)))
		require.NoError(t, svc.SaveProgress(record("e1", 400, false)))

		records, err := svc.Recent(10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 400, records[0].PositionSeconds)
		assert.False(t, records[0].Watched)
	})

	t.Run("watched record clears earlier unwatched rows", func(t *testing.T) {
		svc := newTestService(t)

		require.NoError(t, svc.SaveProgress(record("e1", 100, false)))
		require.NoError(t, svc.SaveProgress(record("e1", 1180, true)))

		records, err := svc.Recent(10)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.True(t, records[0].Watched)
		assert.Equal(t, 1180, records[0].PositionSeconds)
	})

	t.Run("watched rows accumulate across rewatches", func(t *testing.T) {
		svc := newTestService(t)

		require.NoError(t, svc.SaveProgress(record("e1", 1180, true)))
		require.NoError(t, svc.SaveProgress(record("e1", 1190, true)))

		records, err := svc.Recent(10)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("different items do not interfere", func(t *testing.T) {
		svc := newTestService(t)

		require.NoError(t, svc.SaveProgress(record("e1", 100, false)))
		require.NoError(t, svc.SaveProgress(record("e2", 200, false)))

		records, err := svc.Recent(10)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("nil database is an error", func(t *testing.T) {
		svc := NewService(nil)
		assert.Error(t, svc.SaveProgress(record("e1", 100, false)))
	})
}

func TestBookmarks(t *testing.T) {
	t.Run("upserts one bookmark per series", func(t *testing.T) {
		svc := newTestService(t)

		require.NoError(t, svc.SaveBookmark(database.Bookmark{
			SeriesID: "series1", SeriesName: "Some Show",
			SeasonID: "s1", SeasonNumber: 1, Episode: 3,
		}))
		require.NoError(t, svc.SaveBookmark(database.Bookmark{
			SeriesID: "series1", SeriesName: "Some Show",
			SeasonID: "s2", SeasonNumber: 2, Episode: 1,
		}))

		b, err := svc.Bookmark("series1")
		require.NoError(t, err)
		require.NotNil(t, b)
		assert.Equal(t, "s2", b.SeasonID)
		assert.Equal(t, 2, b.SeasonNumber)
		assert.Equal(t, 1, b.Episode)
	})

	t.Run("missing bookmark returns nil without error", func(t *testing.T) {
		svc := newTestService(t)

		b, err := svc.Bookmark("unknown")
		require.NoError(t, err)
		assert.Nil(t, b)
	})
}

func TestRecent(t *testing.T) {
	t.Run("newest first with a limit", func(t *testing.T) {
		svc := newTestService(t)

		for i, id := range []string{"e1", "e2", "e3"} {
			rec := record(id, 100, true)
			rec.EndedAt = time.Now().Add(time.Duration(i) * time.Minute)
			require.NoError(t, svc.SaveProgress(rec))
		}

		records, err := svc.Recent(2)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "e3", records[0].ItemID)
		assert.Equal(t, "e2", records[1].ItemID)
	})

	t.Run("non-positive limit uses the default", func(t *testing.T) {
		svc := newTestService(t)
		require.NoError(t, svc.SaveProgress(record("e1", 100, false)))

		records, err := svc.Recent(0)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
