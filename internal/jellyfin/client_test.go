package jellyfin

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItem(t *testing.T) {
	t.Run("decodes episode metadata", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/Items/ep1", r.URL.Path)
			assert.Contains(t, r.Header.Get("Authorization"), `MediaBrowser Client="nextup"`)
			assert.Contains(t, r.Header.Get("Authorization"), `Token="secret"`)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"Id": "ep1",
				"Name": "The One Where It Starts",
				"Type": "Episode",
				"SeriesId": "series1",
				"SeasonId": "season1",
				"SeriesName": "Some Show",
				"ParentIndexNumber": 2,
				"IndexNumber": 5,
				"UserData": {"PlaybackPositionTicks": 3000000000, "Played": false}
			}`))
		}))
		defer server.Close()

		client := NewClient(DefaultClientConfig())
		item, err := client.Item(context.Background(), server.URL, "secret", "ep1")

		require.NoError(t, err)
		assert.Equal(t, "ep1", item.ID)
		assert.True(t, item.IsEpisode())
		assert.Equal(t, "series1", item.SeriesID)
		assert.Equal(t, "season1", item.SeasonID)
		require.NotNil(t, item.ParentIndexNumber)
		assert.Equal(t, 2, *item.ParentIndexNumber)
		require.NotNil(t, item.IndexNumber)
		assert.Equal(t, 5, *item.IndexNumber)
		require.NotNil(t, item.UserData)
		assert.Equal(t, int64(3000000000), item.UserData.PlaybackPositionTicks)
		assert.False(t, item.UserData.Played)
	})

	t.Run("http error is returned", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(DefaultClientConfig())
		_, err := client.Item(context.Background(), server.URL, "secret", "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

func TestPlaybackInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Items/ep1/PlaybackInfo", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"PlaySessionId": "ps-42",
			"MediaSources": [{"Id": "ms-1", "MediaStreams": [{"Index": 0, "Type": "Video"}]}]
		}`))
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())
	info, err := client.PlaybackInfo(context.Background(), server.URL, "secret", "ep1")

	require.NoError(t, err)
	assert.Equal(t, "ps-42", info.PlaySessionID)
	require.Len(t, info.MediaSources, 1)
	assert.Equal(t, "ms-1", info.MediaSources[0].ID)
}

func TestEpisodesAndSeasons(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/Shows/series1/Episodes":
			assert.Equal(t, "season1", r.URL.Query().Get("seasonId"))
			assert.NotEmpty(t, r.URL.Query().Get("fields"))
			_, _ = w.Write([]byte(`{"Items": [{"Id": "ep1", "IndexNumber": 1}], "TotalRecordCount": 1}`))
		case "/Shows/series1/Seasons":
			_, _ = w.Write([]byte(`{"Items": [{"Id": "season1", "IndexNumber": 1}, {"Id": "season2", "IndexNumber": 2}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(DefaultClientConfig())

	episodes, err := client.Episodes(context.Background(), server.URL, "secret", "series1", "season1")
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "ep1", episodes[0].ID)

	seasons, err := client.Seasons(context.Background(), server.URL, "secret", "series1")
	require.NoError(t, err)
	assert.Len(t, seasons, 2)
}

func TestReports(t *testing.T) {
	t.Run("start, progress and stopped bodies", func(t *testing.T) {
		var paths []string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paths = append(paths, r.URL.Path)
			switch r.URL.Path {
			case "/Sessions/Playing":
				body := readBody(t, r)
				assert.Contains(t, body, `"PlayMethod":"DirectPlay"`)
				assert.Contains(t, body, `"CanSeek":true`)
				assert.Contains(t, body, `"PositionTicks":0`)
			case "/Sessions/Playing/Progress":
				body := readBody(t, r)
				assert.Contains(t, body, `"PositionTicks":1500000000`)
				assert.Contains(t, body, `"IsPaused":true`)
			case "/Sessions/Playing/Stopped":
				body := readBody(t, r)
				assert.Contains(t, body, `"PositionTicks":2000000000`)
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := NewClient(DefaultClientConfig())
		ctx := context.Background()

		require.NoError(t, client.ReportStart(ctx, server.URL, "tok", "item1", "ms1", "ps1"))
		require.NoError(t, client.ReportProgress(ctx, server.URL, "tok", "item1", "ms1", "ps1", 1500000000, true))
		require.NoError(t, client.ReportStopped(ctx, server.URL, "tok", "item1", "ms1", "ps1", 2000000000))

		assert.Equal(t, []string{"/Sessions/Playing", "/Sessions/Playing/Progress", "/Sessions/Playing/Stopped"}, paths)
	})

	t.Run("200 and 204 both count as success", func(t *testing.T) {
		for _, status := range []int{http.StatusOK, http.StatusNoContent} {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			client := NewClient(DefaultClientConfig())
			assert.NoError(t, client.MarkPlayed(context.Background(), server.URL, "tok", "item1"))
			server.Close()
		}
	})

	t.Run("4xx is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		client := NewClient(DefaultClientConfig())
		err := client.MarkPlayed(context.Background(), server.URL, "bad-token", "item1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "401")
	})
}

func TestStreamURL(t *testing.T) {
	client := NewClient(DefaultClientConfig())
	url := client.StreamURL("http://jf.local:8096/", "tok en", "item1")
	assert.Equal(t, "http://jf.local:8096/Videos/item1/stream?Static=true&api_key=tok+en", url)
}

func readBody(t *testing.T, r *http.Request) string {
	t.Helper()
	data, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return string(data)
}
