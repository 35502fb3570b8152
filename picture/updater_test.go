package picture

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePictureStore struct {
	labels    []string
	ids       []string
	imageURLs map[string]string
}

func (f *fakePictureStore) ListEntityLabels(ctx context.Context) ([]string, error) {
	return f.labels, nil
}

func (f *fakePictureStore) SelectEntityIDsByLabel(ctx context.Context, label string) ([]string, error) {
	return f.ids, nil
}

func (f *fakePictureStore) SetImageURL(ctx context.Context, id string, imageURL string) error {
	if f.imageURLs == nil {
		f.imageURLs = map[string]string{}
	}
	f.imageURLs[id] = imageURL
	return nil
}

func testUpdater(t *testing.T, store Store, summaryURL string) *Updater {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	updater, err := newUpdater(store, summaryURL, 0, 0, logger)
	require.NoError(t, err)
	return updater
}

func TestUpdater(t *testing.T) {
	t.Run("Invalid call NewUpdater with nil store", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		_, err := NewUpdater(nil, logger)
		assert.Error(t, err)
	})

	t.Run("Thumbnails are stored per entity", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			term, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/"))
			require.NoError(t, err)
			switch term {
			case "阿司匹林":
				w.Write([]byte(`{"thumbnail": {"source": "https://upload.wikimedia.org/aspirin.jpg"}}`))
			case "无图条目":
				w.Write([]byte(`{"extract": "没有缩略图。"}`))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		store := &fakePictureStore{ids: []string{"阿司匹林", "无图条目", "没有条目"}}
		updater := testUpdater(t, store, server.URL+"/")

		stats, err := updater.ProcessLabel(context.Background(), "药物")
		require.NoError(t, err)

		assert.Equal(t, Stats{Total: 3, Success: 1, NotFound: 2}, stats)
		assert.Equal(t, "https://upload.wikimedia.org/aspirin.jpg", store.imageURLs["阿司匹林"])
	})

	t.Run("Server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"thumbnail": {"source": "https://upload.wikimedia.org/retry.jpg"}}`))
		}))
		defer server.Close()

		store := &fakePictureStore{ids: []string{"脑卒中"}}
		updater := testUpdater(t, store, server.URL+"/")

		stats, err := updater.ProcessLabel(context.Background(), "疾病")
		require.NoError(t, err)

		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, 1, stats.Success)
		assert.Equal(t, "https://upload.wikimedia.org/retry.jpg", store.imageURLs["脑卒中"])
	})

	t.Run("Exhausted retries count as failed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		store := &fakePictureStore{ids: []string{"脑卒中"}}
		updater := testUpdater(t, store, server.URL+"/")

		stats, err := updater.ProcessLabel(context.Background(), "疾病")
		require.NoError(t, err)

		assert.Equal(t, Stats{Total: 1, Failed: 1}, stats)
		assert.Empty(t, store.imageURLs)
	})

	t.Run("Cancellation stops the label run", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"thumbnail": {"source": "https://upload.wikimedia.org/x.jpg"}}`))
		}))
		defer server.Close()

		store := &fakePictureStore{ids: []string{"a", "b", "c"}}
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		updater, err := newUpdater(store, server.URL+"/", time.Hour, 0, logger)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		_, err = updater.ProcessLabel(ctx, "药物")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
