package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/radiocrate/radiocrate/internal/search"
	"github.com/radiocrate/radiocrate/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	mem := store.NewMemory()
	searcher := search.NewSearcher(mem, logger)
	return NewServer(mem, searcher, prometheus.NewRegistry(), logger), mem
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListBroadcasts(t *testing.T) {
	s, mem := newTestServer(t)
	ctx := context.Background()

	st, err := mem.FindOrCreateStation(ctx, store.Station{Name: "XRAY"})
	require.NoError(t, err)
	_, err = mem.FindOrCreateBroadcast(ctx, store.Broadcast{
		StationID: st.ID, Title: "Strange Babes", URL: "https://xray.fm/programs/strange-babes",
	})
	require.NoError(t, err)

	rec := get(t, s, "/v1/broadcasts")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []broadcastResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Strange Babes", out[0].Title)
}

func TestBroadcastPlaylists(t *testing.T) {
	s, mem := newTestServer(t)
	ctx := context.Background()

	st, err := mem.FindOrCreateStation(ctx, store.Station{Name: "XRAY"})
	require.NoError(t, err)
	bc, err := mem.FindOrCreateBroadcast(ctx, store.Broadcast{
		StationID: st.ID, Title: "Strange Babes", URL: "https://xray.fm/programs/strange-babes",
	})
	require.NoError(t, err)
	err = mem.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.UpsertPlaylist(ctx, store.Playlist{
			BroadcastID: bc.ID, StationID: st.ID, Title: "Ep 103",
			AirDate: time.Date(2024, 3, 19, 20, 0, 0, 0, time.UTC),
			URL:     "https://xray.fm/broadcasts/103",
		})
		return err
	})
	require.NoError(t, err)

	rec := get(t, s, "/v1/broadcasts/1/playlists")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []playlistResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Ep 103", out[0].Title)

	rec = get(t, s, "/v1/broadcasts/notanumber/playlists")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchValidation(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/search?entity=artist").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/search?entity=dragon&q=x").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/v1/search?entity=artist&q=x&threshold=2").Code)
}

func TestSearchWithThreshold(t *testing.T) {
	s, mem := newTestServer(t)
	err := mem.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.CreateEntity(ctx, store.Entity{
			Kind: store.KindArtist, Name: "Sonic Youth", Normalized: "sonic youth",
		})
		return err
	})
	require.NoError(t, err)

	rec := get(t, s, "/v1/search?entity=artist&q=Sonic+Youth&threshold=0.5")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []matchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Sonic Youth", out[0].Name)
}

func TestSearchBands(t *testing.T) {
	s, mem := newTestServer(t)
	err := mem.WithTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, err := tx.CreateEntity(ctx, store.Entity{
			Kind: store.KindArtist, Name: "Sonic Youth", Normalized: "sonic youth",
		})
		return err
	})
	require.NoError(t, err)

	rec := get(t, s, "/v1/search?entity=artist&q=Sonic+Youth")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []bandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 7, "bands from 0.9 down to 0.3")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
