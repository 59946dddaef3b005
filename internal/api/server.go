// Package api serves the read-only query surface over the persisted
// entities. It exercises none of the ingestion logic.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radiocrate/radiocrate/internal/search"
	"github.com/radiocrate/radiocrate/internal/store"
)

// Server exposes broadcasts, playlists, and fuzzy entity search.
type Server struct {
	store    store.Store
	searcher *search.Searcher
	logger   *zap.Logger
	router   chi.Router
}

func NewServer(st store.Store, searcher *search.Searcher, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	s := &Server{store: st, searcher: searcher, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(r chi.Router) {
		r.Get("/broadcasts", s.handleListBroadcasts)
		r.Get("/broadcasts/{id}/playlists", s.handleBroadcastPlaylists)
		r.Get("/search", s.handleSearch)
	})
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type broadcastResponse struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	PriorTitle    string     `json:"prior_title,omitempty"`
	URL           string     `json:"url"`
	AirDay        *int       `json:"air_day,omitempty"`
	FrequencyDays int        `json:"frequency_days"`
	Active        bool       `json:"active"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
}

func (s *Server) handleListBroadcasts(w http.ResponseWriter, r *http.Request) {
	broadcasts, err := s.store.ListBroadcasts(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]broadcastResponse, 0, len(broadcasts))
	for _, b := range broadcasts {
		out = append(out, broadcastResponse{
			ID:            b.ID,
			Title:         b.Title,
			PriorTitle:    b.PriorTitle,
			URL:           b.URL,
			AirDay:        b.AirDay,
			FrequencyDays: b.FrequencyDays,
			Active:        b.Active,
			LastScrapedAt: b.LastScrapedAt,
		})
	}
	s.respond(w, http.StatusOK, out)
}

type playlistResponse struct {
	ID                 int64     `json:"id"`
	Title              string    `json:"title"`
	AirDate            time.Time `json:"air_date"`
	URL                string    `json:"url"`
	DownloadURL1       string    `json:"download_url_1,omitempty"`
	DownloadURL2       string    `json:"download_url_2,omitempty"`
	OriginalPlaylistID *int64    `json:"original_playlist_id,omitempty"`
}

func (s *Server) handleBroadcastPlaylists(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.fail(w, http.StatusBadRequest, errors.New("broadcast id must be an integer"))
		return
	}
	playlists, err := s.store.PlaylistsByBroadcast(r.Context(), id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]playlistResponse, 0, len(playlists))
	for _, pl := range playlists {
		out = append(out, playlistResponse{
			ID:                 pl.ID,
			Title:              pl.Title,
			AirDate:            pl.AirDate,
			URL:                pl.URL,
			DownloadURL1:       pl.DownloadURL1,
			DownloadURL2:       pl.DownloadURL2,
			OriginalPlaylistID: pl.OriginalPlaylistID,
		})
	}
	s.respond(w, http.StatusOK, out)
}

type matchResponse struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
}

type bandResponse struct {
	Threshold float64         `json:"threshold"`
	Truncated bool            `json:"truncated,omitempty"`
	Matches   []matchResponse `json:"matches"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		s.fail(w, http.StatusBadRequest, errors.New("q is required"))
		return
	}
	kind, err := store.KindFromString(r.URL.Query().Get("entity"))
	if err != nil {
		s.fail(w, http.StatusBadRequest, err)
		return
	}

	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			s.fail(w, http.StatusBadRequest, errors.New("threshold must be a number"))
			return
		}
		matches, err := s.searcher.FuzzyFind(r.Context(), kind, q, threshold)
		if err != nil {
			s.fail(w, http.StatusBadRequest, err)
			return
		}
		s.respond(w, http.StatusOK, toMatchResponses(matches))
		return
	}

	bands, err := s.searcher.FindAcrossThresholds(r.Context(), kind, q,
		0.3, 0.9, search.DefaultBandStep, search.DefaultMaxRowsPerBand)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]bandResponse, 0, len(bands))
	for _, band := range bands {
		out = append(out, bandResponse{
			Threshold: band.Threshold,
			Truncated: band.Truncated,
			Matches:   toMatchResponses(band.Matches),
		})
	}
	s.respond(w, http.StatusOK, out)
}

func toMatchResponses(matches []store.Match) []matchResponse {
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchResponse{ID: m.ID, Name: m.Name, Similarity: m.Similarity})
	}
	return out
}

func (s *Server) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respond(w, status, map[string]string{"error": err.Error()})
}
