// Package server implements the wire API of spec §6: HTTP framing and
// request routing are named external collaborators (spec §1 "deliberately
// out of scope"), so this package is a thin net/http adapter over
// internal/query — no router dependency, just the Go 1.22+ ServeMux
// method+wildcard patterns.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fths/urldex/internal/config"
	"github.com/fths/urldex/internal/query"
	"github.com/fths/urldex/internal/xerrors"
)

// Server answers the wire API against an Engine snapshot per request.
type Server struct {
	engine *query.Engine
	cfg    config.Config
	log    *slog.Logger
}

// New builds a Server over an already-open query engine.
func New(engine *query.Engine, cfg config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, cfg: cfg, log: log}
}

// Handler builds the route table of spec §6.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/domain/{domain}", s.handleDomain)
	mux.HandleFunc("GET /v1/domain/{domain}/datasets/{dataset_id}/urls", s.handleURLs)
	return s.withLogging(mux)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

type datasetEntry struct {
	DatasetID   uint32 `json:"dataset_id"`
	URLCountEst *int64 `json:"url_count_est"`
}

type domainResponse struct {
	Domain   string         `json:"domain"`
	DomainID uint64         `json:"domain_id"`
	Datasets []datasetEntry `json:"datasets"`
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain must not be empty")
		return
	}

	ctx := r.Context()
	result, err := s.engine.DatasetsOf(ctx, domain)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	resp := domainResponse{Domain: result.Domain, DomainID: result.DomainID, Datasets: make([]datasetEntry, len(result.DatasetIDs))}
	for i, id := range result.DatasetIDs {
		resp.Datasets[i] = datasetEntry{DatasetID: id, URLCountEst: nil}
	}
	writeJSON(w, http.StatusOK, resp)
}

type urlItem struct {
	URLID uint64 `json:"url_id"`
	URL   string `json:"url"`
	Ts    *int64 `json:"ts"`
}

type urlsResponse struct {
	Domain     string    `json:"domain"`
	DatasetID  uint32    `json:"dataset_id"`
	TotalEst   *int64    `json:"total_est"`
	Items      []urlItem `json:"items"`
	NextOffset *uint64   `json:"next_offset"`
}

func (s *Server) handleURLs(w http.ResponseWriter, r *http.Request) {
	domain := r.PathValue("domain")
	if domain == "" {
		writeError(w, http.StatusBadRequest, "domain must not be empty")
		return
	}

	datasetID64, err := strconv.ParseUint(r.PathValue("dataset_id"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dataset_id must be a non-negative integer")
		return
	}

	offset, err := parseUintParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	limit, clamped, err := s.parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	ctx := r.Context()
	result, err := s.engine.URLsOf(ctx, domain, uint32(datasetID64), offset, limit)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	items := make([]urlItem, len(result.Items))
	for i, it := range result.Items {
		items[i] = urlItem{URLID: it.URLID, URL: it.URL, Ts: nil}
	}

	resp := urlsResponse{
		Domain:     domain,
		DatasetID:  uint32(datasetID64),
		TotalEst:   nil,
		Items:      items,
		NextOffset: result.NextOffset,
	}
	if clamped {
		w.Header().Set("Warning", "199 urldex \"limit clamped to max_limit\"")
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseUintParam(r *http.Request, name string, def uint64) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.ParseUint(raw, 10, 64)
}

func (s *Server) parseLimit(r *http.Request) (limit uint32, clamped bool, err error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		l, wasClamped := s.cfg.ClampLimit(config.DefaultLimit)
		return uint32(l), wasClamped, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false, err
	}
	l, wasClamped := s.cfg.ClampLimit(int(v))
	return uint32(l), wasClamped, nil
}

func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch xerrors.As(err) {
	case xerrors.KindInputMalformed:
		writeError(w, http.StatusBadRequest, err.Error())
	case xerrors.KindVersionMissing, xerrors.KindArtifactCorrupt:
		s.log.Error("engine error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	case xerrors.KindTransientIO:
		s.log.Warn("transient engine error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error, retry")
	default:
		s.log.Error("unclassified engine error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Reload refreshes the server's query engine to the manifest's latest
// published version, used by the `serve` command's background reload
// poller.
func (s *Server) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.engine.Reload(); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		s.log.Warn("manifest reload failed", "err", err)
		return err
	}
	return nil
}
