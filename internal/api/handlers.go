// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/davips/cdict"
	"github.com/davips/cdict/hosh"
	"github.com/davips/cdict/internal/log"
	"github.com/davips/cdict/internal/metrics"
	"github.com/davips/cdict/internal/version"
)

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// entryID extracts and validates the id path parameter. A malformed id is
// reported as 400 rather than 404 so clients can tell typos from misses.
func entryID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !hosh.IsID(id) {
		respondError(w, http.StatusBadRequest, "malformed id")
		return "", false
	}
	return id, true
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	start := time.Now()
	data, found, err := s.store.Get(r.Context(), id)
	if err != nil {
		metrics.ObserveEntryOp("get", "error", time.Since(start))
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).Str(log.FieldID, id).Msg("store get failed")
		respondError(w, http.StatusBadGateway, "store failure")
		return
	}
	if !found {
		metrics.ObserveEntryOp("get", "miss", time.Since(start))
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	metrics.ObserveEntryOp("get", "hit", time.Since(start))
	metrics.AddEntryBytes("out", len(data))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHasEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	start := time.Now()
	found, err := s.store.Has(r.Context(), id)
	if err != nil {
		metrics.ObserveEntryOp("has", "error", time.Since(start))
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	if !found {
		metrics.ObserveEntryOp("has", "miss", time.Since(start))
		w.WriteHeader(http.StatusNotFound)
		return
	}
	metrics.ObserveEntryOp("has", "hit", time.Since(start))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePutEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBlobBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "entry exceeds max_blob_bytes")
			return
		}
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	start := time.Now()
	if err := s.store.Put(r.Context(), id, data); err != nil {
		metrics.ObserveEntryOp("put", "error", time.Since(start))
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).Str(log.FieldID, id).Msg("store put failed")
		respondError(w, http.StatusBadGateway, "store failure")
		return
	}
	metrics.ObserveEntryOp("put", "ok", time.Since(start))
	metrics.AddEntryBytes("in", len(data))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	start := time.Now()
	if err := s.store.Delete(r.Context(), id); err != nil {
		metrics.ObserveEntryOp("delete", "error", time.Since(start))
		respondError(w, http.StatusBadGateway, "store failure")
		return
	}
	metrics.ObserveEntryOp("delete", "ok", time.Since(start))
	w.WriteHeader(http.StatusNoContent)
}

// handleGetDict restores a dict skeleton and renders its contents. Fields
// whose blobs were expired or never persisted render as their lazy
// placeholder instead of failing the whole response.
func (s *Server) handleGetDict(w http.ResponseWriter, r *http.Request) {
	id, ok := entryID(w, r)
	if !ok {
		return
	}
	d, err := cdict.FromCache(r.Context(), id, s.store)
	if err != nil {
		metrics.IncDictRestore(false)
		switch {
		case errors.Is(err, cdict.ErrNotCached):
			respondError(w, http.StatusNotFound, "not found")
		case errors.Is(err, cdict.ErrBadSkeleton):
			respondError(w, http.StatusConflict, "stored entry is not a dict skeleton")
		default:
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Error().
				Err(err).Str(log.FieldDictID, id).Msg("dict restore failed")
			respondError(w, http.StatusBadGateway, "store failure")
		}
		return
	}

	fields := make(map[string]any, d.Len())
	for _, k := range d.Keys() {
		v, _ := d.Peek(k)
		content, err := v.Resolve(r.Context())
		if err != nil {
			if errors.Is(err, cdict.ErrNotCached) {
				fields[k] = v.String()
				continue
			}
			metrics.IncDictRestore(false)
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Error().
				Err(err).Str(log.FieldDictID, id).Str(log.FieldField, k).Msg("field fetch failed")
			respondError(w, http.StatusBadGateway, "store failure")
			return
		}
		if nd, ok := content.(*cdict.Dict); ok {
			content = map[string]string{"_id": nd.ID()}
		}
		fields[k] = content
	}

	metrics.IncDictRestore(true)
	respondJSON(w, http.StatusOK, map[string]any{
		"_id":    d.ID(),
		"_ids":   d.IDs(),
		"fields": fields,
	})
}

// handleStats reports the store's traffic counters and refreshes the
// corresponding gauges.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.store.Stats()
	metrics.SetStoreStats(s.cfg.Backend, st.CurrentSize, st.Hits, st.Misses)
	respondJSON(w, http.StatusOK, map[string]any{
		"backend":      s.cfg.Backend,
		"hits":         st.Hits,
		"misses":       st.Misses,
		"puts":         st.Puts,
		"deletes":      st.Deletes,
		"current_size": st.CurrentSize,
		"uptime":       time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz probes the backend with a Has on a fixed id. Any error
// marks the store unready; a plain miss is the expected healthy answer.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	probe := hosh.DigestString("cdictd/readyz").ID()
	if _, err := s.store.Has(r.Context(), probe); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unready",
			"reason": err.Error(),
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
