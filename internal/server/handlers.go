package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kaiwa/internal/models"
	"github.com/hyperjump/kaiwa/internal/rag"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxUploadSize)
	name, raw, err := readUpload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "document exceeds upload limit")
			return
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("upload request", zap.String("name", name), zap.Int("bytes", len(raw)))
	doc, err := s.indexer.Upload(r.Context(), name, raw)
	if err != nil {
		s.respondFailure(w, "upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, doc)
}

// readUpload accepts a multipart "file" field or a raw body named by ?name=.
func readUpload(r *http.Request) (string, []byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, errors.New(`multipart field "file" is required`)
		}
		if err != nil {
			return "", nil, fmt.Errorf("read multipart file: %w", err)
		}
		defer file.Close()
		raw, err := io.ReadAll(file)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(header.Filename), raw, nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, err
	}
	if len(raw) == 0 {
		return "", nil, errors.New("request body is empty")
	}
	return r.URL.Query().Get("name"), raw, nil
}

func (s *Server) handleCurrentDocument(w http.ResponseWriter, r *http.Request) {
	idx := s.conv.Index()
	if idx == nil || idx.Document() == nil {
		s.respondError(w, http.StatusNotFound, "no document uploaded")
		return
	}
	s.respondJSON(w, http.StatusOK, idx.Document())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("session", sessionID), zap.String("question", req.Question))
	ans, err := s.conv.Ask(r.Context(), sessionID, req.Question)
	if err != nil {
		s.respondFailure(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"history":    s.conv.History(sessionID),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if !s.conv.ClearSession(sessionID) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"sessions": s.conv.Sessions().List()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"sessions": s.conv.Sessions().Len(),
	}
	if idx := s.conv.Index(); idx != nil {
		resp["document"] = idx.Document()
		resp["chunks"] = idx.Len()
		resp["indexed_at"] = idx.BuiltAt()
	}
	cfg := s.config
	resp["config"] = map[string]interface{}{
		"chunk_size":           cfg.Chunking.ChunkSize,
		"chunk_overlap":        cfg.Chunking.Overlap(),
		"retrieval_strategy":   cfg.Retrieval.Strategy,
		"top_k":                cfg.Retrieval.TopK,
		"embedding_provider":   cfg.Embedding.Provider,
		"embedding_dimensions": cfg.Embedding.Dimensions,
		"generator_provider":   cfg.Generator.Provider,
		"generator_model":      cfg.Generator.Model,
	}
	if s.archive != nil {
		archived := map[string]interface{}{}
		if n, err := s.archive.CountTurns(r.Context()); err == nil {
			archived["turns"] = n
		} else {
			s.logger.Warn("status: count archived turns failed", zap.Error(err))
		}
		if n, err := s.archive.SizeBytes(); err == nil {
			archived["disk_usage_bytes"] = n
		}
		resp["archive"] = archived
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNoIndex):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmbedding), errors.Is(err, models.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	fields := []zap.Field{zap.String("kind", models.ErrorKind(err)), zap.Error(err)}
	if state := rag.FailedState(err); state != "" {
		fields = append(fields, zap.String("state", string(state)))
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, fields...)
	} else {
		s.logger.Debug(msg, fields...)
	}
	s.respondJSON(w, status, map[string]string{"error": err.Error(), "kind": models.ErrorKind(err)})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
