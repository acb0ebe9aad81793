package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperjump/kaiwa/internal/archive"
	"github.com/hyperjump/kaiwa/internal/models"
)

// askTimeout covers a rewrite and an answer generation on a slow provider.
const askTimeout = 5 * time.Minute

var httpClient = &http.Client{Timeout: askTimeout}

// historyResponse is the shape of GET /api/v1/sessions/{id}/history.
type historyResponse struct {
	SessionID string        `json:"session_id"`
	History   []models.Turn `json:"history"`
}

type statusArchive struct {
	Turns          int64 `json:"turns"`
	DiskUsageBytes int64 `json:"disk_usage_bytes"`
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Sessions int              `json:"sessions"`
	Document *models.Document `json:"document,omitempty"`
	Chunks   int              `json:"chunks"`
	Archive  *statusArchive   `json:"archive,omitempty"`
}

// apiError is the body the server sends with non-2xx responses.
type apiError struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var kindErrors = map[string]error{
	"validation":    models.ErrValidation,
	"configuration": models.ErrConfiguration,
	"embedding":     models.ErrEmbedding,
	"generation":    models.ErrGeneration,
	"no_index":      models.ErrNoIndex,
}

// decodeResponse decodes a 2xx body into out, or turns an error body back into
// an error carrying the server's kind.
func decodeResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		var apiErr apiError
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			if sentinel, ok := kindErrors[apiErr.Kind]; ok {
				return fmt.Errorf("%w: server returned %d: %s", sentinel, resp.StatusCode, apiErr.Error)
			}
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func uploadViaHTTP(serverURL, path string) (*models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := httpClient.Post(serverURL+"/api/v1/documents", mw.FormDataContentType(), &body)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var doc models.Document
	if err := decodeResponse(resp, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func askViaHTTP(serverURL, sessionID, question string) (*models.Answer, error) {
	body, err := json.Marshal(models.AskRequest{Question: question})
	if err != nil {
		return nil, err
	}
	endpoint := serverURL + "/api/v1/sessions/" + url.PathEscape(sessionID) + "/ask"
	resp, err := httpClient.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var ans models.Answer
	if err := decodeResponse(resp, &ans); err != nil {
		return nil, err
	}
	return &ans, nil
}

func historyViaHTTP(serverURL, sessionID string) (*historyResponse, error) {
	resp, err := httpClient.Get(serverURL + "/api/v1/sessions/" + url.PathEscape(sessionID) + "/history")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var h historyResponse
	if err := decodeResponse(resp, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// historyFromArchive reads a session's archived turns, which outlive the
// server process.
func historyFromArchive(ctx context.Context, path, sessionID string) (*historyResponse, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: archive %s does not exist", models.ErrValidation, path)
		}
		return nil, err
	}
	a, err := archive.NewSQLiteArchive(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	records, err := a.Transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	h := &historyResponse{SessionID: sessionID, History: make([]models.Turn, 0, len(records))}
	for _, r := range records {
		h.History = append(h.History, models.Turn{Question: r.Question, Answer: r.Answer, CreatedAt: r.CreatedAt})
	}
	return h, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := httpClient.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	var s statusResponse
	if err := decodeResponse(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
