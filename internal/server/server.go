package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"mistakebook/internal/app"
	"mistakebook/internal/ratelimit"
	"mistakebook/internal/review"
	"mistakebook/internal/util"
	"mistakebook/pkg/domain"
	"mistakebook/pkg/pdfinfo"
	"mistakebook/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	MaxUploadBytes int64
	UploadLimiter  *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP endpoints for the mistake book.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64
	uploadLimiter  *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
		uploadLimiter:  cfg.UploadLimiter,
		trustedProxies: cfg.TrustedProxies,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("mistakebook", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// documents
	s.mux.HandleFunc("/api/documents", s.handleDocuments)
	s.mux.HandleFunc("/api/documents/", s.handleDocumentByFingerprint)
	s.mux.HandleFunc("/api/pairs", s.handlePairs)

	// mistakes
	s.mux.HandleFunc("/api/mistakes", s.handleMistakes)
	s.mux.HandleFunc("/api/mistakes/due", s.handleDueMistakes)
	s.mux.HandleFunc("/api/mistakes/", s.handleMistakeByID)

	// review
	s.mux.HandleFunc("/api/review/session", s.handleSession)
	s.mux.HandleFunc("/api/review/session/rate", s.handleRate)
	s.mux.HandleFunc("/api/review/preview", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUploadDocument(w, r)
	case http.MethodGet:
		s.handleGetDocument(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	if s.uploadLimiter != nil && !s.uploadLimiter.Allow(util.ClientIP(r, s.trustedProxies)) {
		writeError(w, http.StatusTooManyRequests, "too many uploads, slow down")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "unsupported file type, only .pdf is accepted")
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	role, ok := domain.ParseRole(r.FormValue("role"))
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be annotated or clean")
		return
	}

	var doc domain.Document
	switch role {
	case domain.RoleAnnotated:
		doc, err = s.app.RegisterAnnotated(header.Filename, r.FormValue("title"), data)
	case domain.RoleClean:
		pairGroupID := strings.TrimSpace(r.FormValue("pairGroupId"))
		if pairGroupID == "" {
			writeError(w, http.StatusBadRequest, "pairGroupId is required for clean uploads")
			return
		}
		doc, err = s.app.RegisterClean(header.Filename, pairGroupID, data)
	}
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("document upload rejected",
			"filename", header.Filename, "role", string(role), "error", err)
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	fp := strings.TrimSpace(r.URL.Query().Get("fingerprint"))
	if fp == "" {
		writeError(w, http.StatusBadRequest, "fingerprint is required")
		return
	}
	role, ok := domain.ParseRole(r.URL.Query().Get("role"))
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be annotated or clean")
		return
	}
	doc, err := s.app.FindDocument(fp, role)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// /api/documents/{fingerprint}/download
func (s *Server) handleDocumentByFingerprint(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.SplitN(path, "/", 2)
	fp := parts[0]
	if fp == "" || len(parts) != 2 || parts[1] != "download" {
		notFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	role, ok := domain.ParseRole(r.URL.Query().Get("role"))
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be annotated or clean")
		return
	}
	url, err := s.app.DocumentDownloadURL(fp, role)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *Server) handlePairs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	pairs, err := s.app.ListPairs()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": pairs,
		"count": len(pairs),
	})
}

type createMistakeRequest struct {
	PairGroupID string      `json:"pairGroupId"`
	PageIndex   int         `json:"pageIndex"`
	BBox        domain.BBox `json:"bbox"`
	Title       string      `json:"title"`
	Note        string      `json:"note"`
	Tags        []string    `json:"tags"`
}

func (s *Server) handleMistakes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req createMistakeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		m, err := s.app.CreateMistake(app.CreateMistakeParams{
			PairGroupID: req.PairGroupID,
			PageIndex:   req.PageIndex,
			BBox:        req.BBox,
			Title:       req.Title,
			Note:        req.Note,
			Tags:        req.Tags,
		})
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	case http.MethodGet:
		pairGroupID := strings.TrimSpace(r.URL.Query().Get("pairGroupId"))
		if pairGroupID == "" {
			writeError(w, http.StatusBadRequest, "pairGroupId is required")
			return
		}
		mistakes, err := s.app.ListForPairGroup(pairGroupID)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": mistakes,
			"count": len(mistakes),
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDueMistakes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	due, err := s.app.DueNow()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": due,
		"count": len(due),
	})
}

type updateMistakeRequest struct {
	Title *string  `json:"title"`
	Note  *string  `json:"note"`
	Tags  []string `json:"tags"`
}

// /api/mistakes/{id} or /api/mistakes/{id}/logs
func (s *Server) handleMistakeByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/mistakes/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		notFound(w, "not found")
		return
	}

	if len(parts) == 2 && parts[1] == "logs" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		logs, err := s.app.MistakeLogs(id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": logs,
			"count": len(logs),
		})
		return
	}
	if len(parts) == 2 {
		notFound(w, "not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req updateMistakeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		m, err := s.app.UpdateMistake(id, app.UpdateMistakeParams{
			Title: req.Title,
			Note:  req.Note,
			Tags:  req.Tags,
		})
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	case http.MethodDelete:
		if err := s.app.DeleteMistake(id); err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		state, err := s.app.StartSession()
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, state)
	case http.MethodGet:
		state, err := s.app.SessionStatus()
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	default:
		methodNotAllowed(w)
	}
}

type rateRequest struct {
	Rating string `json:"rating"`
}

type rateResponse struct {
	Session app.SessionState `json:"session"`
	Log     domain.ReviewLog `json:"log"`
	Warning string           `json:"warning,omitempty"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req rateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, log, err := s.app.RateCurrent(domain.Rating(req.Rating))
	if err != nil && !errors.Is(err, store.ErrPersistence) {
		s.writeAppError(w, err)
		return
	}
	resp := rateResponse{Session: state, Log: log}
	if err != nil {
		// The transition was applied in memory but the write-through
		// failed. The client sees the new state plus a warning.
		resp.Warning = "review applied but not persisted, storage is failing"
	}
	writeJSON(w, http.StatusOK, resp)
}

type previewRequest struct {
	MistakeID string `json:"mistakeId"`
	Rating    string `json:"rating"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req previewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := s.app.PreviewRating(req.MistakeID, domain.Rating(req.Rating))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// writeAppError maps application sentinel errors onto HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNoSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrPageCountMismatch),
		errors.Is(err, app.ErrInvalidRegion),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, pdfinfo.ErrNotAPDF):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status, msg),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int, msg string) string {
	message := strings.ToLower(strings.TrimSpace(msg))
	switch {
	case strings.Contains(message, "page count mismatch"):
		return "DOCUMENT_PAGE_COUNT_MISMATCH"
	case strings.Contains(message, "not a valid pdf"):
		return "DOCUMENT_NOT_A_PDF"
	case strings.Contains(message, "unsupported file type"):
		return "DOCUMENT_UNSUPPORTED_FILE_TYPE"
	case strings.Contains(message, "file is required"):
		return "DOCUMENT_FILE_REQUIRED"
	case strings.Contains(message, "invalid region"):
		return "MISTAKE_INVALID_REGION"
	case strings.Contains(message, "unrecognized rating"):
		return "REVIEW_INVALID_RATING"
	case strings.Contains(message, "no active review session"):
		return "REVIEW_NO_SESSION"
	case strings.Contains(message, "too many uploads"):
		return "DOCUMENT_RATE_LIMITED"
	case message == "method not allowed":
		return "SYSTEM_METHOD_NOT_ALLOWED"
	}

	switch status {
	case http.StatusBadRequest:
		return "REQUEST_INVALID"
	case http.StatusNotFound:
		return "RESOURCE_NOT_FOUND"
	case http.StatusConflict:
		return "REQUEST_CONFLICT"
	case http.StatusTooManyRequests:
		return "REQUEST_RATE_LIMITED"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
