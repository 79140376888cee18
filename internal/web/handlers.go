package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/finledger/finledger/internal/ingest"
)

// errNoFile distinguishes a missing multipart file part from other form
// errors so MapError can produce the right code.
var errNoFile = errors.New("no file provided")

// uploadRequest is the decoded multipart payload shared by dry-run and
// import: the file plus the request-scoped column mapping.
type uploadRequest struct {
	owner    uuid.UUID
	fileName string
	file     multipart.File
	mapping  ingest.ColumnMapping
}

func (u *uploadRequest) close() { u.file.Close() }

// parseUpload decodes the multipart form. Structural problems (missing
// file, malformed mapping document, unknown owner) are rejected here,
// before any row is processed.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request, needMapping bool) (*uploadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)
	if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
		return nil, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}

	req := &uploadRequest{file: file, fileName: header.Filename}

	if needMapping {
		req.owner, err = ownerID(r)
		if err != nil {
			file.Close()
			return nil, err
		}

		mappingJSON := r.FormValue("mapping")
		if mappingJSON == "" {
			file.Close()
			return nil, ingest.ErrInvalidMapping
		}
		if err := json.Unmarshal([]byte(mappingJSON), &req.mapping); err != nil {
			file.Close()
			return nil, ingest.ErrInvalidMapping
		}
	}
	return req, nil
}

// handlePreview returns the header list and one page of raw rows.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseUpload(w, r, false)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer req.close()

	page, _ := strconv.Atoi(r.FormValue("page"))
	preview, err := s.service.PreviewFile(r.Context(), req.file, page)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// handleDryRun validates and classifies without committing.
func (s *Server) handleDryRun(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseUpload(w, r, true)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer req.close()

	result, err := s.service.DryRun(r.Context(), req.owner, req.mapping, req.file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleImport runs the full pipeline.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseUpload(w, r, true)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer req.close()

	result, err := s.service.Import(r.Context(), req.owner, req.fileName, req.mapping, req.file)
	if err != nil {
		if result != nil {
			// Fatal storage error mid-import: surface the failure with
			// the truthful partial summary.
			s.respondErrorWithPayload(w, r, err, http.StatusInternalServerError, result)
			return
		}
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSessions returns the owner's import history.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	sessions, err := s.service.Sessions(r.Context(), owner, limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// ownerID resolves the owner from the X-Owner-ID header (set by the
// auth layer in front of this service) or, failing that, the owner
// query parameter.
func ownerID(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Owner-ID")
	if raw == "" {
		raw = r.URL.Query().Get("owner")
	}
	if raw == "" {
		raw = r.FormValue("owner")
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: no owner supplied", ingest.ErrInvalidOwner)
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %q", ingest.ErrInvalidOwner, raw)
	}
	return owner, nil
}

// statusFor picks the HTTP status for a pipeline error: client mistakes
// are 400s, an occupied limiter is 429, everything else is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrInvalidMapping), errors.Is(err, ingest.ErrNoHeader),
		errors.Is(err, ingest.ErrInvalidOwner):
		return http.StatusBadRequest
	case errors.Is(err, ingest.ErrTooManyImports):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
