package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/seanblong/resumematch/internal/ingest"
	"github.com/seanblong/resumematch/internal/match"
	"github.com/seanblong/resumematch/pkg/models"
)

var ErrPayloadTooLarge = errors.New("payload too large")

// State is a step in the life of one match request.
type State string

const (
	StateReceived   State = "received"
	StateValidated  State = "validated"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

const (
	// multipartOverhead is allowed on top of the file for boundaries and
	// the job description field.
	multipartOverhead = 1 << 20
	maxFormMemory     = 32 << 20

	internalErrorMessage = "internal error processing resume"
)

// Form field names.
const (
	FieldJobDescription      = "jd"
	FieldJobDescriptionAlias = "job_description"
	FieldResume              = "resume"
)

type matchRequest struct {
	jd     string
	data   []byte
	format ingest.Format
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := hlog.FromRequest(r)
	logState(logger, StateReceived)

	req, err := s.parseMatchRequest(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logState(logger, StateValidated)

	logState(logger, StateProcessing)
	res, err := s.matcher.Match(r.Context(), req.jd, req.data, req.format)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	logger.Info().Str("state", string(StateSucceeded)).
		Int("score", res.FinalMatchScore).
		Int("top_chunks", len(res.TopChunks)).
		Str("format", string(req.format)).
		Int("bytes", len(req.data)).
		Dur("dur", time.Since(start)).
		Msg("match state")
	writeJSON(w, r, http.StatusOK, res.Response())
}

// parseMatchRequest validates the multipart form. The job description is
// checked before the file is looked at.
func (s *Server) parseMatchRequest(w http.ResponseWriter, r *http.Request) (matchRequest, error) {
	limit := s.opts.MaxUploadBytes + multipartOverhead
	if r.ContentLength > limit {
		return matchRequest{}, fmt.Errorf("%w: request body exceeds %d bytes", ErrPayloadTooLarge, limit)
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return matchRequest{}, fmt.Errorf("%w: request body exceeds %d bytes", ErrPayloadTooLarge, mbe.Limit)
		}
		return matchRequest{}, fmt.Errorf("%w: expected a multipart/form-data body", match.ErrValidation)
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	jd := r.FormValue(FieldJobDescription)
	if strings.TrimSpace(jd) == "" {
		jd = r.FormValue(FieldJobDescriptionAlias)
	}
	if strings.TrimSpace(jd) == "" {
		return matchRequest{}, fmt.Errorf("%w: job description is required", match.ErrValidation)
	}

	file, header, err := r.FormFile(FieldResume)
	if err != nil {
		return matchRequest{}, fmt.Errorf("%w: resume file is required", match.ErrValidation)
	}
	defer file.Close()

	format, ok := ingest.FormatFromUpload(header.Filename, header.Header.Get("Content-Type"))
	if !ok {
		return matchRequest{}, fmt.Errorf("%w: resume must be a PDF or DOCX file", match.ErrValidation)
	}
	if header.Size > s.opts.MaxUploadBytes {
		return matchRequest{}, fmt.Errorf("%w: resume exceeds %d bytes", ErrPayloadTooLarge, s.opts.MaxUploadBytes)
	}

	data, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		return matchRequest{}, fmt.Errorf("read resume: %w", err)
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return matchRequest{}, fmt.Errorf("%w: resume exceeds %d bytes", ErrPayloadTooLarge, s.opts.MaxUploadBytes)
	}
	if len(data) == 0 {
		return matchRequest{}, fmt.Errorf("%w: resume file is empty", match.ErrValidation)
	}

	return matchRequest{jd: jd, data: data, format: format}, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	logger := hlog.FromRequest(r)

	ev := logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).Str("state", string(StateFailed)).Int("status", status).Msg("match state")

	writeJSON(w, r, status, models.ErrorResponse{Error: msg})
}

// StatusFor maps an error onto its HTTP status and client-facing message.
// Anything unrecognised becomes a 500 with a generic message.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, match.ErrValidation):
		return http.StatusBadRequest, err.Error()
	// Parser detail stays in the log.
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusBadRequest, ingest.ErrUnsupportedFormat.Error()
	case errors.Is(err, ingest.ErrEmptyDocument):
		return http.StatusBadRequest, ingest.ErrEmptyDocument.Error()
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, err.Error()
	case errors.Is(err, match.ErrTimeout):
		return http.StatusGatewayTimeout, match.ErrTimeout.Error()
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

func logState(logger *zerolog.Logger, state State) {
	logger.Debug().Str("state", string(state)).Msg("match state")
}
