package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/text"
	"github.com/MeKo-Tech/labelscan/internal/utils"
	"github.com/MeKo-Tech/labelscan/internal/version"
)

// maxTranslateBody caps POST /translate bodies.
const maxTranslateBody = 64 * 1024

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// translatorHealthHandler probes the translation server.
func (s *Server) translatorHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	if s.translator == nil {
		writeError(w, http.StatusServiceUnavailable, "disabled", "translation is disabled")
		return
	}
	st, err := s.translator.Ping(r.Context())
	resp := TranslatorHealthResponse{}
	if st != nil {
		resp.Endpoint = st.Endpoint
		resp.Reachable = st.Reachable
		resp.Model = st.Model
		resp.ModelInstalled = st.HasModel()
		resp.Models = st.Models
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// scanHandler runs an uploaded label photo through the pipeline.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}

	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "input", "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "input", "failed to parse form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "input", "no image file provided")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "failed to read image data")
		return
	}
	uploadSizeBytes.Observe(float64(len(data)))

	translate := true
	if v := r.FormValue("translate"); v != "" {
		if translate, err = strconv.ParseBool(v); err != nil {
			writeError(w, http.StatusBadRequest, "input", "invalid translate value: "+v)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	res, err := s.scan(ctx, "http", data, translate, nil)
	if res == nil {
		info := pipeline.DescribeError(err)
		slog.Warn("Scan failed", "filename", header.Filename, "kind", info.Kind, "error", err)
		writeError(w, statusFor(info), info.Kind, info.Message)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	if format == string(pipeline.FormatText) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, pipeline.ToText(res))
		return
	}
	writeJSON(w, http.StatusOK, newScanResponse(res))
}

// scan decodes data and runs it through the pipeline, recording metrics. A
// nil result comes with the error that prevented one.
func (s *Server) scan(ctx context.Context, transport string, data []byte, translate bool, obs pipeline.StageObserver) (*pipeline.Result, error) {
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		scansTotal.WithLabelValues(transport, pipeline.CategoryInput).Inc()
		return nil, err
	}
	scanner := s.scanner
	if !translate {
		scanner = s.recognizeOnly
	}
	res, err := scanner.ProcessObserved(ctx, img, multiObserver(stageMetrics, obs))

	result := "ok"
	if err != nil {
		result = pipeline.DescribeError(err).Category
	}
	scansTotal.WithLabelValues(transport, result).Inc()
	if res != nil {
		recognizedScripts.WithLabelValues(res.Script.String(), res.Language.String()).Inc()
	}
	return res, err
}

func newScanResponse(res *pipeline.Result) ScanResponse {
	return ScanResponse{
		RecognizedText: res.RecognizedText,
		Script:         res.Script.String(),
		Accepted:       res.Accepted,
		Language:       res.Language,
		TranslatedText: res.TranslatedText,
		Error:          res.TranslationError,
		Width:          res.Width,
		Height:         res.Height,
		Timing:         res.Timing,
	}
}

// translateHandler detects the language of posted text and translates it.
func (s *Server) translateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
		return
	}
	if s.translator == nil {
		writeError(w, http.StatusServiceUnavailable, "disabled", "translation is disabled")
		return
	}

	var req TranslateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTranslateBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "input", "invalid JSON body")
		return
	}

	src := text.Normalize(req.Text)
	tag := text.Detect(src)

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout())
	defer cancel()

	resp := TranslateResponse{Text: src, Language: tag}
	out, err := s.translator.Translate(ctx, src, tag)
	if err != nil {
		info := pipeline.DescribeError(err)
		if info.Category == pipeline.CategoryCancelled {
			writeError(w, statusFor(info), info.Kind, info.Message)
			return
		}
		resp.Error = &info
	}
	resp.TranslatedText = out
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps a failed run to an HTTP status.
func statusFor(info pipeline.ErrorInfo) int {
	switch info.Category {
	case pipeline.CategoryInput:
		return http.StatusBadRequest
	case pipeline.CategoryCancelled, pipeline.CategoryService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: strings.TrimSpace(message), Kind: kind})
}
