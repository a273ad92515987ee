package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "qtodash/internal/errors"
	"qtodash/internal/middleware"
	"qtodash/internal/presentation"
)

// uploadField is the multipart form field carrying the file
const uploadField = "file"

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file
const multipartMemory = 8 << 20

// TopQuery selects the Top-N size; 0 means the configured default
type TopQuery struct {
	N int `query:"n" validate:"omitempty,min=1,max=1000"`
}

// SummaryQuery selects the grouping column of a summary
type SummaryQuery struct {
	GroupBy string `query:"group_by" validate:"omitempty,oneof=item family"`
}

// ExportQuery selects a download format
type ExportQuery struct {
	Format string `query:"format" validate:"required,oneof=csv xlsx json text"`
	N      int    `query:"n" validate:"omitempty,min=1,max=1000"`
}

// SheetsImportRequest is the body of POST /api/dataset/sheets
type SheetsImportRequest struct {
	SpreadsheetID string `json:"spreadsheet_id" validate:"required,spreadsheet_id"`
	Range         string `json:"range" validate:"omitempty,a1range"`
}

// uploadRequest carries the fields of a multipart upload worth validating
type uploadRequest struct {
	FileName string `json:"file_name" validate:"required,datafile"`
}

// DatasetHandler serves the session dataset and its data products
type DatasetHandler struct {
	service        DatasetServiceInterface
	presenters     *presentation.Registry
	validator      *middleware.Validator
	errorHandler   *apierrors.ErrorHandler
	logger         *slog.Logger
	maxUploadBytes int64
	defaultRange   string
}

// DatasetHandlerOptions configures a DatasetHandler
type DatasetHandlerOptions struct {
	MaxUploadBytes int64
	// DefaultRange is used by sheet imports that name no range
	DefaultRange string
}

// NewDatasetHandler creates a dataset handler
func NewDatasetHandler(
	service DatasetServiceInterface,
	presenters *presentation.Registry,
	validator *middleware.Validator,
	errorHandler *apierrors.ErrorHandler,
	logger *slog.Logger,
	opts DatasetHandlerOptions,
) *DatasetHandler {
	if opts.DefaultRange == "" {
		opts.DefaultRange = "A:Z"
	}
	return &DatasetHandler{
		service:        service,
		presenters:     presenters,
		validator:      validator,
		errorHandler:   errorHandler,
		logger:         logger.With(slog.String("component", "dataset_handler")),
		maxUploadBytes: opts.MaxUploadBytes,
		defaultRange:   opts.DefaultRange,
	}
}

// Routes returns the dataset routes, mounted at /api/dataset
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(middleware.ContentTypeValidator("multipart/form-data")).Post("/", h.Upload)
	r.With(middleware.ContentTypeValidator("application/json")).Post("/sheets", h.ImportSheet)
	r.Get("/", h.Get)
	r.Delete("/", h.Delete)

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.With(middleware.TraceOperation("dataset.summary")).Get("/summary", h.Summary)
		r.With(middleware.TraceOperation("dataset.top")).Get("/top", h.Top)
		r.Get("/totals", h.Totals)
		r.With(middleware.TraceOperation("dataset.dashboard")).Get("/dashboard", h.Dashboard)
	})
	r.With(middleware.TraceOperation("dataset.export")).Get("/export", h.Export)

	return r
}

// Upload handles POST /api/dataset
func (h *DatasetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := middleware.SessionID(ctx)

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrMissingFile)
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if err := h.validator.ValidateStruct(uploadRequest{FileName: fileName}); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrUnsupportedFile)
		return
	}

	h.logger.InfoContext(ctx, "dataset upload received",
		slog.String("session_id", sessionID),
		slog.String("file_name", fileName),
		slog.Int64("size", header.Size))

	ds, err := h.service.Upload(ctx, sessionID, fileName, file)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	respond(w, r, ds)
}

// ImportSheet handles POST /api/dataset/sheets
func (h *DatasetHandler) ImportSheet(w http.ResponseWriter, r *http.Request) {
	var req SheetsImportRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	req.SpreadsheetID = strings.TrimSpace(req.SpreadsheetID)
	req.Range = strings.TrimSpace(req.Range)
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Range == "" {
		req.Range = h.defaultRange
	}

	ds, err := h.service.ImportSheet(r.Context(), middleware.SessionID(r.Context()), req.SpreadsheetID, req.Range)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	respond(w, r, ds)
}

// Get handles GET /api/dataset
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ds, err := h.service.Current(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, ds)
}

// Delete handles DELETE /api/dataset
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), middleware.SessionID(r.Context())); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /api/dataset/summary
func (h *DatasetHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q := SummaryQuery{GroupBy: r.URL.Query().Get("group_by")}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	summary, err := h.service.Summary(r.Context(), middleware.SessionID(r.Context()), q.GroupBy)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	respond(w, r, summary)
}

// Top handles GET /api/dataset/top
func (h *DatasetHandler) Top(w http.ResponseWriter, r *http.Request) {
	n, ok := h.queryInt(w, r, "n")
	if !ok {
		return
	}
	if err := h.validator.ValidateStruct(TopQuery{N: n}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	view, err := h.service.Top(r.Context(), middleware.SessionID(r.Context()), n)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	respond(w, r, map[string]interface{}{
		"n":          view.N,
		"other_from": view.OtherFrom,
		"entries":    view.Entries,
		"displayed":  view.DisplayedTotal(),
	})
}

// Totals handles GET /api/dataset/totals
func (h *DatasetHandler) Totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.service.Totals(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, totals)
}

// Dashboard handles GET /api/dataset/dashboard
func (h *DatasetHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	n, ok := h.queryInt(w, r, "n")
	if !ok {
		return
	}
	if err := h.validator.ValidateStruct(TopQuery{N: n}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	p, err := h.service.Products(r.Context(), middleware.SessionID(r.Context()), "dashboard", n)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	respond(w, r, presentation.BuildDashboard(p))
}

// Export handles GET /api/dataset/export, streaming the data products
// through the presenter registered for the requested format
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, ok := h.queryInt(w, r, "n")
	if !ok {
		return
	}
	q := ExportQuery{Format: strings.ToLower(r.URL.Query().Get("format")), N: n}
	if err := h.validator.ValidateStruct(q); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	presenter, found := h.presenters.Get(q.Format)
	if !found {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("format",
			fmt.Sprintf("format must be one of: %s", strings.Join(h.presenters.Formats(), ", "))))
		return
	}

	sessionID := middleware.SessionID(ctx)
	p, err := h.service.Products(ctx, sessionID, "export", q.N)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	ds, err := h.service.Current(ctx, sessionID)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", presenter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, exportFileName(ds.FileName, q.Format)))
	if err := presenter.Present(ctx, w, p); err != nil {
		// headers are gone once the presenter has written
		h.logger.ErrorContext(ctx, "export failed",
			slog.String("format", q.Format),
			slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "dataset exported",
		slog.String("session_id", sessionID),
		slog.String("format", q.Format),
		slog.Int("n", p.TopN.N))
}

// queryInt parses an optional integer query parameter; absent means 0
func (h *DatasetHandler) queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(name, fmt.Sprintf("%s must be an integer", name)))
		return 0, false
	}
	if v <= 0 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation(name, fmt.Sprintf("%s must be at least 1", name)))
		return 0, false
	}
	return v, true
}

func exportFileName(source, format string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	if base == "" || base == "." || strings.ContainsAny(base, `!:/\`) {
		base = "quantities"
	}
	ext := format
	if format == "text" {
		ext = "txt"
	}
	return fmt.Sprintf("%s-summary-%s.%s", base, time.Now().UTC().Format("20060102"), ext)
}

// respond writes the success envelope
func respond(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   data,
	})
}
