package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"qtodash/internal/config"
	"qtodash/internal/presentation"
)

const dashboardTemplate = "templates/dashboard.html"

// dashboardPage is the data the dashboard template renders
type dashboardPage struct {
	Title                string
	HeaderVolumeByFamily string
	HeaderProjectVolume  string
	HeaderSummedVolumes  string
	LabelTotalVolume     string
	LabelTotalCount      string
	TopN                 int
	SheetsEnabled        bool
	Version              string
	WebSocketPath        string
}

// DashboardHandler renders the single-page dashboard and serves its assets
type DashboardHandler struct {
	tmpl   *template.Template
	static http.Handler
	page   dashboardPage
	logger *slog.Logger
}

// NewDashboardHandler parses the dashboard template from web, which must
// hold templates/ and static/
func NewDashboardHandler(web fs.FS, topN int, sheetsEnabled bool, logger *slog.Logger) (*DashboardHandler, error) {
	tmpl, err := template.ParseFS(web, dashboardTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}
	static, err := fs.Sub(web, "static")
	if err != nil {
		return nil, fmt.Errorf("open static assets: %w", err)
	}

	return &DashboardHandler{
		tmpl:   tmpl,
		static: http.StripPrefix("/static/", http.FileServer(http.FS(static))),
		page: dashboardPage{
			Title:                presentation.Title,
			HeaderVolumeByFamily: presentation.HeaderVolumeByFamily,
			HeaderProjectVolume:  presentation.HeaderProjectVolume,
			HeaderSummedVolumes:  presentation.HeaderSummedVolumes,
			LabelTotalVolume:     presentation.LabelTotalVolume,
			LabelTotalCount:      presentation.LabelTotalCount,
			TopN:                 topN,
			SheetsEnabled:        sheetsEnabled,
			Version:              config.Version,
			WebSocketPath:        config.WebSocketEndpoint,
		},
		logger: logger.With(slog.String("handler", "dashboard")),
	}, nil
}

// ServePage handles GET /
func (h *DashboardHandler) ServePage(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "dashboard.html", h.page); err != nil {
		h.logger.ErrorContext(r.Context(), "rendering dashboard failed", slog.String("error", err.Error()))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	buf.WriteTo(w)
}

// ServeStatic handles GET /static/*
func (h *DashboardHandler) ServeStatic(w http.ResponseWriter, r *http.Request) {
	h.static.ServeHTTP(w, r)
}
