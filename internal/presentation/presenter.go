// Package presentation turns data products into something a person can
// read. The pipeline in dataprocessing never imports it.
package presentation

import (
	"context"
	"io"
	"sort"
	"sync"

	"qtodash/internal/dataprocessing"
)

// Dashboard wording
const (
	Title                = "Revit Project Data Analysis"
	HeaderVolumeByFamily = "Volume by Family Names and Type Names"
	HeaderProjectVolume  = "Project Volume"
	HeaderSummedVolumes  = "Summed Volumes by Family Name: Type Name"
	LabelTotalVolume     = "Total Volume (m3)"
	LabelTotalCount      = "Total Count of Items"
)

// Presenter renders data products to w
type Presenter interface {
	ContentType() string
	Present(ctx context.Context, w io.Writer, p *dataprocessing.Products) error
}

// Registry maps export format names to presenters
type Registry struct {
	mu         sync.RWMutex
	presenters map[string]Presenter
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{presenters: make(map[string]Presenter)}
}

// Register adds or replaces the presenter for format
func (r *Registry) Register(format string, p Presenter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presenters[format] = p
}

// Get returns the presenter for format
func (r *Registry) Get(format string) (Presenter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presenters[format]
	return p, ok
}

// Formats lists registered format names in sorted order
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]string, 0, len(r.presenters))
	for f := range r.presenters {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}
