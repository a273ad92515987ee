package services

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"qtodash/internal/cache"
	"qtodash/internal/config"
	"qtodash/internal/dataprocessing"
	apierrors "qtodash/internal/errors"
	"qtodash/internal/infrastructure"
)

// Session events pushed to websocket clients
const (
	EventDatasetReplaced = "dataset.replaced"
	EventDatasetCleared  = "dataset.cleared"
)

// Summary groupings accepted by DatasetService.Summary
const (
	GroupByItem   = "item"
	GroupByFamily = "family"
)

// viewProducts is the only cached result kind; every endpoint derives its
// payload from the same Products.
const viewProducts = "products"

// EventPublisher delivers an event to every client of one session
type EventPublisher interface {
	PublishToSession(sessionID, eventType string, data interface{})
}

// SheetsSource reads a table from a Google spreadsheet range
type SheetsSource interface {
	ReadTable(ctx context.Context, spreadsheetID, readRange string) (*dataprocessing.Table, error)
}

// Dataset is the current table of a session plus its metadata
type Dataset struct {
	Fingerprint        string                `json:"fingerprint"`
	FileName           string                `json:"file_name"`
	Format             dataprocessing.Format `json:"format"`
	Records            int                   `json:"records"`
	UnparseableVolumes int                   `json:"unparseable_volumes"`
	UnparseableSamples []string              `json:"unparseable_samples,omitempty"`
	Columns            []string              `json:"columns"`
	UploadedAt         time.Time             `json:"uploaded_at"`

	table *dataprocessing.Table
	stats dataprocessing.PreprocessStats
}

// Session holds one browser session's dataset
type Session struct {
	ID string

	mu      sync.RWMutex
	dataset *Dataset
}

func (s *Session) current() *Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// DatasetServiceOptions carries the optional collaborators of a DatasetService
type DatasetServiceOptions struct {
	Metrics       *infrastructure.DatasetMetrics
	Events        EventPublisher
	Sheets        SheetsSource
	SheetsTimeout time.Duration
	Logger        *slog.Logger
}

// DatasetService owns session datasets and the cached data products built
// from them
type DatasetService struct {
	cfg           config.DatasetConfig
	readOpts      dataprocessing.ReadOptions
	sessions      *cache.LRUCache[*Session]
	results       *cache.LRUCache[*dataprocessing.Products]
	group         singleflight.Group
	metrics       *infrastructure.DatasetMetrics
	events        EventPublisher
	sheets        SheetsSource
	sheetsTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time
	build         func(context.Context, *dataprocessing.Table, dataprocessing.PreprocessStats, dataprocessing.BuildOptions) (*dataprocessing.Products, error)
}

// NewDatasetService creates the service. Result entries of all sessions
// share one LRU, partitioned by a session ID key prefix.
func NewDatasetService(cfg config.DatasetConfig, opts DatasetServiceOptions) (*DatasetService, error) {
	delimiter, err := cfg.DelimiterRune()
	if err != nil {
		return nil, apierrors.NewConfigError("invalid dataset delimiter", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = infrastructure.NewNoopDatasetMetrics()
	}

	s := &DatasetService{
		cfg:           cfg,
		readOpts:      dataprocessing.ReadOptions{Delimiter: delimiter, Sheet: cfg.Sheet},
		sessions:      cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.SessionTTL),
		results:       cache.NewLRUCache[*dataprocessing.Products](cfg.CacheSize, cfg.CacheTTL),
		metrics:       metrics,
		events:        opts.Events,
		sheets:        opts.Sheets,
		sheetsTimeout: opts.SheetsTimeout,
		logger:        logger.With(slog.String("component", "dataset_service")),
		now:           time.Now,
		build:         dataprocessing.BuildProducts,
	}

	s.sessions.OnEvict(func(id string, sess *Session) {
		s.results.DeletePrefix(sessionPrefix(id))
		if sess.current() != nil {
			s.metrics.RecordSessionChange(context.Background(), -1)
		}
		s.logger.Debug("session evicted", slog.String("session_id", id))
	})

	return s, nil
}

// RegisterCaches hands the service's caches to a cleanup manager
func (s *DatasetService) RegisterCaches(m *cache.Manager) {
	m.Register(s.sessions)
	m.Register(s.results)
}

// SheetsEnabled reports whether ImportSheet can be used
func (s *DatasetService) SheetsEnabled() bool {
	return s.sheets != nil
}

// ActiveSessions returns the number of live sessions
func (s *DatasetService) ActiveSessions() int {
	return s.sessions.Size()
}

// Upload reads a .csv or .xlsx file and makes it the session's current
// dataset. Nothing about the session changes when reading fails.
func (s *DatasetService) Upload(ctx context.Context, sessionID, fileName string, r io.Reader) (*Dataset, error) {
	if sessionID == "" {
		return nil, apierrors.NewAppValidationError("session id is required")
	}

	format, err := dataprocessing.DetectFormat(fileName)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, fmt.Errorf("read upload: %w", err)
	}

	table, err := dataprocessing.ReadTable(ctx, bytes.NewReader(data), format, s.readOpts)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	sum := blake2b.Sum256(data)
	return s.ingest(ctx, sessionID, fileName, format, hex.EncodeToString(sum[:]), table)
}

// ImportSheet reads a spreadsheet range and makes it the session's current
// dataset
func (s *DatasetService) ImportSheet(ctx context.Context, sessionID, spreadsheetID, readRange string) (*Dataset, error) {
	if s.sheets == nil {
		return nil, apierrors.ErrSheetsDisabled
	}
	if sessionID == "" {
		return nil, apierrors.NewAppValidationError("session id is required")
	}

	if s.sheetsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.sheetsTimeout)
		defer cancel()
	}

	table, err := s.sheets.ReadTable(ctx, spreadsheetID, readRange)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	name := spreadsheetID + "!" + readRange
	return s.ingest(ctx, sessionID, name, dataprocessing.FormatSheets, fingerprintTable(table), table)
}

func (s *DatasetService) ingest(ctx context.Context, sessionID, name string, format dataprocessing.Format, fingerprint string, table *dataprocessing.Table) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}

	normalized, stats, err := dataprocessing.Preprocess(table)
	if err != nil {
		s.recordFailure(ctx, err)
		s.logger.WarnContext(ctx, "dataset rejected",
			slog.String("session_id", sessionID),
			slog.String("file_name", name),
			slog.String("error", err.Error()))
		return nil, err
	}

	ds := &Dataset{
		Fingerprint:        fingerprint,
		FileName:           name,
		Format:             format,
		Records:            stats.Records,
		UnparseableVolumes: stats.UnparseableVolumes,
		UnparseableSamples: stats.UnparseableSamples,
		Columns:            normalized.Columns(),
		UploadedAt:         s.now().UTC(),
		table:              normalized,
		stats:              stats,
	}

	sess := s.session(sessionID)
	sess.mu.Lock()
	replaced := sess.dataset != nil
	// Stale results go before the new dataset becomes visible
	purged := s.results.DeletePrefix(sessionPrefix(sessionID))
	sess.dataset = ds
	sess.mu.Unlock()

	if !replaced {
		s.metrics.RecordSessionChange(ctx, 1)
	}
	s.metrics.RecordUpload(ctx, string(format), stats.Records, stats.UnparseableVolumes)

	logAttrs := []any{
		slog.String("session_id", sessionID),
		slog.String("file_name", name),
		slog.String("format", string(format)),
		slog.String("fingerprint", fingerprint[:min(12, len(fingerprint))]),
		slog.Int("records", stats.Records),
		slog.Int("purged_results", purged),
	}
	s.logger.InfoContext(ctx, "dataset loaded", logAttrs...)
	if stats.UnparseableVolumes > 0 {
		s.logger.WarnContext(ctx, "records without a numeric volume",
			slog.String("session_id", sessionID),
			slog.Int("count", stats.UnparseableVolumes),
			slog.Any("samples", stats.UnparseableSamples))
	}

	s.publish(sessionID, EventDatasetReplaced, ds)
	return ds, nil
}

// Current returns the session's dataset metadata
func (s *DatasetService) Current(ctx context.Context, sessionID string) (*Dataset, error) {
	ds := s.dataset(sessionID)
	if ds == nil {
		return nil, ErrNoDataset
	}
	return ds, nil
}

// Clear drops the session's dataset and every result built from it
func (s *DatasetService) Clear(ctx context.Context, sessionID string) error {
	sess, ok := s.sessions.Touch(sessionID)
	if !ok {
		return ErrNoDataset
	}

	sess.mu.Lock()
	if sess.dataset == nil {
		sess.mu.Unlock()
		return ErrNoDataset
	}
	fingerprint := sess.dataset.Fingerprint
	s.results.DeletePrefix(sessionPrefix(sessionID))
	sess.dataset = nil
	sess.mu.Unlock()

	s.metrics.RecordSessionChange(ctx, -1)
	s.logger.InfoContext(ctx, "dataset cleared", slog.String("session_id", sessionID))
	s.publish(sessionID, EventDatasetCleared, map[string]string{"fingerprint": fingerprint})
	return nil
}

// BuildOptions resolves n against the configured default and Other rule.
// n <= 0 selects the configured TopN.
func (s *DatasetService) BuildOptions(n int) dataprocessing.BuildOptions {
	if n <= 0 {
		n = s.cfg.TopN
	}
	if s.cfg.CorrectOther {
		return dataprocessing.CorrectedBuildOptions(n)
	}
	return dataprocessing.BuildOptions{N: n, OtherFrom: dataprocessing.OtherOffset}
}

// Products returns the data products of the session's dataset for a Top-N
// size, building them at most once per (fingerprint, n, Other rule) while
// cached. view only labels metrics.
func (s *DatasetService) Products(ctx context.Context, sessionID, view string, n int) (*dataprocessing.Products, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ds := s.dataset(sessionID)
	if ds == nil {
		return nil, ErrNoDataset
	}

	opts := s.BuildOptions(n)
	key := resultKey(sessionID, ds.Fingerprint, viewProducts, opts)

	if p, ok := s.results.Get(key); ok {
		s.metrics.RecordCacheLookup(ctx, view, true)
		return p, nil
	}
	s.metrics.RecordCacheLookup(ctx, view, false)

	// The build is shared by every caller of key, so it must not die with
	// whichever caller started it. Each caller still stops waiting when its
	// own ctx ends.
	buildCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		p, err := s.build(buildCtx, ds.table, ds.stats, opts)
		if err != nil {
			return nil, err
		}
		s.metrics.RecordAggregation(buildCtx, view, time.Since(start))

		// Only store while the dataset is still current
		if s.dataset(sessionID) == ds {
			s.results.Set(key, p)
		}
		return p, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		s.logger.ErrorContext(ctx, "building data products failed",
			slog.String("session_id", sessionID),
			slog.String("view", view),
			slog.String("error", err.Error()))
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "aggregation shared with concurrent request",
			slog.String("session_id", sessionID),
			slog.String("view", view))
	}
	return v.(*dataprocessing.Products), nil
}

// Summary returns the full per-category summary grouped by item or family
func (s *DatasetService) Summary(ctx context.Context, sessionID, groupBy string) (*dataprocessing.Summary, error) {
	p, err := s.Products(ctx, sessionID, "summary", 0)
	if err != nil {
		return nil, err
	}
	switch groupBy {
	case "", GroupByItem:
		return p.Items, nil
	case GroupByFamily:
		return p.Families, nil
	default:
		return nil, apierrors.NewAppValidationError(fmt.Sprintf("group_by must be %q or %q", GroupByItem, GroupByFamily))
	}
}

// Top returns the Top-N view for n
func (s *DatasetService) Top(ctx context.Context, sessionID string, n int) (dataprocessing.TopNView, error) {
	p, err := s.Products(ctx, sessionID, "top", n)
	if err != nil {
		return dataprocessing.TopNView{}, err
	}
	return p.TopN, nil
}

// Totals returns the headline metrics
func (s *DatasetService) Totals(ctx context.Context, sessionID string) (dataprocessing.Totals, error) {
	p, err := s.Products(ctx, sessionID, "totals", 0)
	if err != nil {
		return dataprocessing.Totals{}, err
	}
	return p.Totals, nil
}

func (s *DatasetService) session(id string) *Session {
	// Touch and Set are separately locked; two first uploads racing on one
	// session may each create it, and the later Set wins.
	if sess, ok := s.sessions.Touch(id); ok {
		return sess
	}
	sess := &Session{ID: id}
	s.sessions.Set(id, sess)
	return sess
}

// dataset returns the session's current dataset. Any use of a session
// restarts its SessionTTL.
func (s *DatasetService) dataset(sessionID string) *Dataset {
	sess, ok := s.sessions.Touch(sessionID)
	if !ok {
		return nil
	}
	return sess.current()
}

func (s *DatasetService) publish(sessionID, eventType string, data interface{}) {
	if s.events == nil {
		return
	}
	s.events.PublishToSession(sessionID, eventType, data)
}

func (s *DatasetService) recordFailure(ctx context.Context, err error) {
	s.metrics.RecordUploadFailure(ctx, failureKind(err))
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, dataprocessing.ErrMissingColumn):
		return "missing_column"
	case errors.Is(err, dataprocessing.ErrMalformedFile):
		return "malformed_file"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case apierrors.IsType(err, apierrors.ErrTypeNetwork):
		return "network"
	default:
		return "other"
	}
}

func sessionPrefix(sessionID string) string {
	return sessionID + "|"
}

func resultKey(sessionID, fingerprint, view string, opts dataprocessing.BuildOptions) string {
	return sessionPrefix(sessionID) + fingerprint + "|" + view + "|" +
		strconv.Itoa(opts.N) + "|" + strconv.Itoa(opts.OtherFrom)
}

// fingerprintTable hashes the header and cells of a table that did not come
// from an uploaded file
func fingerprintTable(t *dataprocessing.Table) string {
	h, _ := blake2b.New256(nil)
	for _, name := range t.Header {
		io.WriteString(h, name)
		h.Write([]byte{0x1f})
	}
	for _, rec := range t.Records {
		h.Write([]byte{0x1e})
		for _, name := range t.Header {
			io.WriteString(h, rec.Cells[name])
			h.Write([]byte{0x1f})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
