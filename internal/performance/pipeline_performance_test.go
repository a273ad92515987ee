package performance

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtodash/internal/config"
	"qtodash/internal/dataprocessing"
	apierrors "qtodash/internal/errors"
	"qtodash/internal/exporter"
	"qtodash/internal/middleware"
	"qtodash/internal/presentation"
	"qtodash/internal/services"
	handlers "qtodash/internal/transport/http"
)

const (
	LoadTestDuration = 2 * time.Second
	MaxP95Latency    = 500 * time.Millisecond
)

var RecordCounts = []int{1_000, 10_000, 100_000}

// scheduleCSV builds a schedule export with records rows spread over
// families*types categories
func scheduleCSV(records, families, types int) string {
	var b strings.Builder
	b.Grow(records * 40)
	b.WriteString("Family Name,Type Name,Volume,Level\n")
	for i := 0; i < records; i++ {
		fmt.Fprintf(&b, "Family %03d,Type %03d,%d.%02d m³,Level %d\n",
			i%families, (i/families)%types, i%97, i%100, i%5)
	}
	return b.String()
}

func readTable(tb testing.TB, data string) *dataprocessing.Table {
	tb.Helper()
	table, err := dataprocessing.ReadCSV(context.Background(), strings.NewReader(data), dataprocessing.ReadOptions{})
	require.NoError(tb, err)
	return table
}

func BenchmarkReadCSV(b *testing.B) {
	for _, n := range RecordCounts {
		data := scheduleCSV(n, 40, 25)
		b.Run(fmt.Sprintf("records=%d", n), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				readTable(b, data)
			}
		})
	}
}

func BenchmarkAnalyze(b *testing.B) {
	for _, n := range RecordCounts {
		table := readTable(b, scheduleCSV(n, 40, 25))
		b.Run(fmt.Sprintf("records=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := dataprocessing.Analyze(context.Background(), table, dataprocessing.DefaultBuildOptions()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkPresenters(b *testing.B) {
	table := readTable(b, scheduleCSV(10_000, 40, 25))
	products, err := dataprocessing.Analyze(context.Background(), table, dataprocessing.DefaultBuildOptions())
	require.NoError(b, err)

	registry := presentation.NewRegistry()
	exporter.RegisterAll(registry, slog.New(slog.NewTextHandler(io.Discard, nil)))
	registry.Register("text", presentation.NewTextPresenter())
	registry.Register("dashboard", presentation.NewChartPresenter())

	for _, format := range registry.Formats() {
		p, _ := registry.Get(format)
		b.Run(format, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if err := p.Present(context.Background(), io.Discard, products); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkProductsCache compares a cached read with a rebuild
func BenchmarkProductsCache(b *testing.B) {
	svc, err := services.NewDatasetService(config.Default().Dataset, services.DatasetServiceOptions{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(b, err)
	_, err = svc.Upload(context.Background(), "bench", "schedule.csv", strings.NewReader(scheduleCSV(50_000, 40, 25)))
	require.NoError(b, err)

	b.Run("hit", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			if _, err := svc.Products(context.Background(), "bench", "bench", 20); err != nil {
				b.Fatal(err)
			}
		}
	})
	b.Run("miss", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			// a new n is a new cache key
			if _, err := svc.Products(context.Background(), "bench", "bench", 21+i%900); err != nil {
				b.Fatal(err)
			}
		}
	})
}

// PerformanceTestSuite serves the dataset routes over a real listener
type PerformanceTestSuite struct {
	service *services.DatasetService
	server  *httptest.Server
}

func setupPerformanceTest(t *testing.T) *PerformanceTestSuite {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := services.NewDatasetService(config.Default().Dataset, services.DatasetServiceOptions{Logger: logger})
	require.NoError(t, err)

	registry := presentation.NewRegistry()
	exporter.RegisterAll(registry, logger)
	h := handlers.NewDatasetHandler(svc, registry, middleware.NewValidator(logger),
		apierrors.NewErrorHandler(logger, false), logger, handlers.DatasetHandlerOptions{MaxUploadBytes: 64 << 20})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := r.Header.Get("X-Session")
			next.ServeHTTP(w, r.WithContext(middleware.WithSessionID(r.Context(), sid)))
		})
	})
	r.Mount("/api/dataset", h.Routes())

	suite := &PerformanceTestSuite{service: svc, server: httptest.NewServer(r)}
	t.Cleanup(suite.server.Close)
	return suite
}

func (s *PerformanceTestSuite) upload(t *testing.T, session, data string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "schedule.csv")
	require.NoError(t, err)
	_, err = io.WriteString(fw, data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/dataset", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Session", session)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// LoadTestResults summarizes one load run
type LoadTestResults struct {
	Requests   int64
	Errors     int64
	P95Latency time.Duration
	Throughput float64
}

func runLoadTest(t *testing.T, concurrency int, duration time.Duration, newRequest func(worker int) *http.Request) LoadTestResults {
	t.Helper()
	var (
		requests  int64
		failures  int64
		mu        sync.Mutex
		latencies []time.Duration
		wg        sync.WaitGroup
	)

	deadline := time.Now().Add(duration)
	client := &http.Client{Timeout: 10 * time.Second}
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for time.Now().Before(deadline) {
				start := time.Now()
				resp, err := client.Do(newRequest(worker))
				elapsed := time.Since(start)

				atomic.AddInt64(&requests, 1)
				if err != nil {
					atomic.AddInt64(&failures, 1)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					atomic.AddInt64(&failures, 1)
				}

				mu.Lock()
				latencies = append(latencies, elapsed)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	res := LoadTestResults{
		Requests:   requests,
		Errors:     failures,
		Throughput: float64(requests) / duration.Seconds(),
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		res.P95Latency = latencies[len(latencies)*95/100]
	}
	return res
}

func TestLoadDashboardEndpoint(t *testing.T) {
	if testing.Short() {
		t.Skip("load test")
	}
	suite := setupPerformanceTest(t)

	const sessions = 8
	data := scheduleCSV(20_000, 40, 25)
	for i := 0; i < sessions; i++ {
		suite.upload(t, fmt.Sprintf("load-%d", i), data)
	}

	for _, concurrency := range []int{1, 8, 32} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			res := runLoadTest(t, concurrency, LoadTestDuration, func(worker int) *http.Request {
				req, _ := http.NewRequest(http.MethodGet, suite.server.URL+"/api/dataset/dashboard?n=20", nil)
				req.Header.Set("X-Session", fmt.Sprintf("load-%d", worker%sessions))
				return req
			})

			t.Logf("requests=%d errors=%d p95=%s throughput=%.0f/s",
				res.Requests, res.Errors, res.P95Latency, res.Throughput)
			assert.Zero(t, res.Errors)
			assert.Positive(t, res.Requests)
			assert.Less(t, res.P95Latency, MaxP95Latency)
		})
	}
}

func TestConcurrentFirstReadsBuildOnce(t *testing.T) {
	suite := setupPerformanceTest(t)
	suite.upload(t, "burst", scheduleCSV(50_000, 40, 25))

	var wg sync.WaitGroup
	results := make([]*dataprocessing.Products, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := suite.service.Products(context.Background(), "burst", "burst", 15)
			assert.NoError(t, err)
			results[i] = p
		}(i)
	}
	wg.Wait()

	// every caller gets the single shared build
	for _, p := range results[1:] {
		assert.Same(t, results[0], p)
	}
}

func TestMemoryReleasedAfterClear(t *testing.T) {
	if testing.Short() {
		t.Skip("memory test")
	}
	suite := setupPerformanceTest(t)

	var before runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	for i := 0; i < 5; i++ {
		session := fmt.Sprintf("mem-%d", i)
		suite.upload(t, session, scheduleCSV(50_000, 40, 25))
		_, err := suite.service.Products(context.Background(), session, "mem", 20)
		require.NoError(t, err)
		require.NoError(t, suite.service.Clear(context.Background(), session))
	}

	var after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&after)

	growth := int64(after.HeapAlloc) - int64(before.HeapAlloc)
	t.Logf("heap growth after clearing 5 sessions: %d KiB", growth/1024)
	assert.Less(t, growth, int64(64<<20))
}
