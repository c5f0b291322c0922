package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"harvest/scraper/internal/config"
	"harvest/scraper/internal/domain"
	"harvest/scraper/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/category/hotels", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
<div class="company_header"><h3><a href="/company/1/acme">Acme Ltd</a></h3></div>
<div class="company_header"><h3><a href="/company/2/beta">Beta Co</a></h3></div>
</body></html>`))
	})
	mux.HandleFunc("/company/1/acme", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="company_name">Acme Ltd</div><div class="tagline">Hi</div></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	return &config.Config{
		Harvest: config.HarvestConfig{
			Site:               "businesslist",
			BaseURL:            baseURL,
			MaxConcurrency:     2,
			CollectConcurrency: 1,
			BaseDelay:          time.Millisecond,
			MaxAttempts:        2,
		},
		HTTP: config.HTTPConfig{Timeout: 2 * time.Second},
		Sources: config.SourcesConfig{
			Seeds: []config.SeedConfig{{Name: "Hotels", URL: baseURL + "/category/hotels"}},
		},
		Output: config.OutputConfig{
			CSVPath:   filepath.Join(dir, "data", "profiles.csv"),
			JSONLPath: filepath.Join(dir, "data", "profiles.jsonl"),
		},
		Ledger: config.LedgerConfig{
			Backend:    "file",
			Path:       filepath.Join(dir, "logs", "failed_items.txt"),
			SourcePath: filepath.Join(dir, "logs", "failed_sources.txt"),
		},
		Retry: config.RetryConfig{
			Output:       filepath.Join(dir, "logs", "final_failed_items.txt"),
			SourceOutput: filepath.Join(dir, "logs", "final_failed_sources.txt"),
		},
		Log: config.LogConfig{Level: "error", Format: "text"},
	}
}

func TestContainerRunAndRetry(t *testing.T) {
	srv := newSite(t)
	cfg := testConfig(t, srv.URL)
	ctx := context.Background()

	app, err := New(ctx, cfg)
	require.NoError(t, err)

	report, err := app.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, 2, report.Collected)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, cfg.Ledger.Path, report.Ledger)

	entries, err := ledger.NewFileLedger(cfg.Ledger.Path).ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Beta Co", entries[0].ID)
	assert.Equal(t, srv.URL+"/company/2/beta", entries[0].Target)
	assert.Contains(t, entries[0].Error, "404")

	report, err = app.Retry(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Collected)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, cfg.Retry.Output, report.Ledger)

	final, err := ledger.NewFileLedger(cfg.Retry.Output).ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, final, 1)

	require.NoError(t, app.Close())

	csv, err := os.ReadFile(cfg.Output.CSVPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "company_name,company_url,category,tagline"))
	assert.True(t, strings.HasPrefix(lines[1], "Acme Ltd,"+srv.URL+"/company/1/acme,Hotels,Hi"))
}

func TestNewRejectsBadSetup(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t, "https://example.com")
	cfg.Harvest.Site = "nowhere"
	_, err := New(ctx, cfg)
	assert.ErrorContains(t, err, "unknown site")

	cfg = testConfig(t, "https://example.com")
	cfg.Log.Level = "loud"
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "invalid log level")

	cfg = testConfig(t, "https://example.com")
	cfg.Harvest.Site = "jiji"
	cfg.Sources.Directory = "https://example.com/directory"
	_, err = New(ctx, cfg)
	assert.ErrorContains(t, err, "has no directory page")
}

func TestDirectoryRetriesConfiguredStatuses(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/browse-business-directory", func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`<html><body><ul class="icats">
<li><a href="/category/hotels">Hotels <span>2</span></a></li>
</ul></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	cfg := testConfig(t, srv.URL)
	cfg.Sources.Seeds = nil
	cfg.Sources.Directory = srv.URL + "/browse-business-directory"
	cfg.Harvest.RetryableStatuses = []int{http.StatusServiceUnavailable}

	app, err := New(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	sources, err := app.Orchestrator.Sources.Sources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Source{{Name: "Hotels", URL: srv.URL + "/category/hotels"}}, sources)
	assert.Equal(t, int32(2), calls.Load())
}
