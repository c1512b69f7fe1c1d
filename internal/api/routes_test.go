package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/card-valuer/internal/database"
	"github.com/codyseavey/card-valuer/internal/models"
	"github.com/codyseavey/card-valuer/internal/services"
)

func newTestRouter(t *testing.T) (*gin.Engine, Services) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	dir := t.TempDir()
	catalog := services.NewCatalogService(db)
	store := services.NewResultStore(dir, 0, "")
	snapshots := services.NewSnapshotService(db, catalog, store, "collection", 0)

	factory := func(ctx context.Context) (services.ListingSession, error) {
		return nil, errors.New("no render service in tests")
	}
	orch := services.NewScrapeOrchestrator(services.OrchestratorOptions{Workers: 1}, services.NewQueryBuilder(nil), nil, factory, nil, store)
	worker := services.NewScrapeWorker(catalog, orch, snapshots, services.CatalogFilter{}, time.Hour, false)

	svc := Services{Catalog: catalog, Store: store, Worker: worker, Snapshots: snapshots}
	return SetupRouter(svc, nil), svc
}

func do(t *testing.T, router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "cardvalue_http_requests_total"))
}

func TestCardRoutes(t *testing.T) {
	router, svc := newTestRouter(t)

	_, err := svc.Catalog.Import([]models.CatalogEntry{{ID: "wemby", Identifier: "2023 Panini Prizm - #136 - Victor Wembanyama"}})
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/api/cards/wemby")
	require.Equal(t, http.StatusOK, w.Code)
	var card models.Card
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.Equal(t, "2023 Panini Prizm - #136 - Victor Wembanyama", card.Identifier)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/cards/nope").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/cards/nope/history").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/cards/wemby/sales").Code, "not scraped yet")

	require.NoError(t, svc.Store.AppendHistory("wemby", models.PriceHistoryEntry{Date: "2026-10-14", FairValue: 100, NumSales: 3, Trend: models.TrendStable}))
	w = do(t, router, http.MethodGet, "/api/cards/wemby/history")
	require.Equal(t, http.StatusOK, w.Code)
	var history models.PriceHistory
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Entries, 1)
	assert.Equal(t, 100.0, history.Entries[0].FairValue)

	require.NoError(t, svc.Store.SaveCardRecord(models.CardResult{
		CardID: "wemby", Outcome: models.OutcomeFound, FairValue: 100,
		Sales: []models.Sale{{Title: "Wembanyama #136", Price: 100}},
	}))
	w = do(t, router, http.MethodGet, "/api/cards/wemby/sales")
	require.Equal(t, http.StatusOK, w.Code)
	var record models.CardRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Len(t, record.Sales, 1)

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/cards/wemby/archive").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPost, "/api/cards/nope/archive").Code)
	got, err := svc.Catalog.Get("wemby")
	require.NoError(t, err)
	assert.True(t, got.Archived)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/cards/wemby/restore").Code)
}

func TestScrapeRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	w := do(t, router, http.MethodGet, "/api/scrape/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status services.ScrapeStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.False(t, status.Running)
	assert.Equal(t, "1h0m0s", status.Interval)

	w = do(t, router, http.MethodPost, "/api/scrape/run")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"queued":true,"running":false}`, w.Body.String())

	w = do(t, router, http.MethodPost, "/api/scrape/run")
	assert.JSONEq(t, `{"queued":false,"running":false}`, w.Body.String())
}

func TestPortfolioRoutes(t *testing.T) {
	router, svc := newTestRouter(t)

	_, err := svc.Catalog.Import([]models.CatalogEntry{
		{ID: "a", Identifier: "2023 Prizm - #1 - Player A"},
		{ID: "b", Identifier: "2023 Prizm - #2 - Player B"},
	})
	require.NoError(t, err)
	_, err = svc.Catalog.ApplyResults([]models.CardResult{
		{CardID: "a", Outcome: models.OutcomeFound, FairValue: 10},
		{CardID: "b", Outcome: models.OutcomeFound, FairValue: 30},
	})
	require.NoError(t, err)
	_, err = svc.Snapshots.TakeSnapshot()
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/api/portfolio/stats")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"card_count":2,"total_value":40,"average_value":20}`, w.Body.String())

	w = do(t, router, http.MethodGet, "/api/portfolio/history?period=all")
	require.Equal(t, http.StatusOK, w.Code)
	var history models.ValueHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	assert.Equal(t, "all", history.Period)
	require.Len(t, history.Snapshots, 1)
	assert.Equal(t, 40.0, history.Snapshots[0].TotalValue)
}

func TestMetricsServer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewMetricsServer("127.0.0.1:0")
	assert.Equal(t, "127.0.0.1:0", srv.Addr)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cardvalue_scrape_run_in_progress")

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/scrape/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
