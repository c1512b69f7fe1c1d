package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codyseavey/card-valuer/internal/models"
)

func TestScrapeWorker_RunOnce(t *testing.T) {
	catalog, db := newTestCatalog(t)
	_, err := catalog.Import([]models.CatalogEntry{
		{ID: "wemby", Identifier: "2023 Panini Prizm - #136 - Victor Wembanyama"},
		{ID: "nobody", Identifier: "2020 Panini Select - #1 - Nobody Special"},
	})
	require.NoError(t, err)

	b := &fakeBackend{respond: byPlayer(map[string][]models.RawListing{
		"Wembanyama": sold("2023 Prizm Victor Wembanyama #136 RC", "$100.00", "$100.00", "$100.00"),
	})}
	dir := t.TempDir()
	store := NewResultStore(dir, 0, "")
	o := newTestOrchestrator(OrchestratorOptions{Workers: 2}, b, NewFileCheckpointStore(dir), store)
	snaps := NewSnapshotService(db, catalog, store, "collection", 0).WithClock(func() time.Time { return testClock })
	w := NewScrapeWorker(catalog, o, snaps, CatalogFilter{}, time.Hour, false)

	report, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Stats.Completed)

	wemby, err := catalog.Get("wemby")
	require.NoError(t, err)
	assert.Equal(t, 100.0, wemby.FairValue)
	assert.Equal(t, models.OutcomeFound, wemby.ScrapeOutcome)

	nobody, err := catalog.Get("nobody")
	require.NoError(t, err)
	assert.Equal(t, 1.0, nobody.FairValue)

	last := snaps.GetLastSnapshot()
	require.NotNil(t, last)
	assert.Equal(t, 101.0, last.TotalValue)
	assert.Equal(t, 2, last.CardCount)

	status := w.GetStatus()
	assert.False(t, status.Running)
	require.NotNil(t, status.LastStats)
	assert.Equal(t, 1, status.LastStats.Found)
	assert.Empty(t, status.LastError)
	assert.Equal(t, "1h0m0s", status.Interval)
}

func TestScrapeWorker_DryRunLeavesCatalog(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	_, err := catalog.Import([]models.CatalogEntry{{ID: "wemby", Identifier: "2023 Panini Prizm - #136 - Victor Wembanyama"}})
	require.NoError(t, err)

	b := &fakeBackend{respond: byPlayer(map[string][]models.RawListing{
		"Wembanyama": sold("2023 Prizm Victor Wembanyama #136 RC", "$50.00"),
	})}
	o := newTestOrchestrator(OrchestratorOptions{Workers: 1, DryRun: true}, b, nil, nil)
	w := NewScrapeWorker(catalog, o, nil, CatalogFilter{}, time.Hour, true)

	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)

	wemby, err := catalog.Get("wemby")
	require.NoError(t, err)
	assert.Nil(t, wemby.LastScrapedAt)
	assert.Zero(t, wemby.FairValue)
}

func TestScrapeWorker_EmptyCatalog(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	b := &fakeBackend{respond: byPlayer(nil)}
	w := NewScrapeWorker(catalog, newTestOrchestrator(OrchestratorOptions{}, b, nil, nil), nil, CatalogFilter{}, time.Hour, false)

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrCatalogEmpty)
	assert.Equal(t, ErrCatalogEmpty.Error(), w.GetStatus().LastError)
	assert.Zero(t, b.created, "no session is opened for an empty catalog")
}

func TestScrapeWorker_NeverOverlaps(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	_, err := catalog.Import([]models.CatalogEntry{{ID: "wemby", Identifier: "2023 Panini Prizm - #136 - Victor Wembanyama"}})
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	b := &fakeBackend{respond: func(string) ([]models.RawListing, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return sold("2023 Prizm Victor Wembanyama #136 RC", "$50.00"), nil
	}}
	w := NewScrapeWorker(catalog, newTestOrchestrator(OrchestratorOptions{Workers: 1}, b, nil, nil), nil, CatalogFilter{}, time.Hour, false)

	done := make(chan error, 1)
	go func() {
		_, err := w.RunOnce(context.Background())
		done <- err
	}()
	<-started

	assert.True(t, w.GetStatus().Running)
	require.NotNil(t, w.GetStatus().Progress)
	_, err = w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, w.GetStatus().Running)
}

func TestScrapeWorker_QueueRun(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	w := NewScrapeWorker(catalog, newTestOrchestrator(OrchestratorOptions{}, &fakeBackend{}, nil, nil), nil, CatalogFilter{}, time.Hour, false)

	assert.True(t, w.QueueRun())
	assert.False(t, w.QueueRun(), "a second request while one is queued is dropped")
	assert.True(t, w.GetStatus().Queued)
}
