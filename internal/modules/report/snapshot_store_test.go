package report

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskd/internal/database"
	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/portfolio"
)

func newTestSnapshotStore(t *testing.T, name string) *SnapshotStore {
	t.Helper()

	db, err := database.New(database.Config{
		Path: "file:" + name + "?mode=memory&cache=shared",
		Name: "reports",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSnapshotStore(db.Conn(), zerolog.Nop())
	require.NoError(t, store.Init())
	return store
}

func sampleReport(id string, generatedAt time.Time) *RiskReport {
	return &RiskReport{
		ID:          id,
		GeneratedAt: generatedAt,
		Volatility:  0.18,
		Rating:      RatingMedium,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := newTestSnapshotStore(t, "snaproundtrip")

	now := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(sampleReport("r1", now)))
	require.NoError(t, store.Save(sampleReport("r2", now.AddDate(0, 0, 1))))

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)
	assert.Equal(t, RatingMedium, latest.Rating)
	assert.InDelta(t, 0.18, latest.Volatility, 1e-12)

	first, err := store.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", first.ID)
}

func TestSnapshotLatestEmpty(t *testing.T) {
	store := newTestSnapshotStore(t, "snapempty")

	_, err := store.Latest()
	require.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestSnapshotPrune(t *testing.T) {
	store := newTestSnapshotStore(t, "snapprune")

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(sampleReport("old", old)))
	require.NoError(t, store.Save(sampleReport("new", recent)))

	pruned, err := store.Prune(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), pruned)

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.Equal(t, "new", latest.ID)

	_, err = store.Get("old")
	require.Error(t, err)
}

func TestSnapshotJobEndToEnd(t *testing.T) {
	db, err := database.New(database.Config{
		Path: "file:snapjob?mode=memory&cache=shared",
		Name: "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := portfolio.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.Init())
	store := NewSnapshotStore(db.Conn(), zerolog.Nop())
	require.NoError(t, store.Init())

	require.NoError(t, repo.UpsertPosition("CP1", "A", 100, 10, 0.6))
	require.NoError(t, repo.UpsertPosition("CP1", "B", 50, 20, 0.4))
	require.NoError(t, repo.UpsertCounterparty(domain.CounterpartyInfo{
		ID: "CP1", Name: "Acme Capital", Rating: domain.RatingBBB,
	}))

	source := &fixedSource{series: map[string][]float64{
		"A": {0.01, -0.02, 0.03, -0.01},
		"B": {0.00, 0.01, -0.01, 0.02},
	}}

	job := NewSnapshotJob(newTestAssembler(source), store, repo, 252, zerolog.Nop())
	assert.Equal(t, "report_snapshot", job.Name())
	require.NoError(t, job.Run())

	latest, err := store.Latest()
	require.NoError(t, err)
	assert.NotEmpty(t, latest.ID)
	assert.Contains(t, latest.CreditByParty, "CP1")
	require.Len(t, latest.StressResults, 2)
}

func TestSnapshotJobEmptyPortfolio(t *testing.T) {
	db, err := database.New(database.Config{
		Path: "file:snapjobempty?mode=memory&cache=shared",
		Name: "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := portfolio.NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.Init())
	store := NewSnapshotStore(db.Conn(), zerolog.Nop())
	require.NoError(t, store.Init())

	job := NewSnapshotJob(newTestAssembler(&fixedSource{}), store, repo, 252, zerolog.Nop())
	// An empty portfolio is a no-op, not an error.
	require.NoError(t, job.Run())
}
