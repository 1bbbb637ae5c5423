package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskd/internal/database"
	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/marketdata"
	"github.com/aristath/riskd/internal/modules/concentration"
	concentrationhandlers "github.com/aristath/riskd/internal/modules/concentration/handlers"
	"github.com/aristath/riskd/internal/modules/contagion"
	contagionhandlers "github.com/aristath/riskd/internal/modules/contagion/handlers"
	"github.com/aristath/riskd/internal/modules/credit"
	credithandlers "github.com/aristath/riskd/internal/modules/credit/handlers"
	"github.com/aristath/riskd/internal/modules/factors"
	factorshandlers "github.com/aristath/riskd/internal/modules/factors/handlers"
	"github.com/aristath/riskd/internal/modules/portfolio"
	portfoliohandlers "github.com/aristath/riskd/internal/modules/portfolio/handlers"
	"github.com/aristath/riskd/internal/modules/report"
	reporthandlers "github.com/aristath/riskd/internal/modules/report/handlers"
	"github.com/aristath/riskd/internal/modules/stress"
	stresshandlers "github.com/aristath/riskd/internal/modules/stress/handlers"
	"github.com/aristath/riskd/internal/modules/varengine"
	varhandlers "github.com/aristath/riskd/internal/modules/varengine/handlers"
)

func newTestServer(t *testing.T) (*Server, *portfolio.Repository, *marketdata.HistoryDB) {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.New(database.Config{
		Path: "file:servertest?mode=memory&cache=shared",
		Name: "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	history := marketdata.NewHistoryDB(db.Conn(), log)
	require.NoError(t, history.Init())
	repo := portfolio.NewRepository(db.Conn(), log)
	require.NoError(t, repo.Init())
	snapshots := report.NewSnapshotStore(db.Conn(), log)
	require.NoError(t, snapshots.Init())

	_, err = db.Conn().Exec(`DELETE FROM positions; DELETE FROM counterparties;
		DELETE FROM daily_prices; DELETE FROM report_snapshots;`)
	require.NoError(t, err)

	varEngine := varengine.New(history, log)
	stressEngine := stress.New(log)
	factorEngine := factors.New(history, log)
	concentrationEngine := concentration.New(log)
	creditEngine := credit.New(history, log)
	contagionEngine := contagion.New(log)
	assembler := report.NewAssembler(history, varEngine, stressEngine, factorEngine, creditEngine, log)
	reportHandler := reporthandlers.NewHandler(assembler, snapshots, repo, log)

	srv := New(Config{
		Log:         log,
		Port:        0,
		DevMode:     true,
		PortfolioDB: db,

		VaRHandler:           varhandlers.NewHandler(varEngine, log),
		StressHandler:        stresshandlers.NewHandler(stressEngine, repo, log),
		FactorsHandler:       factorshandlers.NewHandler(factorEngine, log),
		ConcentrationHandler: concentrationhandlers.NewHandler(concentrationEngine, repo, log),
		CreditHandler:        credithandlers.NewHandler(creditEngine, repo, log),
		ContagionHandler:     contagionhandlers.NewHandler(contagionEngine, creditEngine, repo, log),
		ReportHandler:        reportHandler,
		PortfolioHandler:     portfoliohandlers.NewHandler(repo, log),
	})

	return srv, repo, history
}

func seedPrices(t *testing.T, history *marketdata.HistoryDB, symbol string, closes []float64) {
	t.Helper()
	var prices []marketdata.DailyPrice
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		prices = append(prices, marketdata.DailyPrice{Date: base.AddDate(0, 0, i), Close: c})
	}
	require.NoError(t, history.UpsertDailyPrices(symbol, prices))
}

func postJSON(t *testing.T, srv *Server, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestVaREndpoint(t *testing.T) {
	srv, _, history := newTestServer(t)

	seedPrices(t, history, "A", []float64{100, 101, 99, 102, 100, 103})

	rec := postJSON(t, srv, "/api/risk/var", map[string]interface{}{
		"weights":    map[string]float64{"A": 1.0},
		"confidence": 0.95,
		"method":     "historical",
		"start":      "2025-01-01",
		"end":        "2025-01-07",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result varengine.ValueAtRisk
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, varengine.MethodHistorical, result.Method)
	assert.Greater(t, result.VaR, 0.0)
}

func TestVaREndpointRejectsBadMethod(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := postJSON(t, srv, "/api/risk/var", map[string]interface{}{
		"weights":    map[string]float64{"A": 1.0},
		"confidence": 0.95,
		"method":     "quantum",
		"start":      "2025-01-01",
		"end":        "2025-01-07",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConcentrationEndpoint(t *testing.T) {
	srv, repo, _ := newTestServer(t)

	require.NoError(t, repo.UpsertCounterparty(domain.CounterpartyInfo{ID: "CP1", Name: "Acme", Rating: domain.RatingA}))
	require.NoError(t, repo.UpsertCounterparty(domain.CounterpartyInfo{ID: "CP2", Name: "Globex", Rating: domain.RatingBB}))
	require.NoError(t, repo.UpsertPosition("CP1", "A", 100, 10, 0.5))
	require.NoError(t, repo.UpsertPosition("CP2", "B", 100, 10, 0.5))

	rec := postJSON(t, srv, "/api/risk/concentration", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var analysis concentration.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.InDelta(t, 0.5, analysis.HHI, 1e-9)
	assert.InDelta(t, 2.0, analysis.EffectiveCount, 1e-9)
}

func TestCreditEndpointUnknownCounterparty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := postJSON(t, srv, "/api/risk/credit", map[string]interface{}{
		"counterparty_id": "GHOST",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportsLatestEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/reports/latest", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
