package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/modules/portfolio"
	"github.com/aristath/riskd/internal/modules/stress"
)

// defaultScenarios are the shock vectors the nightly job runs when no
// custom set is configured. Shocks apply to every stored symbol.
func defaultScenarios(weights map[string]float64) []stress.Scenario {
	uniform := func(shock float64) map[string]float64 {
		shocks := make(map[string]float64, len(weights))
		for symbol := range weights {
			shocks[symbol] = shock
		}
		return shocks
	}
	return []stress.Scenario{
		{Name: "market_correction", Shocks: uniform(-0.10)},
		{Name: "market_crash", Shocks: uniform(-0.30)},
	}
}

// defaultFactors drive the nightly attribution.
var defaultFactors = []string{"market", "rates", "credit", "liquidity"}

// SnapshotJob regenerates the portfolio risk report from the stored
// positions and persists it. It runs nightly under the scheduler.
type SnapshotJob struct {
	assembler    *Assembler
	store        *SnapshotStore
	repo         *portfolio.Repository
	lookbackDays int
	log          zerolog.Logger
}

// NewSnapshotJob creates the nightly snapshot job.
func NewSnapshotJob(
	assembler *Assembler,
	store *SnapshotStore,
	repo *portfolio.Repository,
	lookbackDays int,
	log zerolog.Logger,
) *SnapshotJob {
	if lookbackDays <= 0 {
		lookbackDays = 252
	}
	return &SnapshotJob{
		assembler:    assembler,
		store:        store,
		repo:         repo,
		lookbackDays: lookbackDays,
		log:          log.With().Str("job", "report_snapshot").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *SnapshotJob) Name() string {
	return "report_snapshot"
}

// Run implements scheduler.Job: load the stored portfolio, generate a
// fresh report and store the snapshot.
func (j *SnapshotJob) Run() error {
	weights, err := j.repo.GetWeights()
	if err != nil {
		return fmt.Errorf("snapshot job: %w", err)
	}
	if len(weights) == 0 {
		j.log.Warn().Msg("No stored positions, skipping report snapshot")
		return nil
	}

	positions, err := j.repo.GetPositions()
	if err != nil {
		return fmt.Errorf("snapshot job: %w", err)
	}
	counterparties, err := j.repo.GetCounterparties()
	if err != nil {
		return fmt.Errorf("snapshot job: %w", err)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -j.lookbackDays)

	report, err := j.assembler.GenerateReport(context.Background(), Params{
		Weights:        weights,
		Scenarios:      defaultScenarios(weights),
		StressLossCap:  0.10,
		Factors:        defaultFactors,
		Counterparties: counterparties,
		Positions:      positions,
		Start:          start,
		End:            end,
	})
	if err != nil {
		return fmt.Errorf("snapshot job: %w", err)
	}

	if err := j.store.Save(report); err != nil {
		return fmt.Errorf("snapshot job: %w", err)
	}

	j.log.Info().
		Str("report_id", report.ID).
		Str("rating", string(report.Rating)).
		Msg("Stored nightly report snapshot")

	return nil
}
