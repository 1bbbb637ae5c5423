package varengine

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/pkg/formulas"
)

// SimulatePortfolioReturns draws simulated portfolio returns by fitting
// an independent Normal(mean, std) to each asset's historical returns and
// summing weighted per-asset draws. Cross-asset correlation is not
// modeled; this mirrors the per-asset GBM-style simulation the
// methodology is calibrated against.
//
// A seed of 0 draws a clock-derived seed, making results
// non-reproducible; tests must pass a fixed seed.
func SimulatePortfolioReturns(
	perAsset map[string][]float64,
	weights map[string]float64,
	simulations int,
	seed uint64,
) ([]float64, error) {
	if simulations <= 0 {
		simulations = DefaultSimulations
	}

	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(seed, seed)
	}

	// Fit marginal distributions. Assets with no usable history are
	// excluded from the simulation rather than treated as riskless.
	type marginal struct {
		weight float64
		dist   distuv.Normal
	}
	assets := make([]string, 0, len(weights))
	for asset := range weights {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	marginals := make([]marginal, 0, len(assets))
	for _, asset := range assets {
		rets, ok := perAsset[asset]
		if !ok || len(rets) == 0 {
			continue
		}
		weight := weights[asset]

		sigma := formulas.StdDev(rets)
		if math.IsNaN(sigma) {
			sigma = 0
		}
		marginals = append(marginals, marginal{
			weight: weight,
			dist: distuv.Normal{
				Mu:    formulas.Mean(rets),
				Sigma: math.Max(sigma, 1e-12),
				Src:   src,
			},
		})
	}

	if len(marginals) == 0 {
		return nil, fmt.Errorf("monte carlo simulation: %w", domain.ErrEmptySeries)
	}

	simulated := make([]float64, simulations)
	for i := 0; i < simulations; i++ {
		draw := 0.0
		for _, m := range marginals {
			draw += m.weight * m.dist.Rand()
		}
		simulated[i] = draw
	}

	return simulated, nil
}
