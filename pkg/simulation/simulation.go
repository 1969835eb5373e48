// Package simulation runs Euler-discretised Monte-Carlo paths of wealth and
// the short rate under an arbitrary scenario and portfolio policy.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/iwvelando/robust-portfolio/pkg/ambiguity"
	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/mathutil"
	"github.com/iwvelando/robust-portfolio/pkg/strategy"
	"github.com/iwvelando/robust-portfolio/pkg/termstructure"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidRequest reports an unusable simulation request.
var ErrInvalidRequest = errors.New("invalid simulation request")

// Normal is a source of standard normal draws.
type Normal interface {
	NormFloat64() float64
}

// StreamFunc returns the random source for one batch of paths. Each batch
// must receive an independent stream; the same batch index must always yield
// the same stream for results to be reproducible.
type StreamFunc func(batch int) Normal

// PCGStreams derives one PCG generator per batch from a single seed.
func PCGStreams(seed uint64) StreamFunc {
	return func(batch int) Normal {
		return rand.New(rand.NewPCG(seed, uint64(batch)))
	}
}

// Policy supplies portfolio weights as a function of time.
// *strategy.Strategy satisfies it.
type Policy interface {
	Weights(t float64) (strategy.Weights, error)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(t float64) (strategy.Weights, error)

// Weights calls f(t).
func (f PolicyFunc) Weights(t float64) (strategy.Weights, error) { return f(t) }

// Constant returns a policy holding fixed weights.
func Constant(w strategy.Weights) Policy {
	return PolicyFunc(func(float64) (strategy.Weights, error) { return w, nil })
}

// Request describes one simulation run.
type Request struct {
	// Params supplies the rate dynamics (Kappa, RBar); volatilities and
	// premia come from the scenario.
	Params  ambiguity.ModelParameters
	Horizon strategy.Horizon
	W0      float64
	R0      float64
	Steps   int
	Paths   int
	// BatchSize fixes how paths are grouped onto random streams. Workers only
	// controls parallelism and never changes the result.
	BatchSize int
	Workers   int
	Gamma     float64
	KeepPaths bool
}

// Validate checks the request and fills defaults for zero batch size and
// worker count.
func (r *Request) Validate() error {
	if err := r.Horizon.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	switch {
	case !(r.W0 > 0) || math.IsInf(r.W0, 0):
		return fmt.Errorf("%w: initial wealth must be positive, got %v", ErrInvalidRequest, r.W0)
	case math.IsNaN(r.R0) || math.IsInf(r.R0, 0):
		return fmt.Errorf("%w: initial rate must be finite", ErrInvalidRequest)
	case r.Steps <= 0:
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidRequest, r.Steps)
	case r.Paths <= 0:
		return fmt.Errorf("%w: paths must be positive, got %d", ErrInvalidRequest, r.Paths)
	case !(r.Gamma > 0) || math.IsInf(r.Gamma, 0):
		return fmt.Errorf("%w: gamma must be positive, got %v", ErrInvalidRequest, r.Gamma)
	case r.BatchSize < 0 || r.Workers < 0:
		return fmt.Errorf("%w: batch size and workers must not be negative", ErrInvalidRequest)
	}
	if r.BatchSize == 0 {
		r.BatchSize = constants.DefaultBatchSize
	}
	if r.Workers == 0 {
		r.Workers = runtime.GOMAXPROCS(0)
	}
	return nil
}

// SamplePath is one discretised trajectory: Wealth[i] and Rate[i] at Times[i].
// Every path owns its slices.
type SamplePath struct {
	Times  []float64
	Wealth []float64
	Rate   []float64
}

// NegativeWealthWarning records the first step at which a path's wealth
// became non-positive. The path keeps running and is reported, not dropped.
type NegativeWealthWarning struct {
	Path   int
	Step   int
	Time   float64
	Wealth float64
}

func (w NegativeWealthWarning) Error() string {
	return fmt.Sprintf("path %d: wealth %g at t=%g (step %d)", w.Path, w.Wealth, w.Time, w.Step)
}

// Is makes errors.Is(w, ErrNegativeWealth) hold.
func (w NegativeWealthWarning) Is(target error) bool {
	return target == ErrNegativeWealth
}

// ErrNegativeWealth is matched by every NegativeWealthWarning.
var ErrNegativeWealth = errors.New("non-positive wealth")

// Result holds the outcome of a simulation run. Slices are indexed by path.
type Result struct {
	Scenario string
	Terminal []float64
	Flagged  []bool
	Paths    []SamplePath
	Warnings []NegativeWealthWarning
	Summary  Summary
}

// Simulator runs Monte-Carlo paths.
type Simulator struct {
	logger *zap.Logger
	calc   termstructure.Calculator
}

// NewSimulator creates a simulator. A nil logger disables logging.
func NewSimulator(logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{logger: logger, calc: termstructure.Default}
}

// grid holds per-step quantities shared by every path.
type grid struct {
	dt       float64
	sqrtDt   float64
	times    []float64
	drift    []float64    // pi' lambda_theta(t_i)
	exposure [][2]float64 // pi' sigma_theta(t_i)
}

func (s *Simulator) buildGrid(policy Policy, scenario ambiguity.Scenario, req Request) (grid, error) {
	n := req.Steps
	g := grid{
		dt:       req.Horizon.T / float64(n),
		times:    mathutil.Grid(0, req.Horizon.T, n),
		drift:    make([]float64, n),
		exposure: make([][2]float64, n),
	}
	g.sqrtDt = math.Sqrt(g.dt)
	for i := 0; i < n; i++ {
		t := g.times[i]
		w, err := policy.Weights(t)
		if err != nil {
			return grid{}, fmt.Errorf("policy weights at t=%g: %w", t, err)
		}
		l := scenario.Loadings(t, s.calc.B(req.Params.Kappa, req.Horizon.Maturity-t))
		g.drift[i] = w.Bond*l.Excess[0] + w.Stock*l.Excess[1]
		g.exposure[i] = [2]float64{
			w.Bond*l.Vol[0][0] + w.Stock*l.Vol[1][0],
			w.Bond*l.Vol[0][1] + w.Stock*l.Vol[1][1],
		}
	}
	return g, nil
}

// Run simulates req.Paths paths of (W, r) under scenario while holding the
// weights given by policy:
//
//	r[i+1] = r[i] + kappa (rBar - r[i]) dt + sigmaR dB1
//	W[i+1] = W[i] (1 + (r[i] + pi' lambda) dt + pi' sigma dB)
//
// Paths are split into batches of req.BatchSize, batch k drawing from
// streams(k), and batches run on up to req.Workers goroutines. The context
// is checked between batches.
func (s *Simulator) Run(ctx context.Context, policy Policy, scenario ambiguity.Scenario, req Request, streams StreamFunc) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	if streams == nil {
		return nil, fmt.Errorf("%w: no random source", ErrInvalidRequest)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g, err := s.buildGrid(policy, scenario, req)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Scenario: scenario.Name,
		Terminal: make([]float64, req.Paths),
		Flagged:  make([]bool, req.Paths),
	}
	if req.KeepPaths {
		res.Paths = make([]SamplePath, req.Paths)
	}
	batches := (req.Paths + req.BatchSize - 1) / req.BatchSize
	batchWarnings := make([][]NegativeWealthWarning, batches)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(req.Workers)
	for b := 0; b < batches; b++ {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			lo := b * req.BatchSize
			hi := min(lo+req.BatchSize, req.Paths)
			rng := streams(b)
			for p := lo; p < hi; p++ {
				if w := s.simulatePath(res, p, g, scenario, req, rng); w != nil {
					batchWarnings[b] = append(batchWarnings[b], *w)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("simulation interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulation interrupted: %w", err)
	}

	for _, ws := range batchWarnings {
		res.Warnings = append(res.Warnings, ws...)
	}
	res.Summary = Summarize(res.Terminal, res.Flagged, req.Gamma)

	if len(res.Warnings) > 0 {
		s.logger.Warn("paths reached non-positive wealth; excluded from expected utility",
			zap.String("op", "simulation.Run"),
			zap.String("scenario", scenario.Name),
			zap.Int("flagged", len(res.Warnings)),
			zap.Int("paths", req.Paths),
		)
	}
	s.logger.Debug("simulation complete",
		zap.String("op", "simulation.Run"),
		zap.String("scenario", scenario.Name),
		zap.Int("paths", req.Paths),
		zap.Int("steps", req.Steps),
		zap.Int("batches", batches),
		zap.Float64("mean", res.Summary.Mean),
		zap.Float64("stdErr", res.Summary.StdErr),
	)
	return res, nil
}

// simulatePath writes path p into res and returns a warning if its wealth
// became non-positive. Distinct paths touch distinct slots of res.
func (s *Simulator) simulatePath(res *Result, p int, g grid, th ambiguity.Scenario, req Request, rng Normal) *NegativeWealthWarning {
	n := req.Steps
	var path *SamplePath
	if req.KeepPaths {
		res.Paths[p] = SamplePath{
			Times:  append([]float64(nil), g.times...),
			Wealth: make([]float64, n+1),
			Rate:   make([]float64, n+1),
		}
		path = &res.Paths[p]
		path.Wealth[0] = req.W0
		path.Rate[0] = req.R0
	}

	var warning *NegativeWealthWarning
	k, rBar := req.Params.Kappa, req.Params.RBar
	w, r := req.W0, req.R0
	for i := 0; i < n; i++ {
		dB1 := g.sqrtDt * rng.NormFloat64()
		dB2 := g.sqrtDt * rng.NormFloat64()
		e := g.exposure[i]
		w *= 1 + (r+g.drift[i])*g.dt + e[0]*dB1 + e[1]*dB2
		r += k*(rBar-r)*g.dt + th.SigmaR*dB1
		if path != nil {
			path.Wealth[i+1] = w
			path.Rate[i+1] = r
		}
		if w <= 0 && warning == nil {
			warning = &NegativeWealthWarning{Path: p, Step: i + 1, Time: g.times[i+1], Wealth: w}
		}
	}
	res.Terminal[p] = w
	res.Flagged[p] = warning != nil
	return warning
}
