package output

import (
	"math"

	"github.com/iwvelando/robust-portfolio/internal/analysis"
	"github.com/iwvelando/robust-portfolio/internal/config"
)

// Document is the serialisable form of an analysis report shared by the YAML
// output and the HTTP API.
type Document struct {
	Market          MarketDoc       `json:"market" yaml:"market"`
	Bounds          config.Bounds   `json:"bounds" yaml:"bounds"`
	MarketCondition ConditionDoc    `json:"marketCondition" yaml:"marketCondition"`
	Strategies      []StrategyDoc   `json:"strategies" yaml:"strategies"`
	Evaluations     []EvaluationDoc `json:"evaluations" yaml:"evaluations"`
	Comparisons     []ComparisonDoc `json:"comparisons,omitempty" yaml:"comparisons,omitempty"`
	Warnings        []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Duration        string          `json:"duration" yaml:"duration"`
}

// MarketDoc echoes the inputs of the analysis. The model keys match the
// configuration file so a report can be pasted back into one.
type MarketDoc struct {
	config.Model `yaml:",inline"`
	Gamma        float64 `json:"gamma" yaml:"gamma"`
	Horizon      float64 `json:"horizon" yaml:"horizon"`
	BondMaturity float64 `json:"bondMaturity" yaml:"bondMaturity"`
}

// ConditionDoc reports the market-condition check. ViolationTime is omitted
// when the condition holds.
type ConditionDoc struct {
	Satisfied     bool     `json:"satisfied" yaml:"satisfied"`
	Lower         *float64 `json:"lower,omitempty" yaml:"lower,omitempty"`
	Upper         *float64 `json:"upper,omitempty" yaml:"upper,omitempty"`
	MinRatio      float64  `json:"minRatio" yaml:"minRatio"`
	MaxRatio      float64  `json:"maxRatio" yaml:"maxRatio"`
	ViolationTime *float64 `json:"violationTime,omitempty" yaml:"violationTime,omitempty"`
}

// StrategyDoc describes one solved strategy.
type StrategyDoc struct {
	Policy              string        `json:"policy" yaml:"policy"`
	Scenario            string        `json:"scenario" yaml:"scenario"`
	A0                  float64       `json:"a0" yaml:"a0"`
	A1                  float64       `json:"a1" yaml:"a1"`
	CertaintyEquivalent float64       `json:"certaintyEquivalent" yaml:"certaintyEquivalent"`
	VerifyError         float64       `json:"verifyError" yaml:"verifyError"`
	Schedule            []ScheduleDoc `json:"schedule" yaml:"schedule"`
}

// ScheduleDoc is one row of a weight schedule.
type ScheduleDoc struct {
	Time        float64 `json:"t" yaml:"t"`
	MyopicBond  float64 `json:"myopicBond" yaml:"myopicBond"`
	MyopicStock float64 `json:"myopicStock" yaml:"myopicStock"`
	HedgeBond   float64 `json:"hedgeBond" yaml:"hedgeBond"`
	Bond        float64 `json:"bond" yaml:"bond"`
	Stock       float64 `json:"stock" yaml:"stock"`
}

// EvaluationDoc is one policy evaluated under one scenario.
type EvaluationDoc struct {
	Scenario            string   `json:"scenario" yaml:"scenario"`
	Policy              string   `json:"policy" yaml:"policy"`
	ExpectedWealth      float64  `json:"expectedWealth" yaml:"expectedWealth"`
	Mean                *float64 `json:"mean,omitempty" yaml:"mean,omitempty"`
	StdErr              *float64 `json:"stdErr,omitempty" yaml:"stdErr,omitempty"`
	P05                 *float64 `json:"p05,omitempty" yaml:"p05,omitempty"`
	Median              *float64 `json:"median,omitempty" yaml:"median,omitempty"`
	P95                 *float64 `json:"p95,omitempty" yaml:"p95,omitempty"`
	CertaintyEquivalent *float64 `json:"certaintyEquivalent,omitempty" yaml:"certaintyEquivalent,omitempty"`
	Flagged             int      `json:"flagged" yaml:"flagged"`
}

// ComparisonDoc is the simulated certainty-equivalent gap under one scenario.
type ComparisonDoc struct {
	Scenario     string   `json:"scenario" yaml:"scenario"`
	RobustCE     *float64 `json:"robustCE,omitempty" yaml:"robustCE,omitempty"`
	ReferenceCE  *float64 `json:"referenceCE,omitempty" yaml:"referenceCE,omitempty"`
	CertaintyGap *float64 `json:"certaintyGap,omitempty" yaml:"certaintyGap,omitempty"`
}

// finite returns a pointer to v, or nil when v is NaN or infinite so JSON
// encoding never fails.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NewDocument converts a report into its serialisable form.
func NewDocument(r *analysis.Report) Document {
	p := r.Parameters
	cond := r.MarketCondition
	doc := Document{
		Market: MarketDoc{
			Model:        config.FromModelParameters(p),
			Gamma:        r.Gamma,
			Horizon:      r.Horizon.T,
			BondMaturity: r.Horizon.Maturity,
		},
		Bounds: config.FromBounds(r.Bounds),
		MarketCondition: ConditionDoc{
			Satisfied:     cond.Satisfied,
			Lower:         finite(cond.Lower),
			Upper:         finite(cond.Upper),
			MinRatio:      cond.MinRatio,
			MaxRatio:      cond.MaxRatio,
			ViolationTime: finite(cond.ViolationTime),
		},
		Warnings: r.Warnings,
		Duration: r.Duration.String(),
	}

	for _, sr := range []analysis.StrategyReport{r.Robust, r.Reference} {
		sd := StrategyDoc{
			Policy:              sr.Policy,
			Scenario:            sr.Scenario,
			A0:                  sr.A0,
			A1:                  sr.A1,
			CertaintyEquivalent: sr.CertaintyEquivalent,
			VerifyError:         sr.VerifyError,
		}
		for _, row := range sr.Schedule {
			sd.Schedule = append(sd.Schedule, ScheduleDoc{
				Time:        row.Time,
				MyopicBond:  row.Myopic.Bond,
				MyopicStock: row.Myopic.Stock,
				HedgeBond:   row.Hedge.Bond,
				Bond:        row.Total.Bond,
				Stock:       row.Total.Stock,
			})
		}
		doc.Strategies = append(doc.Strategies, sd)
	}

	for _, e := range r.Evaluations {
		ed := EvaluationDoc{Scenario: e.Scenario, Policy: e.Policy, ExpectedWealth: e.ExpectedWealth}
		if s := e.Simulated; s != nil {
			ed.Mean = finite(s.Mean)
			ed.StdErr = finite(s.StdErr)
			ed.P05 = finite(s.P05)
			ed.Median = finite(s.Median)
			ed.P95 = finite(s.P95)
			ed.CertaintyEquivalent = finite(s.CertaintyEquivalent)
			ed.Flagged = s.Flagged
		}
		doc.Evaluations = append(doc.Evaluations, ed)
	}

	for _, c := range r.Comparisons {
		doc.Comparisons = append(doc.Comparisons, ComparisonDoc{
			Scenario:     c.Scenario,
			RobustCE:     finite(c.RobustCE),
			ReferenceCE:  finite(c.ReferenceCE),
			CertaintyGap: finite(c.CertaintyGap),
		})
	}
	return doc
}
