// Package output provides utilities for formatting and displaying analysis results.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/iwvelando/robust-portfolio/internal/analysis"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// PrettyFormat writes a human-readable rather than machine-readable report.
func PrettyFormat(w io.Writer, r *analysis.Report) {
	p := message.NewPrinter(language.English)
	m := r.Parameters

	_, _ = fmt.Fprintf(w, "--- Market ---\n")
	_, _ = p.Fprintf(w, "kappa %.4f | rBar %.4f | sigmaR %.4f | lambdaS %.4f | sigmaS %.4f | rho %.3f | lambdaB0 %.4f\n",
		m.Kappa, m.RBar, m.SigmaR, m.LambdaS, m.SigmaS, m.Rho, m.LambdaB0)
	_, _ = p.Fprintf(w, "gamma %.2f | horizon %.2f | bond maturity %.2f\n\n", r.Gamma, r.Horizon.T, r.Horizon.Maturity)

	_, _ = fmt.Fprintf(w, "--- Market condition ---\n")
	c := r.MarketCondition
	if c.Satisfied {
		_, _ = p.Fprintf(w, "satisfied: bond Sharpe ratio in [%.4f, %.4f] within [%.4f, %.4f]\n\n",
			c.MinRatio, c.MaxRatio, c.Lower, c.Upper)
	} else if c.Lower > c.Upper {
		_, _ = p.Fprintf(w, "VIOLATED: required band [%.4f, %.4f] is empty, the condition needs rho lower bound <= 0\n\n",
			c.Lower, c.Upper)
	} else {
		_, _ = p.Fprintf(w, "VIOLATED at t=%.4f: bond Sharpe ratio in [%.4f, %.4f], required [%.4f, %.4f]\n\n",
			c.ViolationTime, c.MinRatio, c.MaxRatio, c.Lower, c.Upper)
	}

	for _, sr := range []analysis.StrategyReport{r.Robust, r.Reference} {
		_, _ = fmt.Fprintf(w, "--- Strategy %s (solved under %s) ---\n", sr.Policy, sr.Scenario)
		_, _ = p.Fprintf(w, "a0(0) %.6f | a1(0) %.6f | certainty equivalent %.4f\n", sr.A0, sr.A1, sr.CertaintyEquivalent)
		_, _ = fmt.Fprintf(w, "Time     | Myopic bond | Myopic stock | Hedge bond | Bond     | Stock\n")
		_, _ = fmt.Fprintf(w, "________ | ___________ | ____________ | __________ | ________ | ________\n")
		for _, row := range sr.Schedule {
			_, _ = p.Fprintf(w, "%8.4f | %11.4f | %12.4f | %10.4f | %8.4f | %8.4f\n",
				row.Time, row.Myopic.Bond, row.Myopic.Stock, row.Hedge.Bond, row.Total.Bond, row.Total.Stock)
		}
		_, _ = fmt.Fprintf(w, "\n")
	}

	_, _ = fmt.Fprintf(w, "--- Evaluations ---\n")
	_, _ = fmt.Fprintf(w, "Scenario | Policy | E[W_T] | Mean | Std. error | Certainty equivalent | Flagged\n")
	for _, e := range r.Evaluations {
		if s := e.Simulated; s != nil {
			_, _ = p.Fprintf(w, "%s | %s | %.4f | %.4f | %.4f | %.4f | %d\n",
				e.Scenario, e.Policy, e.ExpectedWealth, s.Mean, s.StdErr, s.CertaintyEquivalent, s.Flagged)
			continue
		}
		_, _ = p.Fprintf(w, "%s | %s | %.4f | - | - | - | -\n", e.Scenario, e.Policy, e.ExpectedWealth)
	}

	if len(r.Comparisons) > 0 {
		_, _ = fmt.Fprintf(w, "\n--- Certainty-equivalent gap (robust - reference) ---\n")
		for _, gap := range r.Comparisons {
			_, _ = p.Fprintf(w, "%s | %.4f - %.4f = %+.4f\n", gap.Scenario, gap.RobustCE, gap.ReferenceCE, gap.CertaintyGap)
		}
	}

	if len(r.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "\n--- Warnings ---\n")
		for _, warning := range r.Warnings {
			_, _ = fmt.Fprintf(w, "%s\n", warning)
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// CsvFormat writes the weight schedules of both strategies in
// comma-separated value format.
func CsvFormat(w io.Writer, r *analysis.Report) error {
	cw := csv.NewWriter(w)
	header := []string{"policy", "scenario", "t", "myopic bond", "myopic stock", "hedge bond", "bond", "stock"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, sr := range []analysis.StrategyReport{r.Robust, r.Reference} {
		for _, row := range sr.Schedule {
			record := []string{
				sr.Policy,
				sr.Scenario,
				formatFloat(row.Time),
				formatFloat(row.Myopic.Bond),
				formatFloat(row.Myopic.Stock),
				formatFloat(row.Hedge.Bond),
				formatFloat(row.Total.Bond),
				formatFloat(row.Total.Stock),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// CsvString returns CsvFormat output as a string.
func CsvString(r *analysis.Report) (string, error) {
	var buf bytes.Buffer
	if err := CsvFormat(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// YAMLFormat writes the full report as YAML.
func YAMLFormat(w io.Writer, r *analysis.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(r)); err != nil {
		return err
	}
	return enc.Close()
}
