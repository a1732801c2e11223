package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/stitts-dev/candidates-sim/internal/simulator"
)

type scenarioResult struct {
	Name   string                     `json:"name"`
	Target int                        `json:"target_candidates"`
	Stats  *simulator.SimulationStats `json:"stats"`
}

// writeComparison prints one row per scenario.
func writeComparison(w io.Writer, results []scenarioResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	header := []string{"Scenario", "Valid", "Avg Elo (orig)", "SD", "Avg Elo (live)", "SD", "Top-N capture", "Rank corr", "Min Elo"}
	thresholds := outlierThresholds(results)
	for _, t := range thresholds {
		header = append(header, fmt.Sprintf("<%.0f", t))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t")+"\t")

	for _, r := range results {
		s := r.Stats
		if s.NoData {
			fmt.Fprintf(tw, "%s\t%d/%d\tno data\t\n", r.Name, s.ValidSeasons, s.TotalSeasons)
			continue
		}
		row := []string{
			r.Name,
			fmt.Sprintf("%d/%d", s.ValidSeasons, s.TotalSeasons),
			fmt.Sprintf("%.1f", s.MeanAvgEloOriginal),
			fmt.Sprintf("%.1f", s.StdDevAvgEloOriginal()),
			fmt.Sprintf("%.1f", s.MeanAvgEloLive),
			fmt.Sprintf("%.1f", s.StdDevAvgEloLive()),
			fmt.Sprintf("%.1f%%", 100*s.TopRatedCaptureRate),
			fmt.Sprintf("%.3f", s.RankCorrelation),
			fmt.Sprintf("%.0f", s.MinQualifierElo),
		}
		for _, o := range s.Outliers {
			row = append(row, fmt.Sprintf("%.1f%%", 100*float64(o.Seasons)/float64(s.ValidSeasons)))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t")+"\t")
	}
	return tw.Flush()
}

// writeTopPlayers prints the n players most likely to qualify in a scenario.
func writeTopPlayers(w io.Writer, r scenarioResult, n int) error {
	fmt.Fprintf(w, "%s: top %d qualification probabilities\n", r.Name, n)
	if r.Stats.NoData {
		_, err := fmt.Fprintln(w, "  no valid seasons")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  Rank\tPlayer\tElo\tProbability")
	for _, p := range r.Stats.TopPlayers(n) {
		fmt.Fprintf(tw, "  %d\t%s\t%.0f\t%.1f%%\n", p.InitialRank, p.Name, p.Elo, 100*p.Probability)
	}
	return tw.Flush()
}

// outlierThresholds returns the thresholds of the first scenario with data.
func outlierThresholds(results []scenarioResult) []float64 {
	for _, r := range results {
		if !r.Stats.NoData {
			out := make([]float64, len(r.Stats.Outliers))
			for i, o := range r.Stats.Outliers {
				out[i] = o.Threshold
			}
			return out
		}
	}
	return nil
}
