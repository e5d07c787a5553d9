// Package aggregate computes per-sheet and cross-sheet statistics over scored
// tables.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"gradecli/pkg/contracts/domain"
)

// Summarize computes statistics for one set of scored rows. Empty input
// yields a zero-valued result with Count 0 and an all-zero histogram.
func Summarize(rows []domain.ScoredRow) domain.SheetStats {
	stats := domain.SheetStats{Count: len(rows), Histogram: Histogram(rows)}
	if len(rows) == 0 {
		return stats
	}

	points := make([]float64, len(rows))
	var sumPoints, sumPercent float64
	stats.MinPoints, stats.MaxPoints = rows[0].Points, rows[0].Points
	for i, r := range rows {
		points[i] = r.Points
		sumPoints += r.Points
		sumPercent += r.Percent
		if r.Points < stats.MinPoints {
			stats.MinPoints = r.Points
		}
		if r.Points > stats.MaxPoints {
			stats.MaxPoints = r.Points
		}
	}
	stats.MeanPoints = sumPoints / float64(len(rows))
	stats.MeanPercent = sumPercent / float64(len(rows))
	stats.MedianPoints = median(points)
	return stats
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

// Histogram counts grades by the first character of their label, over the
// buckets 6..1. Labels starting with anything else are not counted.
func Histogram(rows []domain.ScoredRow) map[string]int {
	h := make(map[string]int, len(domain.GradeBuckets))
	for _, b := range domain.GradeBuckets {
		h[b] = 0
	}
	for _, r := range rows {
		if r.Grade == "" {
			continue
		}
		key := r.Grade[:1]
		if _, ok := h[key]; ok {
			h[key]++
		}
	}
	return h
}

// WeightedMean averages sheet means with weights. Sheets without a defined
// mean or with weight <= 0 are skipped; the result is undefined when no
// weight remains.
func WeightedMean(order []string, means map[string]float64, weights domain.WeightProfile) (float64, bool) {
	var num, den float64
	for _, name := range order {
		mean, ok := means[name]
		if !ok {
			continue
		}
		w := weights.Weight(name)
		if w <= 0 {
			continue
		}
		num += w * mean
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// Aggregate summarizes each table and the concatenation of all of them.
// The weighted mean is computed only when useWeighted is set.
func Aggregate(tables []*domain.ScoredTable, weights domain.WeightProfile, useWeighted bool) domain.AggregateResult {
	res := domain.AggregateResult{PerSheet: make(map[string]domain.SheetStats, len(tables))}

	var all []domain.ScoredRow
	means := make(map[string]float64, len(tables))
	for _, t := range tables {
		stats := Summarize(t.Rows)
		res.Sheets = append(res.Sheets, t.Sheet)
		res.PerSheet[t.Sheet] = stats
		if stats.Count > 0 {
			means[t.Sheet] = stats.MeanPoints
		}
		all = append(all, t.Rows...)
	}
	res.Global = Summarize(all)

	if useWeighted {
		if wm, ok := WeightedMean(res.Sheets, means, weights); ok {
			res.WeightedMean = &wm
		}
	}
	return res
}

// DominantGrade returns the most frequent bucket. Ties go to the better
// grade; an all-zero histogram yields "".
func DominantGrade(hist map[string]int) string {
	best, bestCount := "", 0
	for _, b := range domain.GradeBuckets {
		if hist[b] > bestCount {
			best, bestCount = b, hist[b]
		}
	}
	return best
}

// ShortSummary renders the one-line description stored with archived
// results, for example "Uczniów: 3 | Średnia: 49,7 pkt (82,8%) | Dominująca
// ocena: 6". Empty tables have no summary.
func ShortSummary(rows []domain.ScoredRow) string {
	if len(rows) == 0 {
		return ""
	}
	s := Summarize(rows)
	return fmt.Sprintf("Uczniów: %d | Średnia: %s pkt (%s%%) | Dominująca ocena: %s",
		s.Count,
		DecimalComma(s.MeanPoints, 1),
		DecimalComma(s.MeanPercent*100, 1),
		DominantGrade(s.Histogram))
}

// DecimalComma formats a number with the given precision and a comma as the
// decimal separator.
func DecimalComma(v float64, prec int) string {
	return strings.Replace(fmt.Sprintf("%.*f", prec, v), ".", ",", 1)
}
