package grading

import (
	"math"

	"gradecli/pkg/contracts/domain"
)

// MatchBand returns the label for a percent value in 0..100 scale units.
// The first band with Low <= p < High+1 wins; with no match the last band
// applies. An empty scale yields "".
func MatchBand(p float64, scale domain.ScaleRule) string {
	if len(scale) == 0 {
		return ""
	}
	for _, b := range scale {
		if b.Low <= p && p < b.High+1 {
			return b.Label
		}
	}
	return scale[len(scale)-1].Label
}

// GradeFromFraction grades a points/max fraction. With roundBefore the
// percent is rounded half away from zero to an integer before matching.
//
// Percentages above 100 are matched as 100 so over-max scores land in the
// top band instead of falling through to the last one.
func GradeFromFraction(frac float64, scale domain.ScaleRule, roundBefore bool) string {
	p := frac * 100.0
	if roundBefore {
		p = math.Round(p)
	}
	if p > 100 {
		p = 100
	}
	return MatchBand(p, scale)
}
