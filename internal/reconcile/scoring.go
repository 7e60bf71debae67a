package reconcile

import "math"

const (
	maximumConsistencyScoreConstant = 10.0
	minimumConsistencyScoreConstant = 0.0
	scorePrecisionConstant          = 10.0
	imperfectScoreCeilingConstant   = maximumConsistencyScoreConstant - 1/scorePrecisionConstant
)

// ComputeConsistencyScore maps the issue ratio onto the 0-10 scale, rounded to
// one decimal. A run with no expected artifacts is vacuously consistent, and a
// run with at least one issue never reaches the maximum.
func ComputeConsistencyScore(issueCount int, expectedArtifactCount int) float64 {
	if expectedArtifactCount <= 0 {
		return maximumConsistencyScoreConstant
	}

	rawScore := maximumConsistencyScoreConstant - float64(issueCount)/float64(expectedArtifactCount)*maximumConsistencyScoreConstant
	clampedScore := math.Max(minimumConsistencyScoreConstant, math.Min(maximumConsistencyScoreConstant, rawScore))
	roundedScore := math.Round(clampedScore*scorePrecisionConstant) / scorePrecisionConstant
	if issueCount > 0 && roundedScore > imperfectScoreCeilingConstant {
		return imperfectScoreCeilingConstant
	}
	return roundedScore
}
