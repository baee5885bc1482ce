package planner

import (
	"strings"
	"time"

	"github.com/ShayCichocki/orca/pkg/models"
)

// ExecutionOrder classifies a plan for the scheduler. crossEdges counts
// dependency edges other than those on the analysis unit.
func ExecutionOrder(units, crossEdges int) models.ExecutionOrder {
	switch {
	case crossEdges == 0 && units <= 3:
		return models.OrderParallel
	case units > 10:
		return models.OrderStaged
	default:
		return models.OrderSequential
	}
}

// Risk scores a plan from its affected files and request constraints.
// hasTests reports whether any test file was found for the scope.
func Risk(files []string, c models.Constraints, hasTests bool) models.RiskLevel {
	score := 0
	if len(files) > 10 {
		score += 2
	}
	if anySegmentContains(files, "core") {
		score += 3
	}
	if anySegmentContains(files, "config") {
		score += 2
	}
	if c.AllowBreakingChanges {
		score += 3
	}
	if !c.WantTests() || !hasTests {
		score += 2
	}

	switch {
	case score <= 3:
		return models.RiskLow
	case score <= 7:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

func anySegmentContains(files []string, word string) bool {
	for _, f := range files {
		for _, seg := range strings.Split(strings.ToLower(f), "/") {
			if strings.Contains(seg, word) {
				return true
			}
		}
	}
	return false
}

// baseDuration is added once per plan.
const baseDuration = 5 * time.Second

var unitDurations = map[models.Capability]time.Duration{
	models.CapabilityAnalysis:   2 * time.Second,
	models.CapabilityRewrite:    5 * time.Second,
	models.CapabilityTestSync:   4 * time.Second,
	models.CapabilityDocSync:    3 * time.Second,
	models.CapabilityStyleCheck: 1 * time.Second,
}

// EstimateDuration sums per-capability estimates over units.
func EstimateDuration(units []*models.WorkUnit) time.Duration {
	d := baseDuration
	for _, u := range units {
		if est, ok := unitDurations[u.Capability]; ok {
			d += est
		} else {
			d += 3 * time.Second
		}
	}
	return d
}

// AnalyzeComplexity scores a request before any files are read.
func AnalyzeComplexity(req models.EditRequest) models.Complexity {
	c := req.Constraints
	score := len(req.Scope) * 2
	if c.Count() > 0 {
		score++
	}
	if c.WantTests() {
		score += 2
	}
	if c.WantDocs() {
		score++
	}
	if c.AllowBreakingChanges {
		score += 3
	}

	switch {
	case score <= 5:
		return models.ComplexitySimple
	case score <= 10:
		return models.ComplexityModerate
	default:
		return models.ComplexityComplex
	}
}
