package analysis

import (
	"fmt"
	"math"
	"strings"
)

// GeneralRiskType labels every reported risk; finer risk typing is not done.
const GeneralRiskType = "General Risk"

// Risk is a Medium or High clause reported in a contract result.
type Risk struct {
	Clause      string  `json:"clause"`
	Level       Level   `json:"level"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
	Type        string  `json:"type"`
}

// Result is the aggregate analysis of a contract.
type Result struct {
	Risks         []Risk `json:"risks"`
	OverallScore  int    `json:"overall_score"`
	Summary       string `json:"summary"`
	HighRiskCount int    `json:"high_risk_count"`
	ClauseCount   int    `json:"clause_count"`
	// Assessments holds every classified clause in order, reported risks or not.
	Assessments []Assessment `json:"-"`
}

// DegradedCount is the number of clauses whose model stage failed.
func (r Result) DegradedCount() int {
	n := 0
	for _, a := range r.Assessments {
		if a.Degraded {
			n++
		}
	}
	return n
}

// Analyze classifies every non-blank clause and folds the assessments into
// a contract result.
func (c *Classifier) Analyze(clauses []Clause) Result {
	assessments := make([]Assessment, 0, len(clauses))
	for _, cl := range clauses {
		if strings.TrimSpace(cl.Text) == "" {
			continue
		}
		assessments = append(assessments, c.Classify(cl.Text))
	}
	return Aggregate(assessments)
}

// Aggregate folds assessments, in clause order, into a contract result.
func Aggregate(assessments []Assessment) Result {
	res := Result{
		Risks:       make([]Risk, 0),
		ClauseCount: len(assessments),
		Assessments: assessments,
	}
	var total float64
	for _, a := range assessments {
		total += a.Score
		if a.Level == LevelHigh {
			res.HighRiskCount++
		}
		if a.Level == LevelHigh || a.Level == LevelMedium {
			res.Risks = append(res.Risks, Risk{
				Clause:      a.Clause,
				Level:       a.Level,
				Score:       a.Score,
				Explanation: a.Explanation,
				Type:        GeneralRiskType,
			})
		}
	}
	var avg float64
	if len(assessments) > 0 {
		avg = total / float64(len(assessments))
	}
	res.OverallScore = OverallScore(avg, res.HighRiskCount)
	res.Summary = fmt.Sprintf("Found %d high-risk clauses.", res.HighRiskCount)
	return res
}

// OverallScore is min(100, floor(avg*100) + 5*highRisk), never negative.
func OverallScore(avg float64, highRisk int) int {
	score := int(math.Floor(avg*100)) + highRisk*5
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
