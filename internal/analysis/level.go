// Package analysis implements the risk-scoring core of LexiGuard: text
// normalization, clause segmentation, hybrid clause classification and
// contract-level aggregation.
//
// Everything in this package is synchronous and free of I/O. The keyword
// table and the trained model are read-only after construction and may be
// shared by concurrent requests.
package analysis

import (
	"fmt"
	"strings"
)

// Level is the categorical risk of a clause.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// priorityOrder is the keyword-stage scan order. It is explicit so that the
// High > Medium > Low tie-break never depends on map iteration.
var priorityOrder = []Level{LevelHigh, LevelMedium, LevelLow}

// Valid reports whether l is one of the three known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// keywordScore is the fixed score assigned by a keyword hit.
func (l Level) keywordScore() float64 {
	switch l {
	case LevelHigh:
		return 0.9
	case LevelMedium:
		return 0.6
	default:
		return 0.3
	}
}

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return LevelLow, nil
	case "medium":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}
