package analysis

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

// Stage names the classifier path that produced an assessment.
type Stage string

const (
	StageKeyword Stage = "keyword"
	StageModel   Stage = "model"
	StageDefault Stage = "default"
)

const defaultExplanation = "Standard clause."

// Assessment is the result of classifying one clause.
type Assessment struct {
	Clause      string  `json:"clause"`
	Level       Level   `json:"level"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
	Stage       Stage   `json:"stage"`
	// Degraded is set when the model stage was attempted and failed.
	Degraded bool `json:"degraded,omitempty"`
}

// modelOutcome is the typed result of consulting the model: either a
// prediction or a degraded marker carrying the failure.
type modelOutcome struct {
	level      Level
	confidence float64
	err        error
}

func (o modelOutcome) degraded() bool { return o.err != nil }

// Classifier is the two-stage hybrid clause classifier. Keyword hits are
// final; the model is consulted only when no keyword matched.
type Classifier struct {
	keywords *KeywordTable
	model    Model
	logger   *zap.Logger
}

// NewClassifier builds a classifier. A nil table selects the built-in
// keywords; a nil model disables the model stage.
func NewClassifier(keywords *KeywordTable, model Model, logger *zap.Logger) *Classifier {
	if keywords == nil {
		keywords = DefaultKeywordTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{keywords: keywords, model: model, logger: logger}
}

// Keywords returns the table the classifier scans.
func (c *Classifier) Keywords() *KeywordTable { return c.keywords }

// Classify assesses one clause. It never fails: a model error or panic is
// logged at WARN and the clause falls back to the Low default.
func (c *Classifier) Classify(clause string) Assessment {
	if level, kw, ok := c.keywords.Match(strings.ToLower(clause)); ok {
		return Assessment{
			Clause:      clause,
			Level:       level,
			Score:       level.keywordScore(),
			Explanation: fmt.Sprintf("Contains %s-risk keyword: '%s'", strings.ToLower(string(level)), kw),
			Stage:       StageKeyword,
		}
	}

	fallback := Assessment{
		Clause:      clause,
		Level:       LevelLow,
		Score:       0,
		Explanation: defaultExplanation,
		Stage:       StageDefault,
	}
	if c.model == nil {
		return fallback
	}

	out := c.consultModel(clause)
	if out.degraded() {
		c.logger.Warn("risk model failed, using default classification",
			zap.Error(out.err),
			zap.Int("clause_length", len(clause)),
		)
		fallback.Degraded = true
		return fallback
	}
	return Assessment{
		Clause:      clause,
		Level:       out.level,
		Score:       out.confidence,
		Explanation: fmt.Sprintf("Model detected pattern similar to %s risk.", out.level),
		Stage:       StageModel,
	}
}

func (c *Classifier) consultModel(clause string) (out modelOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = modelOutcome{err: fmt.Errorf("model panic: %v", r)}
		}
	}()
	level, confidence, err := c.model.Predict(clause)
	if err != nil {
		return modelOutcome{err: err}
	}
	if !level.Valid() {
		return modelOutcome{err: fmt.Errorf("model returned unknown level %q", level)}
	}
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return modelOutcome{err: fmt.Errorf("model confidence %v out of range", confidence)}
	}
	return modelOutcome{level: level, confidence: confidence}
}
