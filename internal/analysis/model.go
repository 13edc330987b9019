package analysis

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// ErrModelUnavailable is returned by a model that was never trained.
var ErrModelUnavailable = errors.New("risk model unavailable")

// Model predicts a risk level for a clause. Confidence is the probability of
// the predicted level, in [0, 1].
type Model interface {
	Predict(text string) (Level, float64, error)
}

// TrainingExample is one labeled clause.
type TrainingExample struct {
	Text  string `json:"text"`
	Level Level  `json:"level"`
}

//go:embed seed_corpus.json
var seedCorpusJSON []byte

// SeedCorpus returns the built-in labeled clauses the default model is
// trained on.
func SeedCorpus() []TrainingExample {
	var examples []TrainingExample
	if err := json.Unmarshal(seedCorpusJSON, &examples); err != nil {
		panic(fmt.Sprintf("analysis: embedded seed corpus: %v", err))
	}
	return examples
}

// TrainOptions tunes gradient descent.
type TrainOptions struct {
	Iterations   int
	LearningRate float64
	L2           float64
}

// DefaultTrainOptions mirror an L2-regularized multinomial logistic
// regression with C=1.
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Iterations: 500, LearningRate: 1.0, L2: 0.1}
}

// LogisticModel is a TF-IDF vectorizer feeding a multinomial logistic
// regression. It is read-only after Train and safe for concurrent use.
type LogisticModel struct {
	vocab   map[string]int
	idf     []float64
	classes []Level
	weights [][]float64
	bias    []float64
}

// NewSeedModel trains a model on SeedCorpus with default options.
func NewSeedModel() (*LogisticModel, error) {
	return Train(SeedCorpus(), DefaultTrainOptions())
}

// Train fits a model on examples. At least two distinct levels are required.
func Train(examples []TrainingExample, opts TrainOptions) (*LogisticModel, error) {
	if len(examples) == 0 {
		return nil, errors.New("train: no examples")
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultTrainOptions().Iterations
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions().LearningRate
	}

	present := make(map[Level]bool)
	for _, ex := range examples {
		if !ex.Level.Valid() {
			return nil, fmt.Errorf("train: invalid level %q", ex.Level)
		}
		present[ex.Level] = true
	}
	m := &LogisticModel{vocab: make(map[string]int)}
	classIndex := make(map[Level]int)
	for _, level := range priorityOrder {
		if present[level] {
			classIndex[level] = len(m.classes)
			m.classes = append(m.classes, level)
		}
	}
	if len(m.classes) < 2 {
		return nil, errors.New("train: need at least two distinct levels")
	}

	// vocabulary and document frequencies
	docs := make([][]string, len(examples))
	var df []int
	for i, ex := range examples {
		docs[i] = tokenize(ex.Text)
		seen := make(map[int]bool)
		for _, tok := range docs[i] {
			idx, ok := m.vocab[tok]
			if !ok {
				idx = len(m.vocab)
				m.vocab[tok] = idx
				df = append(df, 0)
			}
			if !seen[idx] {
				seen[idx] = true
				df[idx]++
			}
		}
	}
	n := float64(len(examples))
	m.idf = make([]float64, len(df))
	for j, d := range df {
		m.idf[j] = math.Log((1+n)/(1+float64(d))) + 1
	}

	xs := make([]map[int]float64, len(examples))
	ys := make([]int, len(examples))
	for i, ex := range examples {
		xs[i] = m.vectorizeTokens(docs[i])
		ys[i] = classIndex[ex.Level]
	}

	k, d := len(m.classes), len(m.vocab)
	m.weights = make([][]float64, k)
	m.bias = make([]float64, k)
	for c := range m.weights {
		m.weights[c] = make([]float64, d)
	}
	gradW := make([][]float64, k)
	for c := range gradW {
		gradW[c] = make([]float64, d)
	}
	gradB := make([]float64, k)

	for iter := 0; iter < opts.Iterations; iter++ {
		for c := range gradW {
			clear(gradW[c])
		}
		clear(gradB)
		for i, x := range xs {
			probs := m.probabilities(x)
			for c := range probs {
				diff := probs[c]
				if c == ys[i] {
					diff -= 1
				}
				gradB[c] += diff
				for j, v := range x {
					gradW[c][j] += diff * v
				}
			}
		}
		for c := range m.weights {
			for j := range m.weights[c] {
				m.weights[c][j] -= opts.LearningRate * (gradW[c][j]/n + opts.L2*m.weights[c][j])
			}
			m.bias[c] -= opts.LearningRate * gradB[c] / n
		}
	}
	return m, nil
}

// Predict returns the most probable level for text and its probability.
func (m *LogisticModel) Predict(text string) (Level, float64, error) {
	if m == nil || len(m.classes) == 0 {
		return "", 0, ErrModelUnavailable
	}
	if !utf8.ValidString(text) {
		return "", 0, errors.New("predict: text is not valid UTF-8")
	}
	probs := m.probabilities(m.vectorizeTokens(tokenize(text)))
	best := 0
	for c := range probs {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return m.classes[best], probs[best], nil
}

// Classes returns the levels the model can predict.
func (m *LogisticModel) Classes() []Level {
	return append([]Level(nil), m.classes...)
}

// VocabularySize is the number of distinct terms seen in training.
func (m *LogisticModel) VocabularySize() int { return len(m.vocab) }

// vectorizeTokens builds an L2-normalized sparse TF-IDF vector. Terms outside
// the vocabulary are ignored.
func (m *LogisticModel) vectorizeTokens(tokens []string) map[int]float64 {
	vec := make(map[int]float64)
	for _, tok := range tokens {
		if idx, ok := m.vocab[tok]; ok {
			vec[idx]++
		}
	}
	var norm float64
	for j, tf := range vec {
		vec[j] = tf * m.idf[j]
		norm += vec[j] * vec[j]
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for j := range vec {
			vec[j] /= norm
		}
	}
	return vec
}

func (m *LogisticModel) probabilities(x map[int]float64) []float64 {
	logits := make([]float64, len(m.classes))
	maxLogit := math.Inf(-1)
	for c := range logits {
		z := m.bias[c]
		for j, v := range x {
			z += m.weights[c][j] * v
		}
		logits[c] = z
		if z > maxLogit {
			maxLogit = z
		}
	}
	var sum float64
	for c, z := range logits {
		logits[c] = math.Exp(z - maxLogit)
		sum += logits[c]
	}
	for c := range logits {
		logits[c] /= sum
	}
	return logits
}
