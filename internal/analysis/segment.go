package analysis

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// DefaultMinClauseLength is the trimmed rune count at or below which a
// sentence is treated as noise rather than a clause.
const DefaultMinClauseLength = 10

// Clause is one segmented unit of contract text and its position in the
// clause sequence.
type Clause struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// SentenceDetector splits text into non-overlapping, order-preserving spans.
type SentenceDetector interface {
	Split(text string) []string
}

// Segmenter turns normalized text into clauses.
type Segmenter struct {
	detector  SentenceDetector
	minLength int
}

// NewSegmenter returns a Segmenter over detector. A nil detector selects the
// rule-based detector; a non-positive minLength selects DefaultMinClauseLength.
func NewSegmenter(detector SentenceDetector, minLength int) *Segmenter {
	if detector == nil {
		detector = NewRuleDetector()
	}
	if minLength <= 0 {
		minLength = DefaultMinClauseLength
	}
	return &Segmenter{detector: detector, minLength: minLength}
}

// Segment returns the clauses of text in source order. Spans whose trimmed
// length is at or below the threshold are dropped. Empty input yields an
// empty, non-nil slice.
func (s *Segmenter) Segment(text string) []Clause {
	clauses := make([]Clause, 0)
	if strings.TrimSpace(text) == "" {
		return clauses
	}
	for _, span := range s.detector.Split(text) {
		trimmed := strings.TrimSpace(span)
		if utf8.RuneCountInString(trimmed) <= s.minLength {
			continue
		}
		clauses = append(clauses, Clause{Index: len(clauses), Text: trimmed})
	}
	return clauses
}

// NewSentenceDetector returns the detector registered under name: "punkt"
// (trained English punkt model) or "rules".
func NewSentenceDetector(name string) (SentenceDetector, error) {
	switch name {
	case "", "punkt":
		return NewPunktDetector()
	case "rules":
		return NewRuleDetector(), nil
	}
	return nil, fmt.Errorf("unknown sentence detector %q", name)
}

// PunktDetector uses the unsupervised punkt sentence model shipped with
// neurosnap/sentences.
type PunktDetector struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewPunktDetector() (*PunktDetector, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return &PunktDetector{tokenizer: tokenizer}, nil
}

func (d *PunktDetector) Split(text string) []string {
	sents := d.tokenizer.Tokenize(text)
	out := make([]string, 0, len(sents))
	for _, s := range sents {
		out = append(out, s.Text)
	}
	return out
}

// legal and business abbreviations that end in a period without ending a
// sentence
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "jr": {}, "sr": {}, "st": {},
	"inc": {}, "ltd": {}, "co": {}, "corp": {}, "llc": {}, "llp": {}, "plc": {},
	"no": {}, "nos": {}, "sec": {}, "art": {}, "para": {}, "cl": {}, "ch": {},
	"e.g": {}, "i.e": {}, "cf": {}, "vs": {}, "v": {}, "approx": {},
	"u.s": {}, "u.k": {}, "jan": {}, "feb": {}, "mar": {}, "apr": {}, "jun": {},
	"jul": {}, "aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// RuleDetector is a dependency-free detector: a sentence ends at '.', '!' or
// '?' (plus trailing quotes and brackets) followed by whitespace, unless the
// period closes a known abbreviation or an initial, or the next word starts
// in lower case.
type RuleDetector struct{}

func NewRuleDetector() *RuleDetector { return &RuleDetector{} }

func (d *RuleDetector) Split(text string) []string {
	var out []string
	start := 0
	n := len(text)
	for i := 0; i < n; {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isTerminator(r) {
			i += size
			continue
		}
		end := i + size
		for end < n {
			next, nsize := utf8.DecodeRuneInString(text[end:])
			if !isTerminator(next) && !isCloser(next) {
				break
			}
			end += nsize
		}
		if end < n {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				i = end
				continue
			}
		}
		if r == '.' && isAbbreviation(text[start:i]) {
			i = end
			continue
		}
		if startsLower(text[end:]) {
			i = end
			continue
		}
		out = append(out, text[start:end])
		start = end
		i = end
	}
	if strings.TrimSpace(text[start:]) != "" {
		out = append(out, text[start:])
	}
	return out
}

func isTerminator(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// isAbbreviation reports whether the word immediately before a period is an
// abbreviation or a single-letter initial.
func isAbbreviation(prefix string) bool {
	word := prefix
	if idx := strings.LastIndexFunc(prefix, unicode.IsSpace); idx >= 0 {
		word = prefix[idx+1:]
	}
	word = strings.TrimLeft(word, "(\"'[")
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsLetter(r)
	}
	_, ok := abbreviations[strings.ToLower(word)]
	return ok
}

func startsLower(rest string) bool {
	for _, r := range rest {
		if unicode.IsSpace(r) {
			continue
		}
		return unicode.IsLower(r)
	}
	return false
}
