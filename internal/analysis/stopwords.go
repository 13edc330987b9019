package analysis

import (
	"strings"
	"unicode"
)

// englishStopWords is the vectorizer's stop list.
var englishStopWords = func() map[string]struct{} {
	words := strings.Fields(`
a about above after again against all also am an and any are as at
be because been before being below between both but by
can could did do does doing down during each either etc ever every
few for from further had has have having he her here hers herself him himself his how
i if in into is it its itself just may me might more most must my myself
neither nor not of off on once only or other otherwise our ours ourselves out over own
per same she should so some such than that the their theirs them themselves then there
these they this those through thus to too under until up upon us very via was we were
what when where whether which while who whom whose why will with within without would
yet you your yours yourself yourselves`)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

// tokenize lower-cases text and returns its words of two or more letters,
// digits or underscores, minus stop words.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 2 {
			continue
		}
		if _, stop := englishStopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
