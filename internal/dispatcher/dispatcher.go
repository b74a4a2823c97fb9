// Package dispatcher classifies questions with an ordered list of matchers.
// The first matching rule wins; rules are never weighed against each other.
package dispatcher

import (
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/quizsolver/config"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

// Strategy names returned by Route.
const (
	StrategyFile    = "file"
	StrategyAPI     = "api"
	StrategyStat    = "stat"
	StrategyGeneric = "generic"
)

// Matcher is one classification rule.
type Matcher struct {
	Kind  quiz.Kind
	Match func(q quiz.Question) bool
}

// Dispatcher evaluates matchers in their declared order.
type Dispatcher struct {
	matchers []Matcher
}

// New builds the standard precedence: file, api, stat, visualization,
// generic.
func New(kw config.KeywordConfig) *Dispatcher {
	kw = kw.Normalize()
	file := newKeywordSet(kw.File)
	api := newKeywordSet(kw.API)
	stat := newKeywordSet(kw.Stat)
	viz := newKeywordSet(kw.Visualization)

	return &Dispatcher{matchers: []Matcher{
		{Kind: quiz.KindFile, Match: func(q quiz.Question) bool {
			return q.FileURL != "" || (file.matches(q.Text) && len(q.Links) > 0 && q.APIURL == "")
		}},
		{Kind: quiz.KindAPI, Match: func(q quiz.Question) bool {
			return q.APIURL != "" || (api.matches(q.Text) && len(q.Links) > 0)
		}},
		{Kind: quiz.KindStat, Match: func(q quiz.Question) bool {
			return stat.matches(q.Text)
		}},
		{Kind: quiz.KindVisualization, Match: func(q quiz.Question) bool {
			return viz.matches(q.Text)
		}},
		{Kind: quiz.KindGeneric, Match: func(quiz.Question) bool { return true }},
	}}
}

// NewWithMatchers builds a dispatcher over a custom ordered rule list.
func NewWithMatchers(m ...Matcher) *Dispatcher {
	return &Dispatcher{matchers: append([]Matcher(nil), m...)}
}

// Classify returns the kind of the first matching rule, or generic.
func (d *Dispatcher) Classify(q quiz.Question) quiz.Kind {
	if q.Kind != "" {
		return q.Kind
	}
	for _, m := range d.matchers {
		if m.Match(q) {
			return m.Kind
		}
	}
	return quiz.KindGeneric
}

// Route classifies q and returns the tagged copy with its strategy name.
func (d *Dispatcher) Route(q quiz.Question) (quiz.Question, string) {
	tagged := q.Classified(d.Classify(q))
	return tagged, StrategyFor(tagged.Kind)
}

// StrategyFor maps a kind to the strategy that handles it. Visualization
// questions are answered by the LLM.
func StrategyFor(k quiz.Kind) string {
	switch k {
	case quiz.KindFile:
		return StrategyFile
	case quiz.KindAPI:
		return StrategyAPI
	case quiz.KindStat:
		return StrategyStat
	default:
		return StrategyGeneric
	}
}

type keywordSet []*regexp.Regexp

func newKeywordSet(words []string) keywordSet {
	out := make(keywordSet, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return out
}

func (k keywordSet) matches(text string) bool {
	text = strings.TrimSpace(text)
	for _, re := range k {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
