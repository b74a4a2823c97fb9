// Package stat answers aggregate questions from data already on the page:
// inline tables, preformatted blocks or the numbers written in the question.
package stat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/internal/tabular"
)

const Name = "stat"

type Strategy struct {
	maxContext int
	logger     *zap.Logger
}

func New(maxContext int, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{maxContext: maxContext, logger: logger.Named("stat")}
}

func (s *Strategy) Name() string { return Name }

func (s *Strategy) Solve(_ context.Context, q quiz.Question) quiz.Result {
	question := quiz.StripMarker(q.Text)
	if _, ok := tabular.DetectOp(question); !ok {
		return quiz.Unresolved(Name, nil, s.context(q))
	}

	if data := strings.TrimSpace(q.InlineData); data != "" {
		if table, ok := inlineTable(data); ok {
			v, _, err := tabular.Aggregate(table, question)
			if err != nil {
				return quiz.Unresolved(Name, err, s.context(q))
			}
			return quiz.OK(Name, v)
		}
		if values := tabular.Numbers(data); len(values) > 0 {
			return s.fromValues(values, question, q)
		}
	}

	values := tabular.Numbers(tabular.StripFilter(question))
	if len(values) == 0 {
		return quiz.Unresolved(Name, fmt.Errorf("%w: no numbers in question", quiz.ErrParse), s.context(q))
	}
	return s.fromValues(values, question, q)
}

func (s *Strategy) fromValues(values []float64, question string, q quiz.Question) quiz.Result {
	v, op, err := tabular.AggregateValues(values, question)
	if err != nil {
		return quiz.Unresolved(Name, err, s.context(q))
	}
	s.logger.Debug("aggregated", zap.String("op", string(op)), zap.Int("values", len(values)))
	return quiz.OK(Name, v)
}

func (s *Strategy) context(q quiz.Question) string {
	return helpers.Truncate(q.InlineData, s.maxContext)
}

// inlineTable accepts CSV or TSV data whose first row is a header, meaning
// at least one of its cells is not a number.
func inlineTable(data string) (tabular.Table, bool) {
	comma := ','
	first, _, _ := strings.Cut(data, "\n")
	if strings.Count(first, "\t") > strings.Count(first, ",") {
		comma = '\t'
	}
	table, err := tabular.ParseCSV([]byte(data), comma)
	if err != nil || len(table.Rows) == 0 {
		return tabular.Table{}, false
	}
	for _, h := range table.Header {
		if _, numeric := tabular.ParseNumber(h); !numeric && h != "" {
			return table, true
		}
	}
	return tabular.Table{}, false
}
