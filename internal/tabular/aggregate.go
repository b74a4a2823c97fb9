package tabular

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

// Op is an aggregate operation.
type Op string

const (
	OpSum     Op = "sum"
	OpAverage Op = "average"
	OpCount   Op = "count"
	OpMin     Op = "min"
	OpMax     Op = "max"
	OpMedian  Op = "median"
)

var opPatterns = []struct {
	op Op
	re *regexp.Regexp
}{
	{OpAverage, regexp.MustCompile(`(?i)\b(average|mean|avg)\b`)},
	{OpMedian, regexp.MustCompile(`(?i)\bmedian\b`)},
	{OpCount, regexp.MustCompile(`(?i)\b(count|how many|number of)\b`)},
	{OpMin, regexp.MustCompile(`(?i)\b(minimum|min|lowest|smallest)\b`)},
	{OpMax, regexp.MustCompile(`(?i)\b(maximum|max|highest|largest|greatest)\b`)},
	{OpSum, regexp.MustCompile(`(?i)\b(sum|total|add up)\b`)},
}

// DetectOp returns the operation whose keyword appears first in question.
func DetectOp(question string) (Op, bool) {
	best := -1
	var op Op
	for _, p := range opPatterns {
		loc := p.re.FindStringIndex(question)
		if loc == nil {
			continue
		}
		if best == -1 || loc[0] < best {
			best = loc[0]
			op = p.op
		}
	}
	return op, best >= 0
}

// Filter restricts the values an aggregate runs over.
type Filter struct {
	Cmp   string // one of > >= < <= ==
	Value float64
}

func (f Filter) keep(v float64) bool {
	switch f.Cmp {
	case ">":
		return v > f.Value
	case ">=":
		return v >= f.Value
	case "<":
		return v < f.Value
	case "<=":
		return v <= f.Value
	case "==":
		return v == f.Value
	}
	return true
}

var filterRe = regexp.MustCompile(`(?i)(greater than or equal to|less than or equal to|greater than|more than|above|over|exceeding|less than|fewer than|below|under|at least|at most|equal to|>=|<=|>|<|=)\s*\$?(-?[\d,]*\.?\d+)`)

var filterCmp = map[string]string{
	"greater than or equal to": ">=",
	"less than or equal to":    "<=",
	"greater than":             ">",
	"more than":                ">",
	"above":                    ">",
	"over":                     ">",
	"exceeding":                ">",
	"less than":                "<",
	"fewer than":               "<",
	"below":                    "<",
	"under":                    "<",
	"at least":                 ">=",
	"at most":                  "<=",
	"equal to":                 "==",
	">=":                       ">=",
	"<=":                       "<=",
	">":                        ">",
	"<":                        "<",
	"=":                        "==",
}

// DetectFilter finds a numeric comparison phrase such as "greater than 500".
func DetectFilter(question string) (Filter, bool) {
	m := filterRe.FindStringSubmatch(question)
	if m == nil {
		return Filter{}, false
	}
	v, ok := ParseNumber(m[2])
	if !ok {
		return Filter{}, false
	}
	return Filter{Cmp: filterCmp[strings.ToLower(m[1])], Value: v}, true
}

// ResolveColumn picks the column named in question, else the only numeric
// column. Among named columns a numeric one wins over text unless numeric
// is false; ties go to the longest header.
func ResolveColumn(t Table, question string, numeric bool) (int, error) {
	isNumeric := map[int]bool{}
	for _, c := range t.NumericColumns() {
		isNumeric[c] = true
	}
	best, bestLen, bestNum := -1, 0, false
	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)(^|[^\pL\pN_])` + regexp.QuoteMeta(h) + `($|[^\pL\pN_])`)
		if err != nil || !re.MatchString(question) {
			continue
		}
		num := numeric && isNumeric[i]
		if best == -1 || (num && !bestNum) || (num == bestNum && len(h) > bestLen) {
			best, bestLen, bestNum = i, len(h), num
		}
	}
	if best >= 0 {
		return best, nil
	}
	if cols := t.NumericColumns(); len(cols) == 1 {
		return cols[0], nil
	}
	return -1, fmt.Errorf("%w: question names none of %v", quiz.ErrColumnNotFound, t.Header)
}

// Aggregate answers question over t: operation, column and optional filter
// are all read from the question text.
func Aggregate(t Table, question string) (float64, Op, error) {
	op, ok := DetectOp(question)
	if !ok {
		return 0, "", fmt.Errorf("%w: no aggregate requested", quiz.ErrParse)
	}
	filter, hasFilter := DetectFilter(question)

	col, err := ResolveColumn(t, question, op != OpCount || hasFilter)
	if err != nil {
		if op == OpCount && !hasFilter {
			return float64(len(t.Rows)), op, nil
		}
		return 0, op, err
	}

	if op == OpCount && !hasFilter {
		n := 0
		for r := range t.Rows {
			if t.Cell(r, col) != "" {
				n++
			}
		}
		return float64(n), op, nil
	}

	var values []float64
	for r := range t.Rows {
		v, ok := ParseNumber(t.Cell(r, col))
		if !ok {
			continue
		}
		if hasFilter && !filter.keep(v) {
			continue
		}
		values = append(values, v)
	}
	if op == OpCount {
		return float64(len(values)), op, nil
	}
	if len(values) == 0 {
		return 0, op, fmt.Errorf("%w: column %q has no numeric values", quiz.ErrParse, t.Header[col])
	}
	return finite(Compute(op, values), op)
}

// AggregateValues applies the operation and filter read from question to a
// bare list of numbers.
func AggregateValues(values []float64, question string) (float64, Op, error) {
	op, ok := DetectOp(question)
	if !ok {
		return 0, "", fmt.Errorf("%w: no aggregate requested", quiz.ErrParse)
	}
	if f, ok := DetectFilter(question); ok {
		kept := values[:0:0]
		for _, v := range values {
			if f.keep(v) {
				kept = append(kept, v)
			}
		}
		values = kept
	}
	if len(values) == 0 && op != OpCount {
		return 0, op, fmt.Errorf("%w: no numbers to aggregate", quiz.ErrParse)
	}
	return finite(Compute(op, values), op)
}

// finite rejects results that overflowed to an infinity or became NaN.
func finite(v float64, op Op) (float64, Op, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, op, fmt.Errorf("%w: %s is not a finite number", quiz.ErrParse, op)
	}
	return v, op, nil
}

// StripFilter removes the comparison phrase so its threshold is not mistaken
// for data.
func StripFilter(question string) string {
	return filterRe.ReplaceAllString(question, " ")
}

// Compute applies op to values. Callers guarantee values is non-empty for
// average, min, max and median.
func Compute(op Op, values []float64) float64 {
	switch op {
	case OpCount:
		return float64(len(values))
	case OpAverage:
		return round(sum(values) / float64(len(values)))
	case OpMin:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Min(m, v)
		}
		return m
	case OpMax:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Max(m, v)
		}
		return m
	case OpMedian:
		s := append([]float64(nil), values...)
		sort.Float64s(s)
		mid := len(s) / 2
		if len(s)%2 == 1 {
			return s[mid]
		}
		return round((s[mid-1] + s[mid]) / 2)
	default:
		return round(sum(values))
	}
}

var numberRe = regexp.MustCompile(`-?\$?\d[\d,]*(?:\.\d+)?|-?\.\d+`)

// Numbers returns every number written in text, in order. Thousands
// separators are accepted only in groups of three digits.
func Numbers(text string) []float64 {
	var out []float64
	for _, raw := range numberRe.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ",")
		if strings.Contains(raw, ",") && !thousandsRe.MatchString(strings.TrimLeft(raw, "-$")) {
			for _, part := range strings.Split(raw, ",") {
				if v, ok := ParseNumber(part); ok {
					out = append(out, v)
				}
			}
			continue
		}
		if v, ok := ParseNumber(raw); ok {
			out = append(out, v)
		}
	}
	return out
}

var thousandsRe = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// round trims binary floating point noise (0.1+0.2) at 10 decimals.
func round(v float64) float64 {
	return math.Round(v*1e10) / 1e10
}
