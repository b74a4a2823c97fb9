package quiz

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// FormatAnswer renders an answer value as text. Whole floats lose their
// fractional part so 60.0 becomes "60".
func FormatAnswer(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Undetermined
		}
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return FormatAnswer(float64(x))
	case json.Number:
		// Integers keep every digit; 2^53 and above do not survive float64.
		if !strings.ContainsAny(string(x), ".eE") {
			return string(x)
		}
		if f, err := x.Float64(); err == nil {
			return FormatAnswer(f)
		}
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// CoerceAnswer turns numeric-looking text into an int64 or float64 so it can
// be submitted with its natural JSON type. Other text is returned trimmed.
func CoerceAnswer(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

var markerRe = regexp.MustCompile(`(?i)^\s*(?:q(?:uestion)?\s*#?\s*\d+\s*[.:)\-]|question\s*[.:)\-])\s*`)

// StripMarker removes a leading question marker such as "Q834." or
// "Question 2:" from text.
func StripMarker(text string) string {
	return markerRe.ReplaceAllString(text, "")
}

// HasMarker reports whether line starts with a question marker.
func HasMarker(line string) bool {
	return markerRe.MatchString(line)
}
