// Package extractor turns a rendered quiz page into question units.
package extractor

import (
	"regexp"
	"strings"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/tools/render/models"
)

// maxUnitChars caps an unmarked page used as a single question.
const maxUnitChars = 2000

var (
	urlRe      = regexp.MustCompile(`https?://[^\s"'<>` + "`" + `]+`)
	endpointRe = regexp.MustCompile(`\b(GET|POST|PUT|PATCH|DELETE)\s+(https?://[^\s"'<>` + "`" + `]+|/[^\s"'<>` + "`" + `]*)`)
	leadRe     = regexp.MustCompile(`(?i)^(what|which|who|when|where|how|find|calculate|compute|determine|download|identify|extract|count|sum|list|give|return|fetch|call|query|plot|draw)\b`)

	// DataFileExtensions route a link to the file strategy. Formats that the
	// file strategy cannot parse are still listed so they fail there with
	// ErrUnsupportedFormat instead of being treated as web pages.
	DataFileExtensions = map[string]struct{}{
		".csv": {}, ".tsv": {}, ".xlsx": {}, ".xls": {}, ".pdf": {}, ".json": {}, ".txt": {},
		".zip": {}, ".gz": {}, ".tar": {}, ".7z": {}, ".rar": {}, ".parquet": {}, ".xml": {},
		".doc": {}, ".docx": {}, ".ods": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
		".mp3": {}, ".wav": {}, ".opus": {},
	}
)

// Extraction is everything the pipeline needs from one page.
type Extraction struct {
	Questions []quiz.Question
	SubmitURL string
}

// Extractor is stateless; the zero value is ready to use.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

// Extract finds question units in the page. An empty Questions slice means
// nothing recognisable was found.
func (e *Extractor) Extract(page models.Page) Extraction {
	doc := parseDocument(page.HTML, page.URL)
	text := page.Text
	if strings.TrimSpace(text) == "" {
		text = doc.text
	}

	submit := findSubmitURL(page.URL, text, doc.anchors)
	units := splitUnits(text)
	out := Extraction{SubmitURL: submit}
	for _, unit := range units {
		out.Questions = append(out.Questions, buildQuestion(unit, page.URL, submit, doc, len(units) == 1))
	}
	return out
}

// splitUnits groups page lines into question units. Marker lines ("Q1.",
// "Question 2:") start a unit that runs until the next marker. Without
// markers, a page holding at least one question-like line is one unit.
func splitUnits(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}

	var units []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			units = append(units, strings.Join(cur, "\n"))
			cur = nil
		}
	}
	marked := false
	for _, l := range lines {
		if quiz.HasMarker(l) {
			flush()
			marked = true
			cur = append(cur, l)
			continue
		}
		if marked {
			cur = append(cur, l)
		}
	}
	flush()
	if marked {
		return units
	}

	for _, l := range lines {
		if strings.HasSuffix(l, "?") || leadRe.MatchString(l) {
			return []string{helpers.Truncate(strings.Join(lines, "\n"), maxUnitChars)}
		}
	}
	return nil
}

func buildQuestion(unit, baseURL, submit string, doc document, single bool) quiz.Question {
	q := quiz.Question{Text: unit}

	seen := map[string]struct{}{}
	add := func(raw string) {
		key, err := helpers.CanonicalURL(raw)
		if err != nil {
			return
		}
		if submit != "" {
			if sk, _ := helpers.CanonicalURL(submit); sk == key {
				return
			}
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		q.Links = append(q.Links, raw)
	}

	if m := endpointRe.FindStringSubmatch(unit); m != nil {
		if abs, err := helpers.ResolveURL(baseURL, helpers.TrimURLPunctuation(m[2])); err == nil && !sameURL(abs, submit) {
			q.APIURL = abs
			q.APIMethod = m[1]
			add(abs)
		}
	}
	for _, raw := range urlRe.FindAllString(unit, -1) {
		if abs, err := helpers.ResolveURL(baseURL, helpers.TrimURLPunctuation(raw)); err == nil {
			add(abs)
		}
	}
	for _, a := range doc.anchors {
		if single || (len(a.Text) >= 2 && strings.Contains(unit, a.Text)) || strings.Contains(unit, a.Href) {
			add(a.Href)
		}
	}

	for _, link := range q.Links {
		if _, ok := DataFileExtensions[helpers.Extension(link)]; ok {
			if q.FileURL == "" {
				q.FileURL = link
			}
			continue
		}
		if q.APIURL == "" && looksLikeAPI(link) {
			q.APIURL = link
			q.APIMethod = "GET"
		}
	}

	for _, b := range doc.blocks {
		if single || (b.Probe != "" && strings.Contains(unit, b.Probe)) {
			q.InlineData = b.Data
			break
		}
	}
	return q
}

func looksLikeAPI(link string) bool {
	lower := strings.ToLower(link)
	if strings.Contains(lower, "/api/") || strings.HasSuffix(lower, "/api") {
		return true
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(lower, "https://"), "http://")
	return strings.HasPrefix(rest, "api.")
}

func findSubmitURL(baseURL, text string, anchors []anchor) string {
	var candidates []string
	for _, raw := range urlRe.FindAllString(text, -1) {
		if abs, err := helpers.ResolveURL(baseURL, helpers.TrimURLPunctuation(raw)); err == nil {
			candidates = append(candidates, abs)
		}
	}
	for _, a := range anchors {
		candidates = append(candidates, a.Href)
	}
	for _, word := range []string{"submit", "answer"} {
		for _, c := range candidates {
			if _, data := DataFileExtensions[helpers.Extension(c)]; data {
				continue
			}
			if strings.Contains(strings.ToLower(c), word) {
				return c
			}
		}
	}
	return ""
}

func sameURL(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	ka, errA := helpers.CanonicalURL(a)
	kb, errB := helpers.CanonicalURL(b)
	return errA == nil && errB == nil && ka == kb
}
