// Package api calls the endpoint a question names and pulls the requested
// field out of the JSON reply.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/httpclient"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

const Name = "api"

type Strategy struct {
	http       *httpclient.Client
	maxContext int
	logger     *zap.Logger
}

func New(client *httpclient.Client, maxContext int, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{http: client, maxContext: maxContext, logger: logger.Named("api")}
}

func (s *Strategy) Name() string { return Name }

// Solve issues one request to the endpoint and extracts the field the
// question asks for. The body, when one was received, travels as context on
// failure.
func (s *Strategy) Solve(ctx context.Context, q quiz.Question) quiz.Result {
	endpoint, method := q.APIURL, strings.ToUpper(q.APIMethod)
	if endpoint == "" && len(q.Links) > 0 {
		endpoint = q.Links[0]
	}
	if endpoint == "" {
		return quiz.Unresolved(Name, fmt.Errorf("%w: question names no endpoint", quiz.ErrEndpointUnreachable), "")
	}
	if method == "" {
		method = http.MethodGet
	}

	resp, err := s.http.Do(ctx, method, endpoint, map[string]string{"Accept": "application/json"}, nil)
	if err != nil {
		var ctxText string
		var se *httpclient.StatusError
		if errors.As(err, &se) && resp != nil {
			ctxText = s.truncate(string(resp.Body))
		}
		return quiz.Unresolved(Name, fmt.Errorf("%w: %s %s: %v", quiz.ErrEndpointUnreachable, method, endpoint, err), ctxText)
	}
	s.logger.Debug("endpoint replied", zap.String("url", endpoint), zap.Int("status", resp.StatusCode), zap.Int("bytes", len(resp.Body)))

	v, err := Extract(resp.Body, quiz.StripMarker(q.Text))
	if err != nil {
		body := string(resp.Body)
		if helpers.LooksLikeHTML(resp.ContentType, resp.Body) {
			body = helpers.HTMLToText(body)
		}
		return quiz.Unresolved(Name, err, s.truncate(body))
	}
	return quiz.OK(Name, v)
}

func (s *Strategy) truncate(body string) string {
	return helpers.Truncate(body, s.maxContext)
}

// Extract decodes body as JSON and returns the value named by question.
// Scalar documents are returned as they are. A body that only embeds JSON
// (JSONP, a <pre> block) is searched for its first object or array.
func Extract(body []byte, question string) (any, error) {
	doc, err := decodeJSON(body)
	if err != nil {
		embedded, xerr := helpers.ExtractJSON(string(body))
		if xerr != nil {
			return nil, fmt.Errorf("%w: response is not JSON: %v", quiz.ErrFieldNotFound, err)
		}
		if doc, err = decodeJSON([]byte(embedded)); err != nil {
			return nil, fmt.Errorf("%w: response is not JSON: %v", quiz.ErrFieldNotFound, err)
		}
	}
	switch doc.(type) {
	case map[string]any, []any:
	default:
		return doc, nil
	}
	names := Candidates(question)
	// Scalars win over objects so "the age of the user" picks age, not user.
	for _, wantScalar := range []bool{true, false} {
		for _, name := range names {
			var (
				v  any
				ok bool
			)
			if strings.Contains(name, ".") {
				v, ok = followPath(doc, strings.Split(name, "."))
			} else {
				v, ok = findKey(doc, normalize(name))
			}
			if !ok || v == nil {
				continue
			}
			if wantScalar && isComposite(v) {
				continue
			}
			return scalar(v), nil
		}
	}
	return nil, fmt.Errorf("%w: no field of the response matches the question", quiz.ErrFieldNotFound)
}

func decodeJSON(body []byte) (any, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

var (
	quotedRe = regexp.MustCompile("[\"'`“‘]([A-Za-z0-9_.\\-]+)[\"'`”’]")
	theRe    = regexp.MustCompile(`(?i)\bthe\s+([A-Za-z0-9_.\-]+)`)
	fieldRe  = regexp.MustCompile(`(?i)\b(?:field|key|property|attribute)\s+([A-Za-z0-9_.\-]+)`)
	wordRe   = regexp.MustCompile(`[A-Za-z0-9_.\-]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "api": {}, "are": {}, "at": {}, "by": {}, "call": {}, "data": {},
	"do": {}, "does": {}, "endpoint": {}, "fetch": {}, "field": {}, "find": {}, "for": {}, "from": {},
	"get": {}, "give": {}, "how": {}, "in": {}, "is": {}, "it": {}, "its": {}, "json": {}, "key": {},
	"me": {}, "of": {}, "on": {}, "or": {}, "please": {}, "query": {}, "request": {}, "response": {},
	"return": {}, "returned": {}, "returns": {}, "send": {}, "that": {}, "the": {}, "this": {},
	"to": {}, "url": {}, "use": {}, "using": {}, "was": {}, "what": {}, "which": {}, "with": {},
	"post": {}, "put": {}, "patch": {}, "delete": {}, "answer": {}, "value": {},
}

// Candidates lists field names the question may refer to, most specific
// first: quoted names, "field <name>", "the <name>", then the remaining
// words and adjacent word pairs. "value" is tried last since it is both a
// common key and filler.
func Candidates(question string) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(s string) {
		s = strings.Trim(strings.ToLower(s), ".-_")
		if s == "" || strings.Contains(s, "://") {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, m := range quotedRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}
	for _, m := range fieldRe.FindAllStringSubmatch(question, -1) {
		add(m[1])
	}
	for _, m := range theRe.FindAllStringSubmatch(question, -1) {
		if !isStopword(m[1]) {
			add(m[1])
		}
	}
	words := wordRe.FindAllString(question, -1)
	for i, w := range words {
		if !isStopword(w) {
			add(w)
		}
		if i+1 < len(words) && !isStopword(w) && !isStopword(words[i+1]) {
			add(w + "_" + words[i+1])
		}
	}
	for _, w := range words {
		if strings.EqualFold(w, "value") {
			add(w)
		}
	}
	return out
}

func isStopword(w string) bool {
	_, ok := stopwords[strings.ToLower(strings.Trim(w, ".-_"))]
	return ok
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(s)
}

// findKey walks v depth-first: the keys of an object are checked before its
// children, children in sorted key order.
func findKey(v any, name string) (any, bool) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if normalize(k) == name {
				return x[k], true
			}
		}
		for _, k := range keys {
			if found, ok := findKey(x[k], name); ok {
				return found, true
			}
		}
	case []any:
		for _, e := range x {
			if found, ok := findKey(e, name); ok {
				return found, true
			}
		}
	}
	return nil, false
}

func followPath(v any, path []string) (any, bool) {
	for _, p := range path {
		switch x := v.(type) {
		case map[string]any:
			var next any
			found := false
			for k, val := range x {
				if strings.EqualFold(k, p) {
					next, found = val, true
					break
				}
			}
			if !found {
				return nil, false
			}
			v = next
		case []any:
			i, err := strconv.Atoi(p)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			v = x[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func isComposite(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// scalar returns strings, numbers and booleans untouched and compacts
// objects and arrays to JSON text.
func scalar(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	return v
}
