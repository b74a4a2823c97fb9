// Package file downloads the data file a question points at and answers it
// from the parsed contents.
package file

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/httpclient"
	"github.com/mohammad-safakhou/quizsolver/internal/passage"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
	"github.com/mohammad-safakhou/quizsolver/internal/tabular"
)

const Name = "file"

type format string

const (
	formatCSV  format = "csv"
	formatTSV  format = "tsv"
	formatXLSX format = "xlsx"
	formatJSON format = "json"
	formatPDF  format = "pdf"
	formatText format = "text"
)

var byExtension = map[string]format{
	".csv":  formatCSV,
	".tsv":  formatTSV,
	".xlsx": formatXLSX,
	".json": formatJSON,
	".pdf":  formatPDF,
	".txt":  formatText,
	".md":   formatText,
}

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var byContentType = map[string]format{
	"text/csv":                  formatCSV,
	"application/csv":           formatCSV,
	"text/tab-separated-values": formatTSV,
	mimeXLSX:                    formatXLSX,
	"application/json":          formatJSON,
	"application/pdf":           formatPDF,
	"text/plain":                formatText,
	"text/markdown":             formatText,
}

type Strategy struct {
	http       *httpclient.Client
	maxContext int
	logger     *zap.Logger
}

func New(client *httpclient.Client, maxContext int, logger *zap.Logger) *Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Strategy{http: client, maxContext: maxContext, logger: logger.Named("file")}
}

func (s *Strategy) Name() string { return Name }

// Solve downloads the file, parses it and computes the requested aggregate.
// Tables without an aggregate and text documents come back undetermined with
// the data attached as context.
func (s *Strategy) Solve(ctx context.Context, q quiz.Question) quiz.Result {
	link := q.FileURL
	if link == "" && len(q.Links) > 0 {
		link = q.Links[0]
	}
	if link == "" {
		return quiz.Unresolved(Name, fmt.Errorf("%w: question has no file link", quiz.ErrUnsupportedFormat), "")
	}

	resp, err := s.http.Get(ctx, link)
	if err != nil {
		return quiz.Unresolved(Name, fmt.Errorf("%w: download %s: %v", quiz.ErrEndpointUnreachable, link, err), "")
	}
	s.logger.Debug("downloaded", zap.String("url", link), zap.Int("bytes", len(resp.Body)), zap.String("content_type", resp.ContentType))

	f, err := detectFormat(link, resp.ContentType)
	if err != nil {
		return quiz.Unresolved(Name, err, "")
	}

	switch f {
	case formatPDF, formatText:
		text, err := extractText(f, resp.Body)
		if err != nil {
			return quiz.Unresolved(Name, err, "")
		}
		ctxText, err := passage.Select(text, quiz.StripMarker(q.Text), s.maxContext)
		if err != nil {
			s.logger.Warn("passage ranking failed", zap.Error(err))
			ctxText = text
		}
		return quiz.Unresolved(Name, nil, ctxText)
	}

	table, err := parseTable(f, resp.Body)
	if err != nil {
		return quiz.Unresolved(Name, err, helpers.Truncate(string(resp.Body), s.maxContext))
	}
	return Answer(table, q.Text, s.maxContext)
}

// Answer aggregates over table. When the question asks for no aggregate the
// result is undetermined with the table as context.
func Answer(table tabular.Table, question string, maxContext int) quiz.Result {
	v, _, err := tabular.Aggregate(table, quiz.StripMarker(question))
	if err != nil {
		if _, hasOp := tabular.DetectOp(question); !hasOp {
			err = nil
		}
		return quiz.Unresolved(Name, err, table.String(maxContext))
	}
	return quiz.OK(Name, v)
}

func detectFormat(link, contentType string) (format, error) {
	if f, ok := byExtension[helpers.Extension(link)]; ok {
		return f, nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		if f, ok := byContentType[strings.ToLower(mt)]; ok {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %s (%s)", quiz.ErrUnsupportedFormat, helpers.Extension(link), contentType)
}

func parseTable(f format, data []byte) (tabular.Table, error) {
	switch f {
	case formatCSV:
		return tabular.ParseCSV(data, ',')
	case formatTSV:
		return tabular.ParseCSV(data, '\t')
	case formatXLSX:
		return tabular.ParseXLSX(data)
	case formatJSON:
		return tabular.ParseJSON(data)
	}
	return tabular.Table{}, fmt.Errorf("%w: %s", quiz.ErrUnsupportedFormat, f)
}

func extractText(f format, data []byte) (string, error) {
	if f == formatText {
		return string(data), nil
	}
	return pdfText(data)
}

// pdfText returns the plain text of every page. The pdf reader panics on some
// malformed inputs; those are reported as parse errors.
func pdfText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: pdf: %v", quiz.ErrParse, r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf: %v", quiz.ErrParse, err)
	}
	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: pdf page %d: %v", quiz.ErrParse, i, err)
		}
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("%w: pdf has no extractable text", quiz.ErrParse)
	}
	return b.String(), nil
}
