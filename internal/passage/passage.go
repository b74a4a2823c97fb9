// Package passage picks the parts of a long document most relevant to a
// question, using an in-memory BM25 index.
package passage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
)

// DefaultChunkSize is the target length of one passage in characters.
const DefaultChunkSize = 1200

type chunk struct {
	Text string `json:"text"`
}

// Chunk splits text on paragraph boundaries into pieces of about size
// characters. Paragraphs longer than size are cut on whitespace.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > size {
			cut := strings.LastIndexAny(para[:size], " \n\t")
			if cut <= 0 {
				cut = len(helpers.Truncate(para, size))
			}
			flush()
			cur.WriteString(para[:cut])
			flush()
			para = strings.TrimSpace(para[cut:])
		}
		if cur.Len() > 0 && cur.Len()+len(para)+2 > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return out
}

// Select returns text unchanged when it fits budget. Otherwise it ranks the
// chunks against question and joins the best ones, in document order, until
// the budget is spent.
func Select(text, question string, budget int) (string, error) {
	if budget <= 0 || len(text) <= budget {
		return text, nil
	}
	chunks := Chunk(text, DefaultChunkSize)
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return "", fmt.Errorf("passage index: %w", err)
	}
	defer idx.Close()

	batch := idx.NewBatch()
	for i, c := range chunks {
		if err := batch.Index(strconv.Itoa(i), chunk{Text: c}); err != nil {
			return "", fmt.Errorf("passage index: %w", err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return "", fmt.Errorf("passage index: %w", err)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(question), len(chunks), 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return "", fmt.Errorf("passage search: %w", err)
	}

	var picked []int
	used := 0
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		if used+len(chunks[i]) > budget {
			continue
		}
		picked = append(picked, i)
		used += len(chunks[i]) + 2
	}
	if len(picked) == 0 {
		return helpers.Truncate(text, budget), nil
	}
	sort.Ints(picked)
	parts := make([]string, 0, len(picked))
	for _, i := range picked {
		parts = append(parts, chunks[i])
	}
	return strings.Join(parts, "\n\n"), nil
}

