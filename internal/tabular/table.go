// Package tabular holds parsed tabular data and the aggregates computed
// over it.
package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
	"github.com/mohammad-safakhou/quizsolver/internal/quiz"
)

// Table is a header row plus data rows. Rows may be shorter than Header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of name (case-insensitive), or -1.
func (t Table) Column(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, h := range t.Header {
		if strings.ToLower(strings.TrimSpace(h)) == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row r, column c, or "" when the row is short.
func (t Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return strings.TrimSpace(t.Rows[r][c])
}

// NumericColumns lists columns where every non-empty cell parses as a number
// and at least one cell is non-empty.
func (t Table) NumericColumns() []int {
	var out []int
	for c := range t.Header {
		seen := false
		numeric := true
		for r := range t.Rows {
			v := t.Cell(r, c)
			if v == "" {
				continue
			}
			seen = true
			if _, ok := ParseNumber(v); !ok {
				numeric = false
				break
			}
		}
		if seen && numeric {
			out = append(out, c)
		}
	}
	return out
}

// String renders the table as CSV, truncated to max characters when max > 0.
func (t Table) String(max int) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(t.Header)
	for _, r := range t.Rows {
		_ = w.Write(r)
		if max > 0 && buf.Len() > max {
			break
		}
	}
	w.Flush()
	s := buf.String()
	return strings.TrimSpace(helpers.Truncate(s, max))
}

// ParseNumber parses numbers written with thousands separators, currency
// symbols or a trailing percent sign. NaN and infinities are rejected.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimLeft(s, "$€£¥")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseCSV reads comma or tab separated data. The first record is the header.
func ParseCSV(data []byte, comma rune) (Table, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("%w: csv: %v", quiz.ErrParse, err)
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		records = append(records, rec)
	}
	return fromRecords(records)
}

// ParseXLSX reads the first sheet that has any rows.
func ParseXLSX(data []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("%w: xlsx: %v", quiz.ErrParse, err)
	}
	defer f.Close()
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return Table{}, fmt.Errorf("%w: xlsx sheet %s: %v", quiz.ErrParse, sheet, err)
		}
		if len(rows) > 0 {
			return fromRecords(rows)
		}
	}
	return Table{}, fmt.Errorf("%w: xlsx has no rows", quiz.ErrParse)
}

// ParseJSON accepts an array of objects, an object holding such an array, or
// a single flat object (one row).
func ParseJSON(data []byte) (Table, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Table{}, fmt.Errorf("%w: json: %v", quiz.ErrParse, err)
	}
	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if arr, ok := v[k].([]any); ok && len(arr) > 0 {
				if _, obj := arr[0].(map[string]any); obj {
					items = arr
					break
				}
			}
		}
	default:
		return Table{}, fmt.Errorf("%w: json is not tabular", quiz.ErrParse)
	}

	var header []string
	index := map[string]int{}
	var rows []map[string]string
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return Table{}, fmt.Errorf("%w: json array holds non-objects", quiz.ErrParse)
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		row := map[string]string{}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(header)
				header = append(header, k)
			}
			row[k] = quiz.FormatAnswer(obj[k])
		}
		rows = append(rows, row)
	}
	t := Table{Header: header}
	for _, r := range rows {
		rec := make([]string, len(header))
		for k, v := range r {
			rec[index[k]] = v
		}
		t.Rows = append(t.Rows, rec)
	}
	if len(t.Header) == 0 {
		return Table{}, fmt.Errorf("%w: json has no fields", quiz.ErrParse)
	}
	return t, nil
}

func fromRecords(records [][]string) (Table, error) {
	if len(records) == 0 {
		return Table{}, fmt.Errorf("%w: no rows", quiz.ErrParse)
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}
	return Table{Header: header, Rows: records[1:]}, nil
}
