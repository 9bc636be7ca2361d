package normalize

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// row is one candidate record with lower-cased keys.
type row map[string]any

var utf8BOM = []byte("\xef\xbb\xbf")

func decodeCSV(raw []byte) ([]row, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.Comma = detectDelimiter(raw)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []row
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		// No partial-row recovery: a short or long line is dropped whole.
		if len(fields) != len(header) {
			rows = append(rows, nil)
			continue
		}
		rw := make(row, len(header))
		for i, h := range header {
			rw[h] = fields[i]
		}
		rows = append(rows, rw)
	}
	return rows, nil
}

// detectDelimiter accepts semicolon and tab separated exports as well as commas.
func detectDelimiter(raw []byte) rune {
	first := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		first = raw[:i]
	}
	switch {
	case bytes.Count(first, []byte{';'}) > bytes.Count(first, []byte{','}):
		return ';'
	case bytes.Count(first, []byte{'\t'}) > bytes.Count(first, []byte{','}):
		return '\t'
	default:
		return ','
	}
}

func decodeJSON(raw []byte) ([]row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return candidates(v), nil
}

func decodeYAML(raw []byte) ([]row, error) {
	var v any
	if err := yaml.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return candidates(v), nil
}

// candidates accepts a single object or an array of objects. Non-object array
// elements keep their position but yield no record.
func candidates(v any) []row {
	switch t := v.(type) {
	case []any:
		rows := make([]row, len(t))
		for i, el := range t {
			rows[i] = toRow(el)
		}
		return rows
	case nil:
		return nil
	default:
		if r := toRow(t); r != nil {
			return []row{r}
		}
		return nil
	}
}

func toRow(v any) row {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	r := make(row, len(m))
	for k, val := range m {
		r[strings.ToLower(strings.TrimSpace(k))] = val
	}
	return r
}

// str returns the first synonym holding a non-empty value.
func (r row) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok {
			continue
		}
		if s := toString(v); s != "" {
			return s
		}
	}
	return ""
}

// value returns the raw value of the first synonym present.
func (r row) value(keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// parseScore reads integers, decimals and comma decimals ("4,0"). The range
// check runs on the parsed value, so 10.4 on a 0..10 scale is dropped rather
// than rounded into range.
func parseScore(s string, lo, hi int) (int, bool) {
	f, ok := parseNumber(s)
	if !ok || f < float64(lo) || f > float64(hi) {
		return 0, false
	}
	return int(math.Round(f)), true
}

// parseCount reads counters, where missing or negative means zero.
func parseCount(s string) int {
	f, ok := parseNumber(s)
	if !ok || f < 0 {
		return 0
	}
	return int(math.Round(f))
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
